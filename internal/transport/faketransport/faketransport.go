// Package faketransport is an in-memory stand-in for the wire-protocol
// client the sequencer's spec explicitly treats as an external collaborator
// (spec.md §1 Non-goals: transport, response decoding). It lets tests and
// the demo daemon exercise nextRequest/sequenceResponse/sequenceEvent
// without a real cluster, while still delivering responses and events on
// two independently-ordered channels the way a real transport would.
package faketransport

import (
	"context"

	"github.com/zhuomingliang/raftproxy/internal/sequencer"
	"github.com/zhuomingliang/raftproxy/internal/transport"
)

// Transport is a single-session fake backed by committedLog.
type Transport struct {
	log       *committedLog
	responses chan transport.Response
	events    chan transport.Event
}

// New returns a ready Transport. depth sizes the buffering on both delivery
// channels; 0 makes Submit block until something reads the channel it
// writes to.
func New(depth int) *Transport {
	return &Transport{
		log:       newCommittedLog(),
		responses: make(chan transport.Response, depth),
		events:    make(chan transport.Event, depth),
	}
}

// Responses implements transport.Transport.
func (t *Transport) Responses() <-chan transport.Response { return t.responses }

// Events implements transport.Transport.
func (t *Transport) Events() <-chan transport.Event { return t.events }

// Submit commits req against the fake log and delivers its response,
// followed by a correlated event for Command requests (queries produce no
// event). Delivery order across the two channels is intentionally not
// synchronized with Go's channel-select fairness, so consumers reading both
// channels concurrently see genuine interleavings to reorder.
func (t *Transport) Submit(ctx context.Context, req transport.Request) error {
	delta := uint64(0)
	if req.Kind == sequencer.Command {
		delta = 1
	}
	entry := t.log.append(delta)

	resp := transport.Response{
		Sequence: req.Sequence,
		Response: sequencer.Response{
			Kind:       req.Kind,
			Index:      entry.index,
			EventIndex: entry.eventIndex,
			Status:     sequencer.Status{OK: true},
		},
	}
	select {
	case t.responses <- resp:
	case <-ctx.Done():
		return ctx.Err()
	}

	if delta > 0 {
		ev := transport.Event{Event: sequencer.Event{
			SessionID:     req.SessionID,
			EventIndex:    entry.eventIndex,
			PreviousIndex: entry.eventIndex - delta,
		}}
		select {
		case t.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// InjectEvent delivers ev without a corresponding Submit call, for tests
// that need to exercise causal-gap handling or event-only traffic.
func (t *Transport) InjectEvent(ev sequencer.Event) {
	t.events <- transport.Event{Event: ev}
}
