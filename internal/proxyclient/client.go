// Package proxyclient ties a Sequencer, a Dispatcher, and a Transport
// together behind a blocking request API. It adapts the teacher's
// per-request wait-channel pattern (kvraft.KVServer.startWaitChannelL /
// deleteWaitChannelL, keyed by an Op's sequence number) to spec.md's
// closure-based completion contract: instead of a channel the caller polls,
// the sequencer's complete closure resolves the caller's channel directly.
package proxyclient

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhuomingliang/raftproxy/internal/dispatch"
	"github.com/zhuomingliang/raftproxy/internal/sequencer"
	"github.com/zhuomingliang/raftproxy/internal/sessionstate"
	"github.com/zhuomingliang/raftproxy/internal/transport"
)

// Client exposes a blocking Do call over an asynchronously-delivered
// transport, the way the teacher's KVServer.Command exposed a blocking RPC
// handler over Raft's asynchronous apply channel.
type Client struct {
	session    *sessionstate.State
	sequencer  *sequencer.Sequencer
	dispatcher *dispatch.Dispatcher
	transport  transport.Transport
	log        *zap.SugaredLogger

	mu      sync.Mutex
	waiting map[uint64]chan sequencer.Response
}

// New starts pumping tr's delivery channels onto d and returns a ready
// Client. Callers must not submit requests against seq/tr directly; all
// access must go through the returned Client so ordering on d is preserved.
func New(session *sessionstate.State, seq *sequencer.Sequencer, d *dispatch.Dispatcher, tr transport.Transport, log *zap.SugaredLogger) *Client {
	c := &Client{
		session:    session,
		sequencer:  seq,
		dispatcher: d,
		transport:  tr,
		log:        log,
		waiting:    make(map[uint64]chan sequencer.Response),
	}
	go c.pump()
	return c
}

// pump is the transport/dispatch layer from spec.md §2: it hands incoming
// responses and events to the sequencer, in arrival order, on the
// dispatcher goroutine.
func (c *Client) pump() {
	responses := c.transport.Responses()
	events := c.transport.Events()
	for responses != nil || events != nil {
		select {
		case r, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			c.dispatcher.Run(func() {
				c.sequencer.SequenceResponse(r.Sequence, r.Response, func() {
					c.resolve(r.Sequence, r.Response)
				})
			})
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.dispatcher.Run(func() {
				c.sequencer.SequenceEvent(e.Event, func() {
					c.log.Debugw("event delivered", "session", c.session.SessionID, "eventIndex", e.Event.EventIndex)
				})
			})
		}
	}
}

func (c *Client) resolve(seq uint64, resp sequencer.Response) {
	c.mu.Lock()
	ch, ok := c.waiting[seq]
	if ok {
		delete(c.waiting, seq)
	}
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// Do allocates a request sequence, submits op/key/value to the transport,
// and blocks until the response has reached its ordering slot and been
// delivered, or ctx ends first.
func (c *Client) Do(ctx context.Context, kind sequencer.Kind, op, key, value string) (sequencer.Response, error) {
	ch := make(chan sequencer.Response, 1)
	seqCh := make(chan uint64, 1)
	c.dispatcher.Run(func() {
		seq := c.sequencer.NextRequest()
		c.mu.Lock()
		c.waiting[seq] = ch
		c.mu.Unlock()
		seqCh <- seq
	})

	var seq uint64
	select {
	case seq = <-seqCh:
	case <-ctx.Done():
		return sequencer.Response{}, ctx.Err()
	}

	if err := c.transport.Submit(ctx, transport.Request{
		SessionID: c.session.SessionID,
		Sequence:  seq,
		Kind:      kind,
		Operation: op,
		Key:       key,
		Value:     value,
	}); err != nil {
		return sequencer.Response{}, errors.Wrapf(err, "submitting request %d", seq)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return sequencer.Response{}, ctx.Err()
	}
}
