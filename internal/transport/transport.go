// Package transport defines the request/response/event shapes and the
// Transport collaborator the sequencer's dispatcher drives. Request
// submission, transport, and response decoding are explicitly out of scope
// for the sequencer itself (spec.md §1); this package exists only to give
// that collaborator boundary a concrete Go shape, grounded on the Args/Reply
// structs of the teacher's kvraft RPC layer.
package transport

import (
	"context"

	"github.com/zhuomingliang/raftproxy/internal/sequencer"
)

// Request is what the submission path hands to the transport after
// allocating a sequence with Sequencer.NextRequest.
type Request struct {
	SessionID string
	Sequence  uint64
	Kind      sequencer.Kind
	Operation string
	Key       string
	Value     string
}

// Response pairs a delivered response with the request sequence it answers.
type Response struct {
	Sequence uint64
	Response sequencer.Response
}

// Event is a delivered server-pushed event.
type Event struct {
	Event sequencer.Event
}

// Transport submits requests and delivers responses/events on two
// independent streams, in arrival order — which need not be the order the
// state machine produced them. Reordering that is the sequencer's job.
type Transport interface {
	Submit(ctx context.Context, req Request) error
	Responses() <-chan Response
	Events() <-chan Event
}
