// Package sequencer reorders a Raft client proxy's responses and
// server-pushed events so the application observes both streams in the
// order the state machine produced them, regardless of transport delivery
// order.
//
// A Sequencer is bound to one client session and is not thread-safe on its
// own: every public method, and every completion closure it invokes, must
// run on the same single-threaded dispatcher (see internal/dispatch).
package sequencer

import (
	"go.uber.org/zap"

	"github.com/zhuomingliang/raftproxy/internal/metrics"
)

// Kind distinguishes the two response variants the proxy can deliver. Only
// Index and EventIndex are read by the sequencer; Status and Payload are
// opaque to it.
type Kind int

const (
	// Command is a response to a request that advanced the state machine.
	Command Kind = iota
	// Query is a response to a read that did not advance the state machine.
	Query
)

func (k Kind) String() string {
	if k == Query {
		return "query"
	}
	return "command"
}

// Response is the tagged union described in spec.md §6: a Command or Query
// result carrying the log index it was applied at (0 for queries that
// observed no prior index) and the event index the server had produced at
// the time it answered.
type Response struct {
	Kind       Kind
	Index      uint64
	EventIndex uint64
	Status     Status
	Payload    any
}

// Status is an opaque, server-defined outcome. The sequencer never
// interprets it; it exists only so Response can carry a failure indication
// through to the application in order.
type Status struct {
	OK      bool
	Message string
}

// Event is a server-pushed state-machine notification.
type Event struct {
	SessionID     string
	EventIndex    uint64
	PreviousIndex uint64
	Events        []any
}

// SessionState is the collaborator from spec.md §6: a shared per-session
// object holding the three monotonic counters. Every setter is a monotonic
// max — callers never need to guard against regressing a counter.
type SessionState interface {
	CommandRequest() uint64
	ResponseIndex() uint64
	EventIndex() uint64
	SetCommandRequest(uint64)
	SetResponseIndex(uint64)
	SetEventIndex(uint64)
}

type pendingResponse struct {
	sequence uint64
	resp     Response
	complete func()
}

type pendingEvent struct {
	event    Event
	complete func()
}

// Sequencer holds the two internal containers and two scalar cursors
// described in spec.md §3. It owns no transport, no timers, and performs no
// I/O; it is driven entirely by its three public methods.
type Sequencer struct {
	session SessionState
	log     *zap.SugaredLogger
	metrics metrics.Recorder

	requestSequence  uint64
	responseSequence uint64
	eventIndex       uint64

	responses map[uint64]pendingResponse
	events    []pendingEvent

	draining bool // reentrancy guard; drain() must never nest
}

// Option configures optional collaborators on a Sequencer.
type Option func(*Sequencer)

// WithLogger attaches structured logging of counter advances and dropped
// items. The default is a no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Sequencer) { s.log = log }
}

// WithMetrics attaches a metrics.Recorder for queue depth and drain
// instrumentation. The default is a no-op recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Sequencer) { s.metrics = rec }
}

// New constructs a Sequencer bound to session. Initial cursor values are
// taken from the session state per spec.md §3's lifecycle rule.
func New(session SessionState, opts ...Option) *Sequencer {
	s := &Sequencer{
		session:          session,
		log:              zap.NewNop().Sugar(),
		metrics:          metrics.Noop{},
		requestSequence:  session.CommandRequest(),
		responseSequence: session.CommandRequest(),
		eventIndex:       session.EventIndex(),
		responses:        make(map[uint64]pendingResponse),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRequest allocates and returns the next request sequence. It never
// fails and advances the session's commandRequest counter as a side effect.
func (s *Sequencer) NextRequest() uint64 {
	s.requestSequence++
	s.session.SetCommandRequest(s.requestSequence)
	return s.requestSequence
}

// SequenceResponse admits a response for a previously allocated sequence.
// complete is invoked, at most once, once the response reaches its ordering
// slot — possibly synchronously, before SequenceResponse returns.
func (s *Sequencer) SequenceResponse(seq uint64, resp Response, complete func()) {
	if seq <= s.responseSequence {
		// Already delivered, or a late duplicate: drop silently (spec.md §7).
		s.log.Debugw("dropping stale response", "sequence", seq, "responseSequence", s.responseSequence)
		s.metrics.ResponseDroppedStale()
		return
	}
	if seq > s.requestSequence {
		// Never allocated. The source stores these indefinitely; spec.md §9
		// prefers dropping them.
		s.log.Debugw("dropping response for unallocated sequence", "sequence", seq, "requestSequence", s.requestSequence)
		s.metrics.ResponseDroppedStale()
		return
	}
	if _, dup := s.responses[seq]; dup {
		// Duplicate sequence for a still-pending slot: undefined by
		// contract (spec.md §7). Assert, matching the teacher's practice of
		// panicking on states its author considered impossible.
		panic("sequencer: duplicate sequence admitted to SequenceResponse")
	}
	s.responses[seq] = pendingResponse{sequence: seq, resp: resp, complete: complete}
	s.metrics.ResponseQueued(len(s.responses))
	s.drain()
}

// SequenceEvent admits a server-pushed event. complete is invoked, at most
// once, once the event reaches its ordering slot — possibly synchronously.
func (s *Sequencer) SequenceEvent(ev Event, complete func()) {
	if ev.EventIndex < s.eventIndex {
		// Causally below what has already been delivered (e.g. after a
		// response fired through the missing-event path): drop silently so
		// the eventIndex cursor never regresses.
		s.log.Debugw("dropping event below delivered eventIndex",
			"eventIndex", ev.EventIndex, "observedEventIndex", s.eventIndex)
		return
	}
	// The causal baseline isn't just the delivered eventIndex cursor: events
	// already admitted but still queued (drain deferred them, e.g. behind
	// the noOutstandingRequest gate) legitimately carry a higher eventIndex
	// than the scalar and must extend the chain (invariant 4).
	baseline := s.eventIndex
	if n := len(s.events); n > 0 {
		baseline = s.events[n-1].event.EventIndex
	}
	if ev.PreviousIndex > baseline {
		// Causal gap: an intermediate event was lost. Drop silently and
		// rely on the server to retransmit (spec.md §4.3, §7).
		s.log.Debugw("dropping event with causal gap",
			"eventIndex", ev.EventIndex, "previousIndex", ev.PreviousIndex, "observedEventIndex", baseline)
		s.metrics.EventDroppedCausalGap()
		return
	}
	s.events = append(s.events, pendingEvent{event: ev, complete: complete})
	s.metrics.EventQueued(len(s.events))
	s.drain()
}

// drain fires as many pending closures as the ordering contract (spec.md
// §4.2–§4.3) allows, given current admissions. It is idempotent: calling it
// with no new admissions produces no further firings.
func (s *Sequencer) drain() {
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	for {
		head, hasHead := s.responses[s.responseSequence+1]

		var headEvent *pendingEvent
		if len(s.events) > 0 {
			headEvent = &s.events[0]
		}

		// Case A: head response ready, no blocking event. This also
		// implements the missing-event recovery rule of spec.md §4.3: a
		// response is never held waiting for an event that has not yet
		// arrived, regardless of how high its own eventIndex is. Firing it
		// this way accepts the event-loss gap, so eventIndex is advanced to
		// the response's own eventIndex (never regressed) — later events
		// causally below that advanced value are dropped as expected.
		if hasHead && (headEvent == nil || headEvent.event.EventIndex > head.resp.EventIndex) {
			s.responseSequence = head.sequence
			s.session.SetResponseIndex(head.resp.Index)
			if head.resp.EventIndex > s.eventIndex {
				s.eventIndex = head.resp.EventIndex
				s.session.SetEventIndex(s.eventIndex)
			}
			delete(s.responses, head.sequence)
			s.log.Debugw("response drained", "sequence", head.sequence, "index", head.resp.Index, "kind", head.resp.Kind)
			s.metrics.ResponseDrained()
			head.complete()
			continue
		}

		// Case B: head event must precede. When no response is currently
		// queued for the head slot, further draining is only safe once
		// every allocated request has already been answered — otherwise a
		// response admitted later could still need to interpose ahead of
		// this event (spec.md §4.2's tie-break: equal eventIndex orders the
		// event first).
		noOutstandingRequest := s.requestSequence == s.responseSequence
		if headEvent != nil && ((hasHead && headEvent.event.EventIndex <= head.resp.EventIndex) ||
			(!hasHead && noOutstandingRequest)) {
			s.eventIndex = headEvent.event.EventIndex
			s.session.SetEventIndex(s.eventIndex)
			s.events = s.events[1:]
			s.log.Debugw("event drained", "eventIndex", headEvent.event.EventIndex)
			s.metrics.EventDrained()
			headEvent.complete()
			continue
		}

		return
	}
}
