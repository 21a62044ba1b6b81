// Package sessionstate holds the per-client Raft session counters the
// sequencer reads at construction and publishes to as it drains: the
// highest issued command request, the highest delivered response index,
// and the highest delivered event index (spec.md §6).
package sessionstate

import (
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the session-state collaborator consumed by internal/sequencer.
// All three counters are monotonic: setters never regress a counter, so
// callers never need to compare before calling one.
type State struct {
	SessionID string

	commandRequest atomic.Uint64
	responseIndex  atomic.Uint64
	eventIndex     atomic.Uint64

	log *zap.SugaredLogger
}

// Option configures a State at construction.
type Option func(*State)

// WithLogger attaches structured logging of counter advances. The default
// is a no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *State) { s.log = log }
}

// WithSessionID overrides the generated session identifier, for tests and
// for resuming a previously established session.
func WithSessionID(id string) Option {
	return func(s *State) { s.SessionID = id }
}

// New returns a State with all counters zeroed and a freshly generated
// session id, unless overridden by WithSessionID.
func New(opts ...Option) *State {
	s := &State{
		SessionID: uuid.NewString(),
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CommandRequest returns the highest command request sequence issued.
func (s *State) CommandRequest() uint64 { return s.commandRequest.Load() }

// ResponseIndex returns the highest state-machine index for which a
// response has been delivered.
func (s *State) ResponseIndex() uint64 { return s.responseIndex.Load() }

// EventIndex returns the highest event index delivered to the application.
func (s *State) EventIndex() uint64 { return s.eventIndex.Load() }

// SetCommandRequest advances commandRequest to v if v is greater than the
// current value.
func (s *State) SetCommandRequest(v uint64) {
	if monotonicMax(&s.commandRequest, v) {
		s.log.Debugw("commandRequest advanced", "session", s.SessionID, "value", v)
	}
}

// SetResponseIndex advances responseIndex to v if v is greater than the
// current value.
func (s *State) SetResponseIndex(v uint64) {
	if monotonicMax(&s.responseIndex, v) {
		s.log.Debugw("responseIndex advanced", "session", s.SessionID, "value", v)
	}
}

// SetEventIndex advances eventIndex to v if v is greater than the current
// value.
func (s *State) SetEventIndex(v uint64) {
	if monotonicMax(&s.eventIndex, v) {
		s.log.Debugw("eventIndex advanced", "session", s.SessionID, "value", v)
	}
}

// monotonicMax CASes counter up to v if v exceeds its current value. It
// reports whether the counter was advanced.
func monotonicMax(counter *atomic.Uint64, v uint64) bool {
	for {
		cur := counter.Load()
		if v <= cur {
			return false
		}
		if counter.CompareAndSwap(cur, v) {
			return true
		}
	}
}
