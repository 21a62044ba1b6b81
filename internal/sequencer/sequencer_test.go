package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is a minimal SessionState for tests that don't need
// sessionstate.State's uuid/zap machinery.
type fakeSession struct {
	commandRequest uint64
	responseIndex  uint64
	eventIndex     uint64
}

func (f *fakeSession) CommandRequest() uint64 { return f.commandRequest }
func (f *fakeSession) ResponseIndex() uint64  { return f.responseIndex }
func (f *fakeSession) EventIndex() uint64     { return f.eventIndex }

func (f *fakeSession) SetCommandRequest(v uint64) {
	if v > f.commandRequest {
		f.commandRequest = v
	}
}
func (f *fakeSession) SetResponseIndex(v uint64) {
	if v > f.responseIndex {
		f.responseIndex = v
	}
}
func (f *fakeSession) SetEventIndex(v uint64) {
	if v > f.eventIndex {
		f.eventIndex = v
	}
}

// fires records completion order across responses and events so tests can
// assert on the interleaved total order spec.md §4.2 requires.
type fires struct {
	order []string
}

func (f *fires) response(seq uint64) func() {
	return func() { f.order = append(f.order, responseLabel(seq)) }
}

func (f *fires) event(idx uint64) func() {
	return func() { f.order = append(f.order, eventLabel(idx)) }
}

func responseLabel(seq uint64) string { return "R" + itoa(seq) }
func eventLabel(idx uint64) string    { return "E" + itoa(idx) }

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

// Scenario 1: event before command, both at the same event index.
func TestDrain_EventBeforeResponse_SameIndex(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	got := seq.NextRequest()
	require.Equal(t, uint64(1), got)

	seq.SequenceEvent(Event{EventIndex: 1, PreviousIndex: 0}, f.event(1))
	seq.SequenceResponse(1, Response{Kind: Command, Index: 2, EventIndex: 1}, f.response(1))

	assert.Equal(t, []string{"E1", "R1"}, f.order)
}

// Scenario 3: event after response, no overlap in indices.
func TestDrain_EventAfterResponse_NoOverlap(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	seq.NextRequest()
	seq.SequenceResponse(1, Response{Kind: Command, Index: 2, EventIndex: 1}, f.response(1))
	// Response fires immediately: no event is pending.
	assert.Equal(t, []string{"R1"}, f.order)

	seq.SequenceEvent(Event{EventIndex: 2, PreviousIndex: 1}, f.event(2))
	assert.Equal(t, []string{"R1", "E2"}, f.order)
}

// Scenario 4: multiple events surrounding a response.
func TestDrain_MultipleEventsSurroundingResponse(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	seq.NextRequest()
	seq.SequenceEvent(Event{EventIndex: 2, PreviousIndex: 0}, f.event(2))
	seq.SequenceEvent(Event{EventIndex: 3, PreviousIndex: 2}, f.event(3))
	// Neither event can safely fire yet: request 1 is outstanding and
	// either event might still need to interpose around its response.
	assert.Empty(t, f.order)

	seq.SequenceResponse(1, Response{Kind: Command, Index: 2, EventIndex: 2}, f.response(1))

	assert.Equal(t, []string{"E2", "R1", "E3"}, f.order)
}

// Scenario 5: out-of-order response delivery.
func TestDrain_OutOfOrderResponses(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	seq.NextRequest()
	seq.NextRequest()

	seq.SequenceResponse(2, Response{Kind: Command, Index: 2, EventIndex: 0}, f.response(2))
	assert.Empty(t, f.order, "response for seq 2 must wait for seq 1")

	seq.SequenceResponse(1, Response{Kind: Command, Index: 2, EventIndex: 0}, f.response(1))
	assert.Equal(t, []string{"R1", "R2"}, f.order)
}

// Scenario 6: missing-event recovery.
func TestDrain_MissingEventRecovery(t *testing.T) {
	session := &fakeSession{commandRequest: 2, eventIndex: 5}
	seq := New(session)
	seq.responseSequence = 1 // one of the two allocated requests already answered
	f := &fires{}

	seq.SequenceResponse(2, Response{Kind: Command, Index: 20, EventIndex: 10}, f.response(2))
	assert.Equal(t, []string{"R2"}, f.order, "response fires immediately; no event is pending")

	seq.SequenceEvent(Event{EventIndex: 25, PreviousIndex: 5}, f.event(25))
	assert.Equal(t, []string{"R2", "E25"}, f.order)

	assert.Equal(t, uint64(25), seq.eventIndex)
	assert.Equal(t, uint64(2), seq.responseSequence)
}

func TestSequenceEvent_CausalGapDropped(t *testing.T) {
	session := &fakeSession{eventIndex: 5}
	seq := New(session)
	f := &fires{}

	seq.SequenceEvent(Event{EventIndex: 9, PreviousIndex: 8}, f.event(9))

	assert.Empty(t, f.order)
	assert.Equal(t, uint64(5), seq.eventIndex)
}

func TestSequenceEvent_BoundaryEqualPreviousIndexAdmitted(t *testing.T) {
	session := &fakeSession{eventIndex: 5}
	seq := New(session)
	f := &fires{}

	seq.SequenceEvent(Event{EventIndex: 6, PreviousIndex: 5}, f.event(6))

	assert.Equal(t, []string{"E6"}, f.order)
}

func TestSequenceResponse_StaleDropped(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	seq.NextRequest()
	f := &fires{}

	seq.SequenceResponse(1, Response{Kind: Command, Index: 5}, f.response(1))
	require.Equal(t, []string{"R1"}, f.order)

	// Re-admitting the same, already-delivered sequence is a no-op.
	seq.SequenceResponse(1, Response{Kind: Command, Index: 5}, f.response(1))
	assert.Equal(t, []string{"R1"}, f.order)
}

func TestSequenceResponse_NeverAllocatedDropped(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	// requestSequence is still 0: sequence 7 was never allocated.
	seq.SequenceResponse(7, Response{Kind: Command, Index: 5}, f.response(7))

	assert.Empty(t, f.order)
}

func TestSequenceResponse_QueryNeverBlocksOnEvents(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	seq.NextRequest()
	seq.SequenceResponse(1, Response{Kind: Query, Index: 0, EventIndex: 0}, f.response(1))

	assert.Equal(t, []string{"R1"}, f.order)
}

func TestSequenceResponse_DuplicateSequencePanics(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	seq.NextRequest()
	seq.NextRequest()

	// seq 2's response is queued but cannot drain yet (seq 1 is still
	// outstanding), so a second admission for the same sequence hits the
	// still-pending record and must panic.
	seq.SequenceResponse(2, Response{Kind: Command, Index: 1}, func() {})

	assert.Panics(t, func() {
		seq.SequenceResponse(2, Response{Kind: Command, Index: 1}, func() {})
	})
}

func TestDrain_Idempotent(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)
	f := &fires{}

	seq.NextRequest()
	seq.SequenceResponse(1, Response{Kind: Command, Index: 2}, f.response(1))
	require.Equal(t, []string{"R1"}, f.order)

	seq.drain()
	seq.drain()

	assert.Equal(t, []string{"R1"}, f.order, "draining with no new admissions fires nothing further")
}

func TestNextRequest_AdvancesSessionCommandRequest(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)

	first := seq.NextRequest()
	second := seq.NextRequest()

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
	assert.Equal(t, uint64(2), session.CommandRequest())
}

func TestSequenceResponse_PublishesResponseIndexMonotonicMax(t *testing.T) {
	session := &fakeSession{}
	seq := New(session)

	seq.NextRequest()
	seq.SequenceResponse(1, Response{Kind: Command, Index: 42}, func() {})

	assert.Equal(t, uint64(42), session.ResponseIndex())
}
