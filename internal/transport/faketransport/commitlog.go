package faketransport

// committedLog adapts the teacher's raftLog bookkeeping (raft/log.go:
// an append-only, index-addressed slice with a dummy first entry) to a new
// purpose: assigning deterministic state-machine and event indices for the
// fake transport, instead of replicating a real consensus log.
type committedLog struct {
	entries []commitEntry
}

type commitEntry struct {
	index      uint64
	eventIndex uint64
}

func newCommittedLog() *committedLog {
	return &committedLog{entries: make([]commitEntry, 1)} // dummy entry at index 0
}

func (l *committedLog) lastIndex() uint64 {
	return l.entries[len(l.entries)-1].index
}

func (l *committedLog) lastEventIndex() uint64 {
	return l.entries[len(l.entries)-1].eventIndex
}

// append commits the next state-machine index, optionally bumping the
// event index by eventDelta (0 for reads that produce no event).
func (l *committedLog) append(eventDelta uint64) commitEntry {
	e := commitEntry{
		index:      l.lastIndex() + 1,
		eventIndex: l.lastEventIndex() + eventDelta,
	}
	l.entries = append(l.entries, e)
	return e
}
