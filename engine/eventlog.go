package engine

import "time"

const eventLogCap = 50

// LogEntry is one diagnostic event. Data is the opaque payload carried by
// the wire message, if any.
type LogEntry struct {
	At   time.Time
	Name string
	Data any
}

// eventLog is a bounded append-only ring: oldest entries are evicted first.
type eventLog struct {
	entries []LogEntry
}

func (l *eventLog) add(at time.Time, name string, data any) {
	l.entries = append(l.entries, LogEntry{At: at, Name: name, Data: data})
	if len(l.entries) > eventLogCap {
		l.entries = l.entries[len(l.entries)-eventLogCap:]
	}
}
