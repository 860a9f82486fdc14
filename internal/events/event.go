// Package events implements the non-blocking lifecycle event bus described
// in §4.6: a bounded, per-subscriber broadcast of plain-value build events.
package events

// Kind identifies the shape of an Event's populated fields.
type Kind string

const (
	BuildStarted  Kind = "BuildStarted"
	BuildFinished Kind = "BuildFinished"
	TaskStarted   Kind = "TaskStarted"
	TaskFinished  Kind = "TaskFinished"
	LogMessage    Kind = "LogMessage"
	CacheStats    Kind = "CacheStats"
	DroppedEvents Kind = "DroppedEvents"
)

// Event is a plain value carrying only primitive fields, per §4.6/§6. Only
// the fields relevant to Kind are populated; the rest are zero values.
type Event struct {
	Kind Kind

	// BuildFinished
	Success bool

	// TaskStarted / TaskFinished / LogMessage
	TaskName string

	// TaskFinished
	DurationMS  int64
	Cached      bool
	CacheSource string
	Failed      bool

	// LogMessage
	Level string
	Text  string

	// CacheStats
	LocalHits    int
	RemoteHits   int
	Misses       int
	BytesAvoided int64

	// DroppedEvents
	DroppedCount int
}
