// Package event defines the progress events the engines emit and presenters
// consume. Sends never block; a slow presenter drops samples, not bytes.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	JobStarted Type = iota + 1
	ShardStarted
	Progress
	ShardCompleted
	ShardFailed
	Flushing
	VerifyComputed
	VerifyMismatch
	JobCompleted
)

var typeNames = [...]string{
	JobStarted:     "JobStarted",
	ShardStarted:   "ShardStarted",
	Progress:       "Progress",
	ShardCompleted: "ShardCompleted",
	ShardFailed:    "ShardFailed",
	Flushing:       "Flushing",
	VerifyComputed: "VerifyComputed",
	VerifyMismatch: "VerifyMismatch",
	JobCompleted:   "JobCompleted",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress sample from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Shard     int    // shard index; -1 for job-level events
	Blocks    int64  // blocks copied so far (by this shard, for shard events)
	Bytes     int64  // bytes copied so far
	Digest    string // VerifyComputed / VerifyMismatch
	Error     error
}

// Emit sends e on ch with a fresh timestamp, dropping it if the channel is
// full or nil.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
