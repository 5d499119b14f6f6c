package events

import "time"

// Dispatch modes.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// DispatchStart is emitted once the dispatcher has decided how to run a payload.
type DispatchStart struct {
	Mode       string
	Operations int
}

// DispatchFinish is emitted after the executor returned, or normalization failed.
type DispatchFinish struct {
	Mode       string
	Operations int
	Err        error
	Duration   time.Duration
}
