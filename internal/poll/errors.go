package poll

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound signals that the job-status endpoint has no result for the
// subject yet. Fetchers return it (possibly wrapped) for "not found" style
// failures; the session treats it as "not ready yet" and keeps polling.
var ErrNotFound = errors.New("analysis result not found")

// TimeoutError is the only error that crosses the component boundary. It is
// delivered exactly once via a session's onError callback when the attempt
// budget runs out without a complete result.
type TimeoutError struct {
	Key      string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling for %q gave up after %d attempts without a complete result", e.Key, e.Attempts)
}

// State is a poll session's lifecycle state. All states other than
// StatePolling are terminal.
type State int

const (
	StatePolling State = iota
	// StateDelivered: a fresh, complete result was handed to onUpdate.
	StateDelivered
	// StateTimedOut: the attempt budget was exhausted; onError was invoked.
	StateTimedOut
	// StateCancelled: explicit Stop or replacement by a new Start for the
	// same key. Silent -- no callback is invoked.
	StateCancelled
)

var stateNames = map[State]string{
	StatePolling:   "polling",
	StateDelivered: "delivered",
	StateTimedOut:  "timed_out",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
