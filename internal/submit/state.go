package submit

import (
	"context"
	"fmt"
	"time"
)

// State is a step in the life of a single submission.
type State int

const (
	Idle State = iota
	Validating
	Rejected
	Enriching
	Uploading
	UploadFailed
	Composing
	Sending
	SendFailed
	Delivered
	// Busy means another submission for the same form instance was in flight.
	Busy
)

var stateNames = [...]string{
	Idle:         "idle",
	Validating:   "validating",
	Rejected:     "rejected",
	Enriching:    "enriching",
	Uploading:    "uploading",
	UploadFailed: "upload_failed",
	Composing:    "composing",
	Sending:      "sending",
	SendFailed:   "send_failed",
	Delivered:    "delivered",
	Busy:         "busy",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Idle, false
}

// Outcome reports whether s is a reportable end state.
func (s State) Outcome() bool {
	switch s {
	case Rejected, UploadFailed, SendFailed, Delivered, Busy:
		return true
	}
	return false
}

// transitions lists the legal successors of every state. Every outcome
// returns to Idle once reported.
var transitions = map[State][]State{
	Idle:         {Validating, Busy},
	Validating:   {Rejected, Enriching},
	Enriching:    {Uploading, Composing},
	Uploading:    {UploadFailed, Composing},
	Composing:    {Sending},
	Sending:      {SendFailed, Delivered},
	Rejected:     {Idle},
	UploadFailed: {Idle},
	SendFailed:   {Idle},
	Delivered:    {Idle},
	Busy:         {Idle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event describes one state change of a submission.
type Event struct {
	SubmissionID string
	Form         string
	From         State
	To           State
	// Elapsed is the time since the submission started.
	Elapsed time.Duration
	// Err is the cause when To is a failure outcome.
	Err error
}

// Observer receives every state change. Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}
