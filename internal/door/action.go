package door

import (
	"errors"
	"fmt"
)

// ErrInvalidAction is returned for any action outside OPEN, CLOSE and STOP.
var ErrInvalidAction = errors.New("door: invalid action")

// Action is a command the door controller understands.
type Action string

// Supported actions. The wire form is the bare string.
const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
	ActionStop  Action = "STOP"
)

// Actions lists every valid action.
func Actions() []Action {
	return []Action{ActionOpen, ActionClose, ActionStop}
}

// ParseAction validates s. Matching is exact and case-sensitive.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q (want OPEN, CLOSE or STOP)", ErrInvalidAction, s)
	}
	return a, nil
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	switch a {
	case ActionOpen, ActionClose, ActionStop:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// Source records where a delivered command came from.
type Source string

const (
	SourceApp       Source = "APP"
	SourceScheduled Source = "SCHEDULED"
)

// Valid reports whether s is APP or SCHEDULED.
func (s Source) Valid() bool {
	return s == SourceApp || s == SourceScheduled
}

func (s Source) String() string { return string(s) }
