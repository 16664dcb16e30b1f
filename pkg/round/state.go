package round

import (
	"errors"
	"slices"
)

var ErrInvalidTransition = errors.New("invalid round state transition")

type State uint8

const (
	NotStarted State = iota
	Initializing
	Training
	Aggregating
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Initializing:
		return "Initializing"
	case Training:
		return "Training"
	case Aggregating:
		return "Aggregating"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	NotStarted:   {Initializing, Training, Failed},
	Initializing: {Training, Failed},
	Training:     {Aggregating, Failed},
	Aggregating:  {Completed, Failed},
	Completed:    {}, // Terminal state
	Failed:       {}, // Terminal state
}

func ValidateTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}

	return slices.Contains(allowed, to)
}

func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

type machine struct {
	state State
}

func (m *machine) to(next State) error {
	if !ValidateTransition(m.state, next) {
		return ErrInvalidTransition
	}
	m.state = next

	return nil
}
