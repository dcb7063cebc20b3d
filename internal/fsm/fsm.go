// Package fsm defines the capture session lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateActivating State = "activating"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateError      State = "error"
)

const (
	EventActivate Event = "activate"
	EventStarted  Event = "started"
	EventStop     Event = "stop"
	EventStopped  Event = "stopped"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// Transition applies one event to a state and returns the next state.
// A session is single-flight: no state accepts a second activate, and a stop
// is only legal while running. Error is reachable from activating or running.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventActivate:
			return StateActivating, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActivating:
		switch event {
		case EventStarted:
			return StateRunning, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRunning:
		switch event {
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventStopped:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
