package orders

import "fmt"

var transitions = map[Action]map[Status]Status{
	ActionStart: {
		StatusOpen:         StatusInProgress,
		StatusWaitingParts: StatusInProgress,
	},
	ActionWaitParts: {
		StatusOpen:       StatusWaitingParts,
		StatusInProgress: StatusWaitingParts,
	},
	ActionFinish: {
		StatusInProgress:   StatusFinished,
		StatusWaitingParts: StatusFinished,
	},
	ActionCancel: {
		StatusOpen:         StatusCancelled,
		StatusInProgress:   StatusCancelled,
		StatusWaitingParts: StatusCancelled,
	},
	ActionReopen: {
		StatusFinished:  StatusOpen,
		StatusCancelled: StatusOpen,
	},
}

// Next returns the status reached by applying action to from.
func Next(from Status, action Action) (Status, error) {
	targets, ok := transitions[action]
	if !ok {
		return from, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	to, ok := targets[from]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// AllowedActions lists the actions valid from status.
func AllowedActions(from Status) []Action {
	var out []Action
	for _, a := range []Action{ActionStart, ActionWaitParts, ActionFinish, ActionCancel, ActionReopen} {
		if _, ok := transitions[a][from]; ok {
			out = append(out, a)
		}
	}
	return out
}
