package checkout

import (
	"errors"
	"fmt"
)

// State is the position of a checkout attempt.
type State string

const (
	StateIdle                  State = "Idle"
	StateAwaitingExternalOrder State = "AwaitingExternalOrder"
	StateAwaitingUserPayment   State = "AwaitingUserPayment"
	StateVerifying             State = "Verifying"
	StateFinalizing            State = "Finalizing"
	StateComplete              State = "Complete"
	StateFailed                State = "Failed"
)

// Terminal reports whether no event can move the attempt any further.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// Event drives a transition.
type Event string

const (
	EventSubmit         Event = "submit"
	EventOrderMinted    Event = "order_minted"
	EventMintFailed     Event = "mint_failed"
	EventDismissed      Event = "dismissed"
	EventGaveUp         Event = "gave_up"
	EventPaid           Event = "paid"
	EventSignatureOK    Event = "signature_ok"
	EventSignatureBad   Event = "signature_bad"
	EventFinalized      Event = "finalized"
	EventFinalizeFailed Event = "finalize_failed"
)

var ErrInvalidTransition = errors.New("invalid checkout transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventSubmit: StateAwaitingExternalOrder,
	},
	StateAwaitingExternalOrder: {
		EventOrderMinted: StateAwaitingUserPayment,
		EventMintFailed:  StateFailed,
	},
	StateAwaitingUserPayment: {
		EventDismissed: StateAwaitingExternalOrder,
		EventGaveUp:    StateFailed,
		EventPaid:      StateVerifying,
	},
	StateVerifying: {
		EventSignatureOK:  StateFinalizing,
		EventSignatureBad: StateFailed,
	},
	StateFinalizing: {
		EventFinalized:      StateComplete,
		EventFinalizeFailed: StateFailed,
	},
}

// Next returns the state e leads to from s.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}
