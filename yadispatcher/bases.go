// Package yadispatcher implements the event dispatch core: the Router tree
// with one Observer per event category, ordered handler matching with
// AND-combined filters, middleware chains, and the Dispatcher that long-polls
// bot clients, resolves raw updates into typed events, attaches FSM context
// and feeds everything through the tree.
package yadispatcher

import "errors"

// unhandled is the type of the Unhandled sentinel. A dedicated type makes the
// sentinel impossible to fake with a plain value and gives it a distinct
// debug rendering.
type unhandled struct{}

// String renders the sentinel distinctly in logs and debug output.
func (unhandled) String() string {
	return "UNHANDLED"
}

// Unhandled is the distinguished result meaning "no handler in this subtree
// matched". It is distinct from nil, which is a legitimate handler return
// value.
var Unhandled any = unhandled{}

// IsUnhandled reports whether a propagation result is the Unhandled sentinel.
func IsUnhandled(result any) bool {
	_, ok := result.(unhandled)

	return ok
}

// ErrSkipHandler is returned from a handler body to abandon its result and
// continue probing later handlers for the same event, as if this handler had
// not matched.
var ErrSkipHandler = errors.New("skip handler")

// ErrCancelChain is returned from a handler body to stop trying further
// handlers for this event in the current observer. Propagation still moves on
// to sibling routers as normal.
var ErrCancelChain = errors.New("cancel handler chain")

// isFlowControl reports whether err is one of the matching-loop signals that
// must never be treated as a fault.
func isFlowControl(err error) bool {
	return errors.Is(err, ErrSkipHandler) || errors.Is(err, ErrCancelChain)
}
