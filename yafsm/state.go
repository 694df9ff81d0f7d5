// Package yafsm implements the conversational finite-state machine: named
// states, the per-conversation storage contract with in-memory and Redis
// backends, and the Context façade handlers use to read and mutate state.
package yafsm

// State is a named slot inside a StatesGroup. Its canonical string form is
// "<GroupName>:<slotName>"; two states are equal iff their canonical strings
// match, and comparisons against plain strings go through Matches.
type State struct {
	group string
	name  string
}

// String returns the canonical "<GroupName>:<slotName>" form.
func (s State) String() string {
	return s.group + ":" + s.name
}

// Group returns the owning group name.
func (s State) Group() string {
	return s.group
}

// Name returns the slot name inside the group.
func (s State) Name() string {
	return s.name
}

// Matches reports whether the canonical form equals the given state string.
func (s State) Matches(state string) bool {
	return s.String() == state
}

// StatesGroup is a named collection of states describing one multi-step
// conversation.
//
// Example:
//
//	form := yafsm.NewStatesGroup("OrderForm")
//	waitingProduct := form.NewState("waiting_product")
//	confirm := form.NewState("confirm")
type StatesGroup struct {
	name   string
	states []State
}

// NewStatesGroup creates an empty group with the given name.
func NewStatesGroup(name string) *StatesGroup {
	return &StatesGroup{name: name}
}

// NewState registers a new slot in the group and returns it.
func (g *StatesGroup) NewState(name string) State {
	state := State{group: g.name, name: name}
	g.states = append(g.states, state)

	return state
}

// Name returns the group name.
func (g *StatesGroup) Name() string {
	return g.name
}

// States returns the registered states in registration order.
func (g *StatesGroup) States() []State {
	out := make([]State, len(g.states))
	copy(out, g.states)

	return out
}

// Contains reports whether the canonical state string belongs to this group.
func (g *StatesGroup) Contains(state string) bool {
	for _, s := range g.states {
		if s.Matches(state) {
			return true
		}
	}

	return false
}
