package yadispatcher

import (
	"maps"

	"github.com/YaCodeDev/GoVKTeamsBot/yafsm"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Data is the typed extras record travelling with an event through filters,
// middleware and handlers. Fixed cross-cutting extras live in named fields;
// filters contribute ad-hoc extras through the named-value bag, and handlers
// read back only the entries they care about.
type Data struct {
	// Bot is the API client the event arrived on.
	Bot any

	// RawEvent is the raw polled update the event was resolved from.
	RawEvent *yatypes.Update

	// EventType is the wire-level type tag of the raw update, preserved
	// even when edited messages are re-tagged into the message category.
	EventType yatypes.EventType

	// FSM is the per-conversation state façade, nil for contextless events.
	FSM *yafsm.Context

	// CurrentState is the FSM state string resolved before dispatch,
	// yafsm.NoState when no state is set or no FSM context is attached.
	CurrentState string

	// Chat and FromUser are the event's conversation coordinates, nil when
	// the event kind does not carry them.
	Chat     *yatypes.Chat
	FromUser *yatypes.Contact

	values map[string]any
}

// Set stores a filter-injected named value.
func (d *Data) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}

	d.values[key] = value
}

// Get returns a filter-injected named value.
func (d *Data) Get(key string) (any, bool) {
	value, ok := d.values[key]

	return value, ok
}

// Clone returns a copy whose named-value bag is independent of the original,
// so values injected while probing one handler never leak into the next
// handler's probe.
func (d *Data) Clone() *Data {
	clone := *d
	clone.values = maps.Clone(d.values)

	return &clone
}
