package yadispatcher

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Callback is a registered handler body. Returning ErrSkipHandler or
// ErrCancelChain steers the matching loop; any other non-nil error is routed
// through the error category.
type Callback func(ctx context.Context, event yatypes.Event, data *Data) (any, error)

// Handler is one registered callback with its AND-combined filter list and an
// optional flags bag. Handlers are created at registration time and never
// mutated afterwards.
type Handler struct {
	callback Callback
	filters  []Filter
	flags    map[string]any
}

func newHandler(callback Callback, filters ...Filter) *Handler {
	return &Handler{
		callback: callback,
		filters:  filters,
	}
}

// WithFlag attaches an arbitrary flag readable by middleware. Call it at
// registration time only.
func (h *Handler) WithFlag(key string, value any) *Handler {
	if h.flags == nil {
		h.flags = make(map[string]any)
	}

	h.flags[key] = value

	return h
}

// Flag returns a registration-time flag.
func (h *Handler) Flag(key string) (any, bool) {
	value, ok := h.flags[key]

	return value, ok
}

// check runs the filter list in order against the event. The first
// non-matching filter aborts; matching filters may have injected values into
// data. An empty filter list is an unconditional match.
func (h *Handler) check(
	ctx context.Context,
	event yatypes.Event,
	data *Data,
) (bool, error) {
	for _, filter := range h.filters {
		ok, err := filter(ctx, event, data)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (h *Handler) call(
	ctx context.Context,
	event yatypes.Event,
	data *Data,
) (any, error) {
	return h.callback(ctx, event, data)
}
