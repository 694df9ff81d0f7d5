package yadispatcher

import (
	"context"
	"errors"

	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Observer owns the ordered handler list for one event category plus two
// middleware chains: the local chain wraps this observer's own handler
// matching, the outer chain wraps the whole subtree propagation for this
// category (root-level cross-cutting concerns).
//
// Registration is setup-time only; Trigger is read-only over the lists.
type Observer struct {
	handlers        []*Handler
	middlewares     []Middleware
	outerMiddleware []Middleware
}

// Register appends a handler with its filters and returns it so flags can be
// attached.
//
// Example:
//
//	router.Message().Register(pingHandler, yafilters.Command("ping"))
func (o *Observer) Register(callback Callback, filters ...Filter) *Handler {
	handler := newHandler(callback, filters...)
	o.handlers = append(o.handlers, handler)

	return handler
}

// Use appends a middleware to the local chain. The first registered runs
// outermost.
func (o *Observer) Use(middleware Middleware) {
	o.middlewares = append(o.middlewares, middleware)
}

// UseOuter appends a middleware to the outer chain, which wraps the whole
// subtree propagation for this category, not just this observer's own
// matching step.
func (o *Observer) UseOuter(middleware Middleware) {
	o.outerMiddleware = append(o.outerMiddleware, middleware)
}

// Trigger probes handlers in registration order and returns the first match's
// result. Each probe runs against its own clone of the data bag, so
// filter-injected values never leak between handlers. A handler returning
// ErrSkipHandler is treated as a non-match; ErrCancelChain stops the loop.
// When nothing matches the result is the Unhandled sentinel.
func (o *Observer) Trigger(
	ctx context.Context,
	event yatypes.Event,
	data *Data,
) (any, error) {
	terminal := func(ctx context.Context, event yatypes.Event, data *Data) (any, error) {
		for _, handler := range o.handlers {
			probe := data.Clone()

			ok, err := handler.check(ctx, event, probe)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			result, err := handler.call(ctx, event, probe)
			if err != nil {
				if errors.Is(err, ErrSkipHandler) {
					continue
				}

				if errors.Is(err, ErrCancelChain) {
					break
				}

				return nil, err
			}

			return result, nil
		}

		return Unhandled, nil
	}

	return chain(o.middlewares, terminal)(ctx, event, data)
}

// wrapOuter composes the outer middleware chain around the given subtree
// propagation call.
func (o *Observer) wrapOuter(inner Next) Next {
	return chain(o.outerMiddleware, inner)
}
