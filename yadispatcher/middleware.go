package yadispatcher

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Next invokes the rest of a middleware chain and ultimately the terminal
// call.
type Next func(ctx context.Context, event yatypes.Event, data *Data) (any, error)

// Middleware wraps the terminal dispatch call. It may inspect or modify the
// event and data, short-circuit by not calling next, or rewrite the result on
// the way out. The first-registered middleware is outermost: it sees the
// event first and the result last.
type Middleware func(ctx context.Context, event yatypes.Event, data *Data, next Next) (any, error)

// chain builds a Next that walks the middleware list by index and ends at
// terminal. An explicit index walk keeps the composition allocation-free per
// event and easy to follow under cancellation.
func chain(middlewares []Middleware, terminal Next) Next {
	if len(middlewares) == 0 {
		return terminal
	}

	var step func(index int) Next

	step = func(index int) Next {
		if index == len(middlewares) {
			return terminal
		}

		return func(ctx context.Context, event yatypes.Event, data *Data) (any, error) {
			return middlewares[index](ctx, event, data, step(index+1))
		}
	}

	return step(0)
}

// ErrorMiddleware converts uncaught handler errors into delegated error
// events on the given router. Flow-control signals pass through untouched.
// If the error category itself yields Unhandled, the original error is
// re-raised so an outer layer can decide.
func ErrorMiddleware(router *Router) Middleware {
	return func(ctx context.Context, event yatypes.Event, data *Data, next Next) (any, error) {
		result, err := next(ctx, event, data)
		if err == nil || isFlowControl(err) {
			return result, err
		}

		errEvent := &ErrorEvent{Err: err, Source: event, Update: data.RawEvent}

		rerouted, rerr := router.PropagateEvent(ctx, CategoryError, errEvent, data.Clone())
		if rerr != nil {
			return nil, rerr
		}

		if IsUnhandled(rerouted) {
			return nil, err
		}

		return rerouted, nil
	}
}
