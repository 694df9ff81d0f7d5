package yadispatcher

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Filter is a predicate over an incoming event. A matching filter may inject
// extra named values into the Data bag for later filters in the same chain
// and ultimately the handler. Filters must be safe to call repeatedly with
// the same event, since several handlers may be probed per event.
type Filter func(ctx context.Context, event yatypes.Event, data *Data) (bool, error)

// And combines filters so that all must match; evaluation short-circuits on
// the first non-match, and injected values accumulate left to right.
func And(filters ...Filter) Filter {
	return func(ctx context.Context, event yatypes.Event, data *Data) (bool, error) {
		for _, filter := range filters {
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
}

// Or combines filters so that the first match wins. Values injected by
// non-matching alternatives are probed against a throwaway copy of the bag,
// so only the winning branch's injections survive.
func Or(filters ...Filter) Filter {
	return func(ctx context.Context, event yatypes.Event, data *Data) (bool, error) {
		for _, filter := range filters {
			probe := data.Clone()

			ok, err := filter(ctx, event, probe)
			if err != nil {
				return false, err
			}

			if ok {
				*data = *probe

				return true, nil
			}
		}

		return false, nil
	}
}

// Not inverts a filter. Values the inner filter injects are discarded either
// way.
func Not(filter Filter) Filter {
	return func(ctx context.Context, event yatypes.Event, data *Data) (bool, error) {
		ok, err := filter(ctx, event, data.Clone())
		if err != nil {
			return false, err
		}

		return !ok, nil
	}
}
