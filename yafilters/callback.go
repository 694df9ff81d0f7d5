package yafilters

import (
	"context"
	"regexp"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// CallbackDataEq matches a callback press with exactly the given payload.
func CallbackDataEq(callbackData string) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		query, ok := event.(*yatypes.CallbackQuery)
		if !ok {
			return false, nil
		}

		return query.CallbackData == callbackData, nil
	}
}

// CallbackDataRegexp matches a callback press whose payload matches the
// pattern, injecting the submatches.
func CallbackDataRegexp(pattern *regexp.Regexp) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (bool, error) {
		query, ok := event.(*yatypes.CallbackQuery)
		if !ok {
			return false, nil
		}

		match := pattern.FindStringSubmatch(query.CallbackData)
		if match == nil {
			return false, nil
		}

		data.Set(regexpDataKey, match)

		return true, nil
	}
}
