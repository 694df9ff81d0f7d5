package yafilters

import (
	"context"
	"regexp"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// maxRegexpTextLength caps the text fed to regex search, bounding regex cost
// on pathological inputs.
const maxRegexpTextLength = 8192

// regexpDataKey is the bag key the submatch slice is injected under.
const regexpDataKey = "regexp_match"

// RegexpMatchFromData returns the submatches a Regexp filter injected.
func RegexpMatchFromData(data *yadispatcher.Data) ([]string, bool) {
	value, ok := data.Get(regexpDataKey)
	if !ok {
		return nil, false
	}

	match, ok := value.([]string)

	return match, ok
}

// Regexp matches a message whose text (length-capped) contains the pattern,
// injecting the submatches.
//
// Example:
//
//	orderRe := regexp.MustCompile(`order #(\d+)`)
//	router.Message().Register(orderHandler, yafilters.Regexp(orderRe))
func Regexp(pattern *regexp.Regexp) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (bool, error) {
		message, ok := event.(*yatypes.Message)
		if !ok || message.Text == "" {
			return false, nil
		}

		text := message.Text
		if len(text) > maxRegexpTextLength {
			text = text[:maxRegexpTextLength]
		}

		match := pattern.FindStringSubmatch(text)
		if match == nil {
			return false, nil
		}

		data.Set(regexpDataKey, match)

		return true, nil
	}
}
