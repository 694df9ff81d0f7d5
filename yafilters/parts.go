package yafilters

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// HasPart matches a message carrying at least one part of the given type.
func HasPart(partType yatypes.PartType) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		message, ok := event.(*yatypes.Message)
		if !ok {
			return false, nil
		}

		return message.HasPart(partType), nil
	}
}

// IsReply matches a message that quotes another message.
func IsReply() yadispatcher.Filter {
	return HasPart(yatypes.PartReply)
}

// IsForward matches a forwarded message.
func IsForward() yadispatcher.Filter {
	return HasPart(yatypes.PartForward)
}

// HasFile matches a message with a file attachment.
func HasFile() yadispatcher.Filter {
	return HasPart(yatypes.PartFile)
}

// MentionsUser matches a message mentioning the given user.
func MentionsUser(userID string) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		message, ok := event.(*yatypes.Message)
		if !ok {
			return false, nil
		}

		for _, part := range message.Parts {
			mention, ok := part.AsMention()
			if ok && mention.UserID == userID {
				return true, nil
			}
		}

		return false, nil
	}
}
