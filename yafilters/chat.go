package yafilters

import (
	"context"
	"slices"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// ChatTypeIn matches events originating in a chat of one of the given
// categories.
//
// Example:
//
//	router.Message().Register(groupOnly, yafilters.ChatTypeIn(yatypes.ChatTypeGroup))
func ChatTypeIn(types ...yatypes.ChatType) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		chat := event.EventChat()
		if chat == nil {
			return false, nil
		}

		return slices.Contains(types, chat.Type), nil
	}
}

// ChatIDIn matches events originating in one of the given chats.
func ChatIDIn(chatIDs ...string) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		chat := event.EventChat()
		if chat == nil {
			return false, nil
		}

		return slices.Contains(chatIDs, chat.ChatID), nil
	}
}

// SenderIn matches events caused by one of the given users.
func SenderIn(userIDs ...string) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (bool, error) {
		sender := event.EventSender()
		if sender == nil {
			return false, nil
		}

		return slices.Contains(userIDs, sender.UserID), nil
	}
}
