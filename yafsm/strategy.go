package yafsm

// Strategy decides how storage keys are derived from an event's chat and
// user IDs.
type Strategy uint8

const (
	// StrategyUserInChat keeps independent state per user per chat.
	StrategyUserInChat Strategy = iota

	// StrategyChat shares state between all users of a chat.
	StrategyChat

	// StrategyGlobalUser follows the user across chats.
	StrategyGlobalUser
)

// BuildKey derives the storage key for the given identities under this
// strategy, with the default destiny.
func (s Strategy) BuildKey(botID, chatID, userID string) StorageKey {
	key := StorageKey{
		BotID:   botID,
		ChatID:  chatID,
		UserID:  userID,
		Destiny: DefaultDestiny,
	}

	switch s {
	case StrategyUserInChat:
	case StrategyChat:
		key.UserID = ""
	case StrategyGlobalUser:
		key.ChatID = ""
	}

	return key
}
