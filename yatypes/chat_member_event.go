package yatypes

// NewChatMembersEvent fires when members join a chat ("newChatMembers").
type NewChatMembersEvent struct {
	Bound

	Chat       Chat      `json:"chat"`
	NewMembers []Contact `json:"newMembers,omitempty"`
	AddedBy    *Contact  `json:"addedBy,omitempty"`
}

func (e *NewChatMembersEvent) EventChat() *Chat {
	if e.Chat.ChatID == "" {
		return nil
	}

	return &e.Chat
}

func (e *NewChatMembersEvent) EventSender() *Contact {
	return e.AddedBy
}

// LeftChatMembersEvent fires when members leave a chat ("leftChatMembers").
type LeftChatMembersEvent struct {
	Bound

	Chat        Chat      `json:"chat"`
	LeftMembers []Contact `json:"leftMembers,omitempty"`
	RemovedBy   *Contact  `json:"removedBy,omitempty"`
}

func (e *LeftChatMembersEvent) EventChat() *Chat {
	if e.Chat.ChatID == "" {
		return nil
	}

	return &e.Chat
}

func (e *LeftChatMembersEvent) EventSender() *Contact {
	return e.RemovedBy
}

// ChangedChatInfoEvent fires when chat info changes ("changedChatInfo"):
// title, about, rules, avatar, invite link and so on.
type ChangedChatInfoEvent struct {
	Bound

	Chat      Chat     `json:"chat"`
	ChangedBy *Contact `json:"from,omitempty"`
	NewTitle  string   `json:"newTitle,omitempty"`
	NewAbout  string   `json:"newAbout,omitempty"`
	NewRules  string   `json:"newRules,omitempty"`
}

func (e *ChangedChatInfoEvent) EventChat() *Chat {
	if e.Chat.ChatID == "" {
		return nil
	}

	return &e.Chat
}

func (e *ChangedChatInfoEvent) EventSender() *Contact {
	return e.ChangedBy
}
