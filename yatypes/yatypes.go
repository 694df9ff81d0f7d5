// Package yatypes holds the typed event objects bound from raw VK Teams
// long-poll payloads. The dispatcher resolves every raw update into one of
// these before it enters the router tree; after that point the objects are
// read-only by convention.
package yatypes

import "encoding/json"

// EventType is the wire-level type tag of a raw update.
type EventType string

const (
	EventNewMessage      EventType = "newMessage"
	EventEditedMessage   EventType = "editedMessage"
	EventDeletedMessage  EventType = "deletedMessage"
	EventPinnedMessage   EventType = "pinnedMessage"
	EventUnpinnedMessage EventType = "unpinnedMessage"
	EventNewChatMembers  EventType = "newChatMembers"
	EventLeftChatMembers EventType = "leftChatMembers"
	EventChangedChatInfo EventType = "changedChatInfo"
	EventCallbackQuery   EventType = "callbackQuery"
)

// Update is one raw entry from the events/get long poll. The payload stays
// opaque until the dispatcher binds it to a typed event.
type Update struct {
	EventID int64           `json:"eventId"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is implemented by every typed event that can travel through the
// router tree. Events that cannot originate a conversation return nil from
// both accessors.
type Event interface {
	// EventChat returns the chat the event happened in, if any.
	EventChat() *Chat

	// EventSender returns the user who caused the event, if any.
	EventSender() *Contact
}

// Bound carries the opaque bot API client reference attached during event
// resolution, so handlers can reach the client that produced the event.
type Bound struct {
	bot any
}

// SetBot attaches the bot API client reference.
func (b *Bound) SetBot(bot any) {
	b.bot = bot
}

// Bot returns the attached bot API client reference, or nil.
func (b *Bound) Bot() any {
	return b.bot
}
