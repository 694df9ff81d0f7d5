package yatypes

// CallbackQuery is an inline keyboard button press.
//
// The wire format nests chat and sender inside the original message;
// Normalize lifts them to the top level so filters can treat callbacks like
// any other conversation-originating event.
type CallbackQuery struct {
	Bound

	QueryID      string   `json:"queryId"`
	Chat         *Chat    `json:"chat,omitempty"`
	From         *Contact `json:"from,omitempty"`
	Message      *Message `json:"message,omitempty"`
	CallbackData string   `json:"callbackData,omitempty"`
}

// Normalize fills Chat and From from the embedded message when the API left
// them off the top level.
func (q *CallbackQuery) Normalize() {
	if q.Message == nil {
		return
	}

	if q.Chat == nil && q.Message.Chat.ChatID != "" {
		q.Chat = &q.Message.Chat
	}

	if q.From == nil {
		q.From = q.Message.From
	}
}

func (q *CallbackQuery) EventChat() *Chat {
	return q.Chat
}

func (q *CallbackQuery) EventSender() *Contact {
	return q.From
}
