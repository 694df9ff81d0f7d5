package yatypes

import "encoding/json"

// PartType discriminates the entries of Message.Parts.
type PartType string

const (
	PartMention PartType = "mention"
	PartReply   PartType = "reply"
	PartForward PartType = "forward"
	PartFile    PartType = "file"
	PartSticker PartType = "sticker"
)

// InnerMessage is the quoted message inside a reply or forward part.
type InnerMessage struct {
	MsgID     string   `json:"msgId"`
	Text      string   `json:"text,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	From      *Contact `json:"from,omitempty"`
}

// ReplyPayload is the payload of a "reply" or "forward" part.
type ReplyPayload struct {
	Message InnerMessage `json:"message"`
}

// MentionPayload is the payload of a "mention" part.
type MentionPayload struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Nick      string `json:"nick,omitempty"`
}

// FilePayload is the payload of a "file" part.
type FilePayload struct {
	FileID  string `json:"fileId"`
	Type    string `json:"type,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Part is one typed fragment of a message (mention, reply, forward, file…).
// The payload stays raw; use the As* accessors to decode it on demand.
type Part struct {
	Type    PartType        `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AsReply decodes the payload of a reply or forward part.
func (p Part) AsReply() (ReplyPayload, bool) {
	if p.Type != PartReply && p.Type != PartForward {
		return ReplyPayload{}, false
	}

	var out ReplyPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return ReplyPayload{}, false
	}

	return out, true
}

// AsMention decodes the payload of a mention part.
func (p Part) AsMention() (MentionPayload, bool) {
	if p.Type != PartMention {
		return MentionPayload{}, false
	}

	var out MentionPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return MentionPayload{}, false
	}

	return out, true
}

// AsFile decodes the payload of a file part.
func (p Part) AsFile() (FilePayload, bool) {
	if p.Type != PartFile {
		return FilePayload{}, false
	}

	var out FilePayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return FilePayload{}, false
	}

	return out, true
}

// Message is the typed form of every message-family event (new, edited,
// deleted, pinned, unpinned). Edited messages carry EditedTimestamp.
type Message struct {
	Bound

	MsgID           string   `json:"msgId"`
	Chat            Chat     `json:"chat"`
	From            *Contact `json:"from,omitempty"`
	Text            string   `json:"text,omitempty"`
	Timestamp       int64    `json:"timestamp,omitempty"`
	EditedTimestamp int64    `json:"editedTimestamp,omitempty"`
	Parts           []Part   `json:"parts,omitempty"`
}

func (m *Message) EventChat() *Chat {
	if m.Chat.ChatID == "" {
		return nil
	}

	return &m.Chat
}

func (m *Message) EventSender() *Contact {
	return m.From
}

// IsEdited reports whether the message carries an edit timestamp.
func (m *Message) IsEdited() bool {
	return m.EditedTimestamp != 0
}

// HasPart reports whether any part of the given type is present.
func (m *Message) HasPart(t PartType) bool {
	for _, p := range m.Parts {
		if p.Type == t {
			return true
		}
	}

	return false
}
