package yatypes

// ChatType discriminates private dialogs, groups and channels.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
	ChatTypeChannel ChatType = "channel"
)

// Chat identifies the conversation an event belongs to.
type Chat struct {
	ChatID string   `json:"chatId"`
	Type   ChatType `json:"type"`
	Title  string   `json:"title,omitempty"`
}
