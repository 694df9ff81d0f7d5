package yatypes

// Contact is the lightweight sender info attached to messages and callbacks.
// UserID is email-like (e.g. "user@company.ru").
type Contact struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Nick      string `json:"nick,omitempty"`
}

// User is a full user profile.
type User struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Nick      string `json:"nick,omitempty"`
	About     string `json:"about,omitempty"`
	IsBot     bool   `json:"isBot,omitempty"`
}
