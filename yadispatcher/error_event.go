package yadispatcher

import "github.com/YaCodeDev/GoVKTeamsBot/yatypes"

// ErrorEvent is the payload delivered to the error category when a handler
// or filter fails. It proxies the conversation coordinates of the event that
// caused the failure, so error handlers can answer in the originating chat.
type ErrorEvent struct {
	yatypes.Bound

	// Err is the failure that triggered rerouting.
	Err error

	// Source is the typed event whose handling failed, nil when resolution
	// itself failed.
	Source yatypes.Event

	// Update is the raw update the event was resolved from.
	Update *yatypes.Update
}

func (e *ErrorEvent) EventChat() *yatypes.Chat {
	if e.Source == nil {
		return nil
	}

	return e.Source.EventChat()
}

func (e *ErrorEvent) EventSender() *yatypes.Contact {
	if e.Source == nil {
		return nil
	}

	return e.Source.EventSender()
}

func (e *ErrorEvent) Error() string {
	if e.Err == nil {
		return "unknown dispatch error"
	}

	return e.Err.Error()
}

// Unwrap exposes the underlying failure to errors.Is and errors.As.
func (e *ErrorEvent) Unwrap() error {
	return e.Err
}
