// Package yalogger defines the structured logging contract used by every
// long-lived component in the framework (dispatcher, server, listener,
// storage backends), plus a logrus-backed default implementation.
package yalogger

import "github.com/google/uuid"

// Config holds the options for the default logrus-backed logger.
type Config struct {
	Level            Level
	FullTimestamp    bool
	DisableTimestamp bool
	TimestampFormat  string
}

// Logger is a structured, leveled logging interface with context fields.
// With* methods return a derived logger and never mutate the receiver.
type Logger interface {
	Trace(msg string)
	Tracef(format string, args ...any)
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	// WithField returns a logger with one extra context field.
	//
	// Example:
	//
	//	log.WithField("chat_id", chatID).Info("message handled")
	WithField(key string, value any) Logger

	// WithFields returns a logger with several extra context fields.
	WithFields(fields map[string]any) Logger

	// WithRequestStringID returns a logger carrying a request correlation ID.
	WithRequestStringID(id string) Logger

	// WithRequestUUID returns a logger carrying a UUID correlation ID.
	WithRequestUUID(id uuid.UUID) Logger

	// WithRandomRequestID returns a logger carrying a freshly generated
	// correlation ID, for flows that have no external one (e.g. one polled
	// update travelling through the router tree).
	WithRandomRequestID() Logger

	// WithUserID returns a logger carrying the acting user's ID.
	WithUserID(userID string) Logger
}
