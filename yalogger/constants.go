package yalogger

import "errors"

// Level mirrors logrus levels in increasing verbosity order.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

const (
	KeyRequestID = "request_id"
	KeyUserID    = "user_id"
)

var ErrInvalidLogLevel = errors.New("invalid log level")
