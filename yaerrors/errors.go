package yaerrors

import "errors"

// ErrTeapot reports that somebody called a method on a nil Error value.
// It exists so the nil-guard in safetyCheck has something honest to say.
var ErrTeapot = errors.New("backend developer is a teapot")
