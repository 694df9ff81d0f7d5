// Package yabackoff provides the back-off strategy used by retry loops such
// as the dispatcher's long-poll reconnect. A back-off progressively increases
// the delay between attempts of an operation that keeps failing.
//
// Quick start:
//
//	backoff := yabackoff.NewExponential(2*time.Second, 2, 60*time.Second)
//	for {
//	    if err := poll(); err == nil {
//	        backoff.Reset()
//	        continue
//	    }
//	    backoff.Wait()
//	}
//
// The package is dependency-free.
package yabackoff

import "time"

// Defaults applied when the caller passes zero values to NewExponential or
// uses a zero-value Exponential directly. They match the reconnect profile of
// the long-poll loop: 2s doubling up to a minute.
const (
	DefaultInitialInterval = 2 * time.Second
	DefaultMultiplier      = 2.0
	DefaultMaxInterval     = 60 * time.Second
)

// Backoff is the behaviour shared by all back-off strategies. Implementations
// are not safe for concurrent use; give each goroutine its own instance.
type Backoff interface {
	// Next advances the strategy and returns the delay for this attempt.
	Next() time.Duration

	// Current returns the delay from the most recent Next call without
	// mutating state.
	Current() time.Duration

	// Attempts returns how many times Next has been called since the last
	// Reset. Retry loops use it to decay their log severity.
	Attempts() int

	// Wait sleeps for Next().
	Wait()

	// Reset restores the initial state, so the next Next returns the
	// initial interval again.
	Reset()
}
