package yabackoff

import "time"

// Exponential multiplies the delay by a constant factor on every Next call,
// capping at maxInterval. The zero value is usable: defaults are substituted
// on first use.
type Exponential struct {
	initialInterval time.Duration
	multiplier      float64
	maxInterval     time.Duration
	currentInterval time.Duration
	attempts        int
}

// NewExponential creates an exponential back-off. Zero arguments are replaced
// by the package defaults.
func NewExponential(
	initialInterval time.Duration,
	multiplier float64,
	maxInterval time.Duration,
) Exponential {
	return Exponential{
		initialInterval: initialInterval,
		multiplier:      multiplier,
		maxInterval:     maxInterval,
	}
}

func (e *Exponential) Next() time.Duration {
	e.safety()

	e.attempts++

	if e.currentInterval == 0 {
		e.currentInterval = e.initialInterval

		return e.currentInterval
	}

	e.currentInterval = min(
		time.Duration(float64(e.currentInterval)*e.multiplier),
		e.maxInterval,
	)

	return e.currentInterval
}

func (e *Exponential) Current() time.Duration {
	return e.currentInterval
}

func (e *Exponential) Attempts() int {
	return e.attempts
}

func (e *Exponential) Wait() {
	time.Sleep(e.Next())
}

func (e *Exponential) Reset() {
	e.currentInterval = 0
	e.attempts = 0
}

// safety substitutes defaults lazily so a zero-value Exponential works.
func (e *Exponential) safety() {
	if e.initialInterval == 0 {
		e.initialInterval = DefaultInitialInterval
	}

	if e.maxInterval == 0 {
		e.maxInterval = DefaultMaxInterval
	}

	if e.multiplier == 0 {
		e.multiplier = DefaultMultiplier
	}
}
