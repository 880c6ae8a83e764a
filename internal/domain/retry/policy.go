// Package retry defines the backoff schedule for failed delivery attempts.
package retry

import (
	"errors"
	"time"
)

// ErrInvalidStep indicates the configured backoff step is not positive.
var ErrInvalidStep = errors.New("retry step must be positive")

// ErrInvalidMaxAttempts indicates the configured attempt limit is not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// Policy maps a retry count to the delay before the next attempt.
//
// The schedule is deliberately linear, not exponential: the Nth retry waits
// N × Step. With the defaults (5 minute step, 5 attempts) a job that keeps
// failing waits 5, 10, 15, 20 and 25 minutes, then is failed permanently.
type Policy struct {
	step        time.Duration
	maxAttempts int
}

// Defaults for the documented schedule.
const (
	DefaultStep        = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// NewPolicy constructs a Policy with the provided step and attempt limit.
func NewPolicy(step time.Duration, maxAttempts int) (*Policy, error) {
	if step <= 0 {
		return nil, ErrInvalidStep
	}
	if maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	return &Policy{step: step, maxAttempts: maxAttempts}, nil
}

// Default returns the documented 5-minute-step, 5-attempt policy.
func Default() *Policy {
	return &Policy{step: DefaultStep, maxAttempts: DefaultMaxAttempts}
}

// Step returns the configured backoff step.
func (p *Policy) Step() time.Duration {
	return p.step
}

// MaxAttempts returns the configured attempt limit.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Delay returns how long to wait after the given (1-based) failed attempt.
// A retryCount of 1 means the first attempt just failed.
func (p *Policy) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(retryCount) * p.step
}

// Exhausted reports whether a job with the given retry count has used up
// its attempts and must be failed permanently.
func (p *Policy) Exhausted(retryCount int) bool {
	return retryCount >= p.maxAttempts
}
