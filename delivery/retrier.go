package delivery

import "time"

// Backoff defaults, overridable via the worker configuration.
const (
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultBackoffCap     = 5 * time.Second
)

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt succeeded (2xx).
	Delivered Decision = iota

	// Retry means the envelope should be re-enqueued for another attempt.
	Retry

	// Dead means the attempt budget is exhausted: log, push to the dead
	// letter queue, and stop.
	Dead
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// Retrier decides what to do after a delivery attempt and computes the
// capped exponential backoff between attempts.
type Retrier struct {
	initial time.Duration
	cap     time.Duration
}

// NewRetrier creates a retrier with the given initial backoff and cap.
// Zero values fall back to the package defaults.
func NewRetrier(initial, cap time.Duration) *Retrier {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if cap <= 0 {
		cap = DefaultBackoffCap
	}
	return &Retrier{initial: initial, cap: cap}
}

// Decide determines what to do with an envelope after an attempt.
//
// Any 2xx is success. Everything else — non-2xx status, timeout, transport
// error — is treated identically: retry while the attempt budget allows,
// otherwise dead.
func (r *Retrier) Decide(res Result, env *Envelope) Decision {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return Delivered
	}

	if env.Attempt+1 < env.MaxAttempts {
		return Retry
	}
	return Dead
}

// Delay returns the backoff before the attempt following the given attempt
// number: min(cap, initial * 2^attempt).
func (r *Retrier) Delay(attempt int) time.Duration {
	d := r.initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= r.cap {
			return r.cap
		}
	}
	if d > r.cap {
		return r.cap
	}
	return d
}

// NextAttempt returns the wall-clock time of the attempt following the given
// attempt number.
func (r *Retrier) NextAttempt(attempt int) time.Time {
	return time.Now().UTC().Add(r.Delay(attempt))
}
