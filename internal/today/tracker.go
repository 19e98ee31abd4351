package today

import (
	"sync"

	appLog "eventstoday/internal/log"
)

// Tracker remembers the last fetch error and the retry counter.
type Tracker struct {
	mu         sync.Mutex
	err        error
	retryCount int
}

// Error returns the last recorded error, or nil after a success.
func (t *Tracker) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// HandleError records err and logs it.
func (t *Tracker) HandleError(err error) {
	if err == nil {
		return
	}
	appLog.Error("today's events fetch failed", err)

	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// Clear forgets the last error.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.err = nil
	t.mu.Unlock()
}

// Retry bumps the counter and returns the new value.
func (t *Tracker) Retry() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryCount++
	return t.retryCount
}

// RetryCount returns the highest retry count seen so far.
func (t *Tracker) RetryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryCount
}

// claim reports whether n is a retry count that has not been served yet,
// and records it. Each count is claimed at most once. Counts are clamped to
// one past the current count, so a caller cannot skip the counter ahead; the
// returned count is the one actually recorded or served.
func (t *Tracker) claim(n int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= t.retryCount {
		return n, false
	}
	if n > t.retryCount+1 {
		n = t.retryCount + 1
	}
	t.retryCount = n
	return n, true
}
