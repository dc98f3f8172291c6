package orchestrator

import (
	"sync"
	"time"
)

// RetryWindow is how long a recorded retry counts.
const RetryWindow = 10 * time.Minute

// RetryLedger records when port-fallback retries happened. It feeds a
// reported counter only and never influences scraping.
type RetryLedger struct {
	mu    sync.Mutex
	times []time.Time
	now   func() time.Time
}

// NewRetryLedger returns an empty RetryLedger.
func NewRetryLedger() *RetryLedger {
	return &RetryLedger{now: time.Now}
}

// Record adds a retry at the current time.
func (l *RetryLedger) Record() {
	l.mu.Lock()
	l.times = append(l.times, l.now())
	l.mu.Unlock()
}

// Count returns the number of retries within RetryWindow, dropping older ones.
func (l *RetryLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-RetryWindow)
	i := 0
	for i < len(l.times) && l.times[i].Before(cutoff) {
		i++
	}
	l.times = l.times[i:]
	return len(l.times)
}
