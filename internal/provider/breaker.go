package provider

import "sync"

// Breaker is a per-review circuit breaker for one provider. After threshold
// consecutive failures, further calls short-circuit for the remainder of the
// review. Safe for concurrent use by all semantic analyzers in a run.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	open      bool
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures. A threshold of zero or less disables the breaker.
func NewBreaker(threshold int) *Breaker {
	return &Breaker{threshold: threshold}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

// RecordSuccess resets the consecutive failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.threshold > 0 && b.failures >= b.threshold {
		b.open = true
	}
}

// Open reports whether the breaker has tripped.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
