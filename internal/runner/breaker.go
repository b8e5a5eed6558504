// Package runner executes batches of dbbench samples concurrently.
package runner

import (
	"sync"
)

// defaultBreakerThreshold is used when the configured threshold is not positive.
const defaultBreakerThreshold = 5

// Breaker stops a batch after consecutive UNKNOWN outcomes.
type Breaker struct {
	mu          sync.Mutex
	consecutive int
	threshold   int
	tripped     bool
}

// NewBreaker creates a breaker with the given threshold.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	return &Breaker{threshold: threshold}
}

// RecordFault counts a faulted sample and reports whether this call tripped
// the breaker.
func (b *Breaker) RecordFault() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive++
	if !b.tripped && b.consecutive >= b.threshold {
		b.tripped = true
		return true
	}
	return false
}

// RecordSuccess resets the fault counter. A tripped breaker stays tripped.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
}

// Tripped reports whether the threshold was reached.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Consecutive returns the current fault streak.
func (b *Breaker) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// Restore sets the fault streak from a checkpoint without tripping; a
// resumed run always gets at least one attempt.
func (b *Breaker) Restore(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = count
	b.tripped = false
}
