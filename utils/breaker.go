package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker refuses calls after repeated
// store failures.
var ErrBreakerOpen = errors.New("breaker: open, store writes suspended")

// Breaker is a small consecutive-failure circuit breaker guarding calls to
// the persistence collaborator. After threshold consecutive failures it
// opens and refuses calls until cooldown has passed; the next success
// closes it again.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.threshold && time.Since(b.openedAt) < b.cooldown {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = time.Now()
		}
		return err
	}
	b.failures = 0
	return nil
}

// Open reports whether the breaker is currently refusing calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && time.Since(b.openedAt) < b.cooldown
}
