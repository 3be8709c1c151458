package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker blocks requests after consecutive counted failures.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	counts    func(error) bool
	now       func() time.Time
}

// NewCircuitBreaker counts every failure except context cancellation.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		counts: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		now: time.Now,
	}
}

// NewRateLimitBreaker only trips on RateLimitError.
func NewRateLimitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	cb := NewCircuitBreaker(threshold, cooldown)
	cb.counts = IsRateLimit
	return cb
}

func (c *CircuitBreaker) Allow() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openUntil)
}

func (c *CircuitBreaker) OnSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if c == nil || err == nil || !c.counts(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
	}
}

// Call runs fn through the breaker.
func (c *CircuitBreaker) Call(fn func() error) error {
	if !c.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		c.OnError(err)
		return err
	}
	c.OnSuccess()
	return nil
}
