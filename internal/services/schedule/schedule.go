// Package schedule computes publish times and rotates authors.
package schedule

import (
	"math/rand"
	"sync"
	"time"
)

// Bounds, in minutes, for the first post of a profile and for clamped times.
const (
	firstPostMinMinutes = 1
	firstPostMaxMinutes = 3
	clampMinMinutes     = 2
	clampMaxMinutes     = 5
)

// Calculator computes randomised publish times with gap constraints.
type Calculator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand *rand.Rand
}

// Option configures the calculator
type Option func(*Calculator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// WithSeed makes the jitter deterministic.
func WithSeed(seed int64) Option {
	return func(c *Calculator) {
		c.rand = rand.New(rand.NewSource(seed))
	}
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next returns the publish time following last.
//
// Without an anchor the post goes out 1-3 minutes from now. Otherwise it is
// placed minGap-maxGap minutes after last, and if that is already in the past
// it is moved to 2-5 minutes from now.
func (c *Calculator) Next(last *time.Time, minGap, maxGap int) time.Time {
	now := c.now()

	if last == nil || last.IsZero() {
		return now.Add(c.minutesBetween(firstPostMinMinutes, firstPostMaxMinutes))
	}

	minGap, maxGap = normalizeGap(minGap, maxGap)
	next := last.Add(c.minutesBetween(minGap, maxGap))
	if next.Before(now) {
		return now.Add(c.minutesBetween(clampMinMinutes, clampMaxMinutes))
	}
	return next
}

// minutesBetween returns a whole number of minutes in [lo, hi].
func (c *Calculator) minutesBetween(lo, hi int) time.Duration {
	c.mu.Lock()
	n := lo + c.rand.Intn(hi-lo+1)
	c.mu.Unlock()
	return time.Duration(n) * time.Minute
}

func normalizeGap(minGap, maxGap int) (int, int) {
	if minGap < 0 {
		minGap = 0
	}
	if maxGap < 0 {
		maxGap = 0
	}
	if minGap > maxGap {
		minGap, maxGap = maxGap, minGap
	}
	return minGap, maxGap
}
