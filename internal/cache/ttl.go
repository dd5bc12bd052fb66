package cache

import (
	"sync"
	"time"
)

// TTLSlot is a single-value cache with a time-to-live. The price handler keeps
// one slot per upstream quote; injecting the slot (instead of a package-level
// variable) keeps instances and tests isolated.
type TTLSlot struct {
	mu        sync.RWMutex
	value     float64
	fetchedAt time.Time
	filled    bool
	ttl       time.Duration
	now       func() time.Time
}

func NewTTLSlot(ttl time.Duration) *TTLSlot {
	return &TTLSlot{
		ttl: ttl,
		now: time.Now,
	}
}

// NewTTLSlotWithClock injects the clock used for freshness checks.
func NewTTLSlotWithClock(ttl time.Duration, now func() time.Time) *TTLSlot {
	slot := NewTTLSlot(ttl)
	slot.now = now
	return slot
}

// Get returns the cached value and whether it is still fresh.
func (s *TTLSlot) Get() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filled {
		return 0, false
	}
	return s.value, s.now().Sub(s.fetchedAt) < s.ttl
}

// Last returns the most recent value regardless of freshness. Used to degrade
// gracefully when the upstream quote API fails.
func (s *TTLSlot) Last() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.filled
}

func (s *TTLSlot) Set(value float64) {
	s.mu.Lock()
	s.value = value
	s.fetchedAt = s.now()
	s.filled = true
	s.mu.Unlock()
}
