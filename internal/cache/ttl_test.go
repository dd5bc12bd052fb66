package cache

import (
	"testing"
	"time"
)

func TestTTLSlot(t *testing.T) {
	now := time.Now()
	slot := NewTTLSlotWithClock(5*time.Minute, func() time.Time { return now })

	t.Run("empty slot has no value", func(t *testing.T) {
		if _, fresh := slot.Get(); fresh {
			t.Error("empty slot should not be fresh")
		}
		if _, ok := slot.Last(); ok {
			t.Error("empty slot should have no last value")
		}
	})

	t.Run("set value is fresh within ttl", func(t *testing.T) {
		slot.Set(612.45)

		value, fresh := slot.Get()
		if !fresh {
			t.Error("value should be fresh immediately after Set")
		}
		if value != 612.45 {
			t.Errorf("Get = %v, want 612.45", value)
		}
	})

	t.Run("value goes stale after ttl", func(t *testing.T) {
		now = now.Add(6 * time.Minute)

		if _, fresh := slot.Get(); fresh {
			t.Error("value should be stale after ttl")
		}
	})

	t.Run("stale value still available via Last", func(t *testing.T) {
		value, ok := slot.Last()
		if !ok {
			t.Fatal("Last should return the stale value")
		}
		if value != 612.45 {
			t.Errorf("Last = %v, want 612.45", value)
		}
	})

	t.Run("set refreshes the slot", func(t *testing.T) {
		slot.Set(598.10)

		value, fresh := slot.Get()
		if !fresh || value != 598.10 {
			t.Errorf("Get = (%v, %v), want (598.10, true)", value, fresh)
		}
	})
}
