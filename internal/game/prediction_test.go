package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubPriceSource serves scripted prices; fail=true simulates an unavailable
// feed.
type stubPriceSource struct {
	mu    sync.Mutex
	price float64
	fail  bool
}

func (s *stubPriceSource) LatestPrice(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("feed unavailable")
	}
	return s.price, nil
}

func (s *stubPriceSource) set(price float64, fail bool) {
	s.mu.Lock()
	s.price = price
	s.fail = fail
	s.mu.Unlock()
}

func newTestManager(price PriceSource) *RoundManager {
	m := NewRoundManager(nil, price)
	m.SetTimings(60*time.Millisecond, 30*time.Millisecond, 10*time.Millisecond, 5*time.Millisecond)
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestRoundManager_LocksAvailablePrice(t *testing.T) {
	source := &stubPriceSource{price: 612.45}
	manager := newTestManager(source)
	manager.Start()
	defer manager.Stop()

	if !waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("round never went live")
	}

	state := manager.GetCurrentRound()
	if state.LockedPrice != 612.45 {
		t.Errorf("LockedPrice = %v, want 612.45", state.LockedPrice)
	}
	if !state.IsLive {
		t.Error("fresh round should be live")
	}
	if state.RoundID != 1 {
		t.Errorf("RoundID = %d, want 1", state.RoundID)
	}
	if state.UpPool <= 0 || state.DownPool <= 0 {
		t.Error("pools should be seeded with positive placeholder values")
	}
}

func TestRoundManager_WaitsForPrice(t *testing.T) {
	source := &stubPriceSource{fail: true}
	manager := newTestManager(source)
	manager.Start()
	defer manager.Stop()

	time.Sleep(50 * time.Millisecond)
	if manager.GetCurrentRound() != nil {
		t.Fatal("round must not go live while the price feed is down")
	}

	source.set(598.10, false)

	if !waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("round never went live after the feed recovered")
	}

	if got := manager.GetCurrentRound().LockedPrice; got != 598.10 {
		t.Errorf("LockedPrice = %v, want 598.10", got)
	}
}

func TestRoundManager_Rollover(t *testing.T) {
	source := &stubPriceSource{price: 100}
	manager := newTestManager(source)
	manager.Start()
	defer manager.Stop()

	if !waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("first round never started")
	}

	// Fresh price for the next round's lock.
	source.set(200, false)

	ok := waitFor(t, 2*time.Second, func() bool {
		state := manager.GetCurrentRound()
		return state != nil && state.RoundID == 2 && state.IsLive
	})
	if !ok {
		t.Fatal("round never rolled over")
	}

	state := manager.GetCurrentRound()
	if state.LockedPrice != 200 {
		t.Errorf("rolled round LockedPrice = %v, want the latest price 200", state.LockedPrice)
	}
	if state.TimeLeft <= 0 {
		t.Error("rolled round should have a reset timer")
	}
}

func TestRoundManager_Entries(t *testing.T) {
	source := &stubPriceSource{price: 100}
	manager := NewRoundManager(nil, source)
	// Long round so it stays live for the whole subtest.
	manager.SetTimings(10*time.Second, 50*time.Millisecond, 10*time.Millisecond, 5*time.Millisecond)
	manager.Start()
	defer manager.Stop()

	if !waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("round never went live")
	}
	before := manager.GetCurrentRound()

	t.Run("up entry accumulates the up pool", func(t *testing.T) {
		resp := manager.EnterPrediction(PredictionEntryRequest{
			UserID:    "user1",
			Direction: "up",
			Amount:    0.5,
		})
		if !resp.Success {
			t.Fatalf("entry rejected: %s", resp.Message)
		}
		if resp.UpPool != before.UpPool+0.5 {
			t.Errorf("UpPool = %v, want %v", resp.UpPool, before.UpPool+0.5)
		}
		if resp.DownPool != before.DownPool {
			t.Errorf("DownPool = %v, want unchanged %v", resp.DownPool, before.DownPool)
		}
	})

	t.Run("invalid direction rejected", func(t *testing.T) {
		resp := manager.EnterPrediction(PredictionEntryRequest{
			UserID:    "user1",
			Direction: "sideways",
			Amount:    0.5,
		})
		if resp.Success {
			t.Error("invalid direction should be rejected")
		}
	})

	t.Run("amount out of range rejected", func(t *testing.T) {
		resp := manager.EnterPrediction(PredictionEntryRequest{
			UserID:    "user1",
			Direction: "down",
			Amount:    MAX_ENTRY_AMOUNT * 2,
		})
		if resp.Success {
			t.Error("oversized entry should be rejected")
		}
	})
}

func TestRoundManager_TimerCountsDown(t *testing.T) {
	source := &stubPriceSource{price: 100}
	manager := NewRoundManager(nil, source)
	manager.SetTimings(500*time.Millisecond, 100*time.Millisecond, 20*time.Millisecond, 5*time.Millisecond)
	manager.Start()
	defer manager.Stop()

	if !waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("round never went live")
	}
	initial := manager.GetCurrentRound().TimeLeft

	ok := waitFor(t, time.Second, func() bool {
		state := manager.GetCurrentRound()
		return state != nil && state.TimeLeft < initial
	})
	if !ok {
		t.Error("TimeLeft never decreased")
	}
}

func TestRoundManager_StopTerminatesLoop(t *testing.T) {
	source := &stubPriceSource{price: 100}
	manager := newTestManager(source)
	manager.Start()

	waitFor(t, time.Second, func() bool { return manager.GetCurrentRound() != nil })
	manager.Stop()

	state := manager.GetCurrentRound()
	time.Sleep(200 * time.Millisecond)

	after := manager.GetCurrentRound()
	if state != nil && after != nil && after.RoundID > state.RoundID+1 {
		t.Error("rounds kept rolling after Stop")
	}
}

func TestRoundManager_EntryDuringPriceOutageRejected(t *testing.T) {
	source := &stubPriceSource{fail: true}
	manager := NewRoundManager(nil, source)
	// Slow poll so the manager sits in the price wait while we enter.
	manager.SetTimings(10*time.Second, 50*time.Millisecond, 10*time.Millisecond, 100*time.Millisecond)
	manager.Start()
	defer manager.Stop()

	// Give the loop a moment to reach the price wait.
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	resp := manager.EnterPrediction(PredictionEntryRequest{
		UserID:    "user1",
		Direction: "up",
		Amount:    1.0,
	})
	if resp.Success {
		t.Fatal("entry with no live round should be rejected")
	}
	if elapsed := time.Since(start); elapsed > ENTRY_TIMEOUT {
		t.Errorf("rejection took %v, want a prompt answer instead of the entry timeout", elapsed)
	}

	// When the feed recovers, the rejected entry must not resurface in the
	// new round's pool.
	source.set(250, false)
	if !waitFor(t, 2*time.Second, func() bool { return manager.GetCurrentRound() != nil }) {
		t.Fatal("round never went live after feed recovery")
	}
	before := manager.GetCurrentRound()

	ok := manager.EnterPrediction(PredictionEntryRequest{
		UserID:    "user1",
		Direction: "up",
		Amount:    0.25,
	})
	if !ok.Success {
		t.Fatalf("live entry rejected: %s", ok.Message)
	}
	if ok.UpPool != before.UpPool+0.25 {
		t.Errorf("UpPool = %v, want %v (pre-round entry must not be pooled)", ok.UpPool, before.UpPool+0.25)
	}
}
