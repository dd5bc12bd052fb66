package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func newTestLedger() *SpinLedger {
	ledger := NewSpinLedger(newMemoryKV())
	ledger.SetConfirmDelay(0)
	return ledger
}

func TestSpinLedger_Validate(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	t.Run("valid spin is recorded pending", func(t *testing.T) {
		resp := ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-1", UserID: "user1"})
		if !resp.Success {
			t.Fatalf("Validate failed: %s", resp.Message)
		}

		status, err := ledger.Status(ctx, "spin-1")
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if status != StatusPending {
			t.Errorf("status = %q, want %q", status, StatusPending)
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		if resp := ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-x"}); resp.Success {
			t.Error("missing userId should be rejected")
		}
		if resp := ledger.Validate(ctx, ValidateSpinRequest{UserID: "user1"}); resp.Success {
			t.Error("missing spinId should be rejected")
		}
	})

	t.Run("duplicate spin rejected", func(t *testing.T) {
		if resp := ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-1", UserID: "user1"}); resp.Success {
			t.Error("re-validating the same spinId should fail")
		}
	})

	t.Run("per-user cap of three", func(t *testing.T) {
		for i := 2; i <= 3; i++ {
			resp := ledger.Validate(ctx, ValidateSpinRequest{
				SpinID: fmt.Sprintf("spin-%d", i),
				UserID: "user1",
			})
			if !resp.Success {
				t.Fatalf("spin %d should validate: %s", i, resp.Message)
			}
		}

		resp := ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-4", UserID: "user1"})
		if resp.Success {
			t.Error("fourth validated spin should be rejected")
		}

		// Other users are unaffected by the cap.
		resp = ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-other", UserID: "user2"})
		if !resp.Success {
			t.Error("cap must be per user fingerprint")
		}
	})
}

func TestSpinLedger_Claim(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	prize := Prize{ID: 3, Amount: 0.05, Currency: CurrencyBNB, Label: "0.05 BNB"}
	ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-1", UserID: "user1", Prize: &prize})

	t.Run("claim flips pending to confirmed", func(t *testing.T) {
		resp := ledger.Claim(ctx, ClaimSpinRequest{SpinID: "spin-1", UserID: "user1"})
		if !resp.Success {
			t.Fatalf("Claim failed: %s", resp.Message)
		}
		if resp.Status != StatusConfirmed {
			t.Errorf("status = %q, want %q", resp.Status, StatusConfirmed)
		}

		status, _ := ledger.Status(ctx, "spin-1")
		if status != StatusConfirmed {
			t.Errorf("stored status = %q, want %q", status, StatusConfirmed)
		}
	})

	t.Run("claiming again reports already confirmed", func(t *testing.T) {
		resp := ledger.Claim(ctx, ClaimSpinRequest{SpinID: "spin-1", UserID: "user1"})
		if !resp.Success || resp.Status != StatusConfirmed {
			t.Error("double claim should succeed idempotently")
		}
	})

	t.Run("unknown spin", func(t *testing.T) {
		if resp := ledger.Claim(ctx, ClaimSpinRequest{SpinID: "nope", UserID: "user1"}); resp.Success {
			t.Error("claiming an unknown spin should fail")
		}
	})

	t.Run("wrong user", func(t *testing.T) {
		ledger.Validate(ctx, ValidateSpinRequest{SpinID: "spin-2", UserID: "user1"})

		if resp := ledger.Claim(ctx, ClaimSpinRequest{SpinID: "spin-2", UserID: "intruder"}); resp.Success {
			t.Error("claiming another user's spin should fail")
		}
	})
}

func TestSpinLedger_ConcurrentValidate(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := ledger.Validate(ctx, ValidateSpinRequest{
				SpinID: fmt.Sprintf("race-spin-%d", i),
				UserID: "racer",
			})
			if resp.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != MAX_VALIDATED_SPINS {
		t.Errorf("concurrent validates succeeded %d times, want exactly %d", successes, MAX_VALIDATED_SPINS)
	}
}

func TestSpinLedger_ConcurrentValidateSameSpinID(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := ledger.Validate(ctx, ValidateSpinRequest{SpinID: "dup-race", UserID: "racer2"})
			if resp.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("same spinId validated %d times, want exactly 1", successes)
	}
}
