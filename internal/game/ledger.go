package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
)

const (
	CLAIM_CONFIRM_DELAY = 2 * time.Second
	MAX_VALIDATED_SPINS = 3

	KEY_SPIN_RECORD_PREFIX = "spin:record:"
	KEY_SPIN_COUNT_PREFIX  = "spin:count:"

	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

// SpinLedger records validated spins and simulates the asynchronous claim
// confirmation. Records live behind the KV store so a persistent backend
// can replace the in-memory map without touching callers.
type SpinLedger struct {
	// mu serializes the count/record read-check-write in Validate; the KV
	// only serializes individual operations.
	mu           sync.Mutex
	kv           StoreKV
	confirmDelay time.Duration
}

func NewSpinLedger(kv StoreKV) *SpinLedger {
	return &SpinLedger{kv: kv, confirmDelay: CLAIM_CONFIRM_DELAY}
}

// SetConfirmDelay overrides the simulated confirmation delay for tests.
func (l *SpinLedger) SetConfirmDelay(d time.Duration) {
	l.confirmDelay = d
}

// Validate records a spin for the user, capped at three validated spins per
// user fingerprint.
func (l *SpinLedger) Validate(ctx context.Context, req ValidateSpinRequest) ValidateSpinResponse {
	if req.SpinID == "" || req.UserID == "" {
		return ValidateSpinResponse{Success: false, Message: "spinId and userId are required"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	countKey := KEY_SPIN_COUNT_PREFIX + req.UserID
	raw, _, err := l.kv.Get(ctx, countKey)
	if err != nil {
		return ValidateSpinResponse{Success: false, Message: "Store unavailable"}
	}
	count, _ := strconv.Atoi(raw)
	if count >= MAX_VALIDATED_SPINS {
		return ValidateSpinResponse{Success: false, Message: "Spin limit reached"}
	}

	if _, exists, _ := l.kv.Get(ctx, KEY_SPIN_RECORD_PREFIX+req.SpinID); exists {
		return ValidateSpinResponse{Success: false, Message: "Spin already validated"}
	}

	record := SpinRecord{
		SpinID:      req.SpinID,
		UserID:      req.UserID,
		Prize:       req.Prize,
		Status:      StatusPending,
		ValidatedAt: time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return ValidateSpinResponse{Success: false, Message: "Failed to encode record"}
	}

	if err := l.kv.Set(ctx, KEY_SPIN_RECORD_PREFIX+req.SpinID, string(data), 24*time.Hour); err != nil {
		return ValidateSpinResponse{Success: false, Message: "Store unavailable"}
	}
	if err := l.kv.Set(ctx, countKey, strconv.Itoa(count+1), 24*time.Hour); err != nil {
		return ValidateSpinResponse{Success: false, Message: "Store unavailable"}
	}

	log.Printf("[CLAIM] Spin %s validated for user %s (%d/%d)", req.SpinID, req.UserID, count+1, MAX_VALIDATED_SPINS)

	return ValidateSpinResponse{Success: true, Message: "Spin validated", SpinID: req.SpinID}
}

// Claim flips a pending record to confirmed after the simulated
// confirmation delay.
func (l *SpinLedger) Claim(ctx context.Context, req ClaimSpinRequest) ClaimSpinResponse {
	record, err := l.record(ctx, req.SpinID)
	if err != nil {
		return ClaimSpinResponse{Success: false, Message: err.Error()}
	}
	if record.UserID != req.UserID {
		return ClaimSpinResponse{Success: false, Message: "Spin belongs to another user"}
	}
	if record.Status == StatusConfirmed {
		return ClaimSpinResponse{Success: true, Message: "Already confirmed", Status: StatusConfirmed}
	}

	if l.confirmDelay > 0 {
		select {
		case <-time.After(l.confirmDelay):
		case <-ctx.Done():
			return ClaimSpinResponse{Success: false, Message: "Claim cancelled"}
		}
	}

	record.Status = StatusConfirmed
	data, err := json.Marshal(record)
	if err != nil {
		return ClaimSpinResponse{Success: false, Message: "Failed to encode record"}
	}
	if err := l.kv.Set(ctx, KEY_SPIN_RECORD_PREFIX+req.SpinID, string(data), 24*time.Hour); err != nil {
		return ClaimSpinResponse{Success: false, Message: "Store unavailable"}
	}

	log.Printf("[CLAIM] Spin %s confirmed for user %s", req.SpinID, req.UserID)

	return ClaimSpinResponse{Success: true, Message: "Claim confirmed", Status: StatusConfirmed}
}

// Status reports the stored record's status.
func (l *SpinLedger) Status(ctx context.Context, spinID string) (string, error) {
	record, err := l.record(ctx, spinID)
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

func (l *SpinLedger) record(ctx context.Context, spinID string) (*SpinRecord, error) {
	raw, ok, err := l.kv.Get(ctx, KEY_SPIN_RECORD_PREFIX+spinID)
	if err != nil {
		return nil, fmt.Errorf("store unavailable")
	}
	if !ok {
		return nil, fmt.Errorf("spin not found")
	}

	var record SpinRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("corrupt spin record")
	}
	return &record, nil
}
