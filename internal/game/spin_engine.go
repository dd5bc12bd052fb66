package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	SPIN_BUDGET      = 3
	SPIN_DELAY       = 4 * time.Second // wheel animation time before the result lands
	SUSPENSE_DELAY   = 3 * time.Second // double-or-nothing reveal delay
	WIN_RATE_SPIN_2  = 0.75
	WIN_RATE_SPIN_3  = 0.90
	WHEEL_FULL_TURNS = 5

	KEY_PLAYED_PREFIX = "spin:played:"
)

// spinSession tracks one user's three-spin budget.
type spinSession struct {
	spinsRemaining int
	currentSpin    int
	isSpinning     bool
	winHistory     []Prize
}

// SpinEngine runs the promo wheel. One session per user, capped at three
// spins; isSpinning rejects (never queues) a concurrent spin for the same
// user.
type SpinEngine struct {
	flags         StoreKV
	hub           *Hub
	rng           Source
	spinDelay     time.Duration
	suspenseDelay time.Duration
	ctx           context.Context

	mu       sync.Mutex
	sessions map[string]*spinSession
}

// StoreKV is the slice of the KV store the engine needs for played-flags.
type StoreKV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func NewSpinEngine(flags StoreKV, hub *Hub, rng Source) *SpinEngine {
	return &SpinEngine{
		flags:         flags,
		hub:           hub,
		rng:           rng,
		spinDelay:     SPIN_DELAY,
		suspenseDelay: SUSPENSE_DELAY,
		ctx:           context.Background(),
		sessions:      make(map[string]*spinSession),
	}
}

// SetDelays overrides the presentation delays. Tests set both to zero.
func (e *SpinEngine) SetDelays(spin, suspense time.Duration) {
	e.spinDelay = spin
	e.suspenseDelay = suspense
}

func (e *SpinEngine) session(userID string) *spinSession {
	sess, ok := e.sessions[userID]
	if !ok {
		sess = &spinSession{spinsRemaining: SPIN_BUDGET}
		e.sessions[userID] = sess
	}
	return sess
}

// Session returns a snapshot of the user's session state.
func (e *SpinEngine) Session(userID string) SpinSessionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.session(userID)
	history := make([]Prize, len(sess.winHistory))
	copy(history, sess.winHistory)

	return SpinSessionState{
		UserID:         userID,
		SpinsRemaining: sess.spinsRemaining,
		CurrentSpin:    sess.currentSpin,
		IsSpinning:     sess.isSpinning,
		WinHistory:     history,
	}
}

// ExecuteSpin runs one spin for the user. Calling while a spin is in flight
// or with no spins left is a no-op returning nil, never an error: the caller
// reads nil as "not eligible".
//
// Outcome curve: spin #1 is always a near miss, spin #2 wins below 0.75,
// spin #3 and beyond win below 0.90. The first-spin disappointment is a
// product decision, not a bug.
func (e *SpinEngine) ExecuteSpin(ctx context.Context, userID string) *SpinResult {
	e.mu.Lock()
	sess := e.session(userID)
	if sess.isSpinning || sess.spinsRemaining <= 0 {
		e.mu.Unlock()
		return nil
	}
	sess.isSpinning = true
	sess.currentSpin++
	spinNumber := sess.currentSpin
	e.mu.Unlock()

	// Let the wheel animation play out before the result lands.
	if e.spinDelay > 0 {
		select {
		case <-time.After(e.spinDelay):
		case <-ctx.Done():
			// Spin still resolves; only the wait is cut short.
		}
	}

	result := e.resolveSpin(spinNumber)

	e.mu.Lock()
	sess.spinsRemaining--
	if result.IsWin {
		sess.winHistory = append(sess.winHistory, *result.Prize)
	}
	sess.isSpinning = false
	remaining := sess.spinsRemaining
	e.mu.Unlock()

	if spinNumber == 1 {
		e.markPlayed(ctx, userID)
	}

	if e.hub != nil {
		e.hub.Broadcast(map[string]interface{}{
			"type":            "spin_result",
			"user_id":         userID,
			"is_win":          result.IsWin,
			"spin_number":     result.SpinNumber,
			"spins_remaining": remaining,
		})
	}

	label := "near miss"
	if result.IsWin {
		label = result.Prize.Label
	}
	log.Printf("[SPIN] User %s spin #%d: %s (%d left)", userID, spinNumber, label, remaining)

	return result
}

func (e *SpinEngine) resolveSpin(spinNumber int) *SpinResult {
	if spinNumber == 1 {
		return e.nearMiss(spinNumber)
	}

	threshold := WIN_RATE_SPIN_3
	if spinNumber == 2 {
		threshold = WIN_RATE_SPIN_2
	}

	if e.rng.Float64() >= threshold {
		return e.nearMiss(spinNumber)
	}

	prize := pickPrize(e.rng.Float64())
	return &SpinResult{
		Prize:      &prize,
		SpinNumber: spinNumber,
		IsWin:      true,
		Rotation:   segmentRotation(prize.ID, WHEEL_FULL_TURNS),
	}
}

// nearMiss lands the wheel on the Try Again segment, one slot off a real
// prize, and reports no prize.
func (e *SpinEngine) nearMiss(spinNumber int) *SpinResult {
	return &SpinResult{
		Prize:      nil,
		SpinNumber: spinNumber,
		IsWin:      false,
		IsNearMiss: true,
		Rotation:   segmentRotation(TryAgainSegment().ID, WHEEL_FULL_TURNS),
	}
}

// markPlayed persists the durable has-played flag after the user's first
// spin so first-visit promo popups never reappear for this user.
func (e *SpinEngine) markPlayed(ctx context.Context, userID string) {
	if e.flags == nil {
		return
	}
	if err := e.flags.Set(ctx, KEY_PLAYED_PREFIX+userID, "1", 0); err != nil {
		log.Printf("[SPIN] Failed to persist played flag for %s: %v", userID, err)
	}
}

// HasPlayed reports whether the user has ever completed a spin.
func (e *SpinEngine) HasPlayed(ctx context.Context, userID string) bool {
	if e.flags == nil {
		return false
	}
	_, ok, err := e.flags.Get(ctx, KEY_PLAYED_PREFIX+userID)
	if err != nil {
		log.Printf("[SPIN] Failed to read played flag for %s: %v", userID, err)
		return false
	}
	return ok
}

// Challenge runs double-or-nothing on a won prize. Decline keeps the prize
// and consumes no randomness. Accept waits out the suspense delay and flips
// one fair bit: success doubles the amount, failure forfeits the prize
// (nil). The session's win history is not touched; replacing the prize there
// is the caller's job.
func (e *SpinEngine) Challenge(ctx context.Context, prize *Prize, accept bool) (*Prize, error) {
	if prize == nil || prize.Amount <= 0 {
		return nil, errors.New("challenge requires a won prize")
	}

	if !accept {
		return prize, nil
	}

	if e.suspenseDelay > 0 {
		select {
		case <-time.After(e.suspenseDelay):
		case <-ctx.Done():
		}
	}

	if e.rng.Float64() < 0.5 {
		doubled := *prize
		doubled.Amount = prize.Amount * 2
		doubled.Label = fmt.Sprintf("%g %s", doubled.Amount, doubled.Currency)
		log.Printf("[SPIN] Challenge won: %s doubled to %s", prize.Label, doubled.Label)
		return &doubled, nil
	}

	log.Printf("[SPIN] Challenge lost: %s forfeited", prize.Label)
	return nil, nil
}

// GameEngine interface

func (e *SpinEngine) GetType() GameType {
	return GameTypeSpin
}

func (e *SpinEngine) Start(ctx context.Context) error {
	e.ctx = ctx
	log.Println("[SPIN] Engine started")
	return nil
}

func (e *SpinEngine) Stop() error {
	log.Println("[SPIN] Engine stopped")
	return nil
}

func (e *SpinEngine) GetState() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]interface{}{
		"active_sessions": len(e.sessions),
		"spin_budget":     SPIN_BUDGET,
	}
}

func (e *SpinEngine) PlaceBet(ctx context.Context, req interface{}) (interface{}, error) {
	spinReq, ok := req.(SpinRequest)
	if !ok {
		return nil, errors.New("invalid request type")
	}

	result := e.ExecuteSpin(ctx, spinReq.UserID)
	state := e.Session(spinReq.UserID)

	if result == nil {
		return SpinResponse{
			Success:        false,
			Message:        "Not eligible to spin",
			SpinsRemaining: state.SpinsRemaining,
		}, nil
	}

	return SpinResponse{
		Success:        true,
		Message:        "Spin complete",
		Result:         result,
		SpinsRemaining: state.SpinsRemaining,
	}, nil
}

func (e *SpinEngine) ProcessAction(ctx context.Context, action string, req interface{}) (interface{}, error) {
	switch action {
	case "double":
		challengeReq, ok := req.(ChallengeRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		prize, err := e.Challenge(ctx, challengeReq.Prize, challengeReq.Accept)
		if err != nil {
			return ChallengeResponse{Success: false, Message: err.Error()}, nil
		}

		if prize == nil {
			return ChallengeResponse{
				Success:   true,
				Message:   "Prize forfeited",
				Forfeited: true,
			}, nil
		}

		message := "Prize kept"
		if challengeReq.Accept {
			message = "Prize doubled"
		}
		return ChallengeResponse{Success: true, Message: message, Prize: prize}, nil

	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}
