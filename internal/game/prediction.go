package game

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	ROUND_DURATION      = 300 * time.Second
	SETTLE_DELAY        = 5 * time.Second
	ROUND_TICK          = 1 * time.Second
	PRICE_POLL_INTERVAL = 1 * time.Second
	ENTRY_TIMEOUT       = 5 * time.Second
	MIN_ENTRY_AMOUNT    = 0.001
	MAX_ENTRY_AMOUNT    = 100.0
)

// PriceSource supplies the latest external quote used to lock a round's
// reference price.
type PriceSource interface {
	LatestPrice(ctx context.Context) (float64, error)
}

// predictionRound is the manager-owned state of one up/down round.
type predictionRound struct {
	id          int64
	lockedPrice float64
	timeLeft    int
	isLive      bool
	upPool      float64
	downPool    float64
	seed        string
	commitment  string
}

// RoundManager drives the prediction mini-game: LIVE for the round duration,
// SETTLING for a short grace period, then a fresh round. A round never goes
// LIVE until a price is available; rollover waits on the price source rather
// than locking a stale or absent price.
//
// Up/down pools are seeded with placeholder values each round. Settlement and
// payout are not implemented yet: real pools need ledger-backed stake
// accounting first.
type RoundManager struct {
	hub   *Hub
	price PriceSource

	entryChannel chan PredictionEntryRequest
	stopChan     chan struct{}

	stateMutex sync.RWMutex
	current    *predictionRound
	roundID    int64

	roundDuration time.Duration
	settleDelay   time.Duration
	tick          time.Duration
	pricePoll     time.Duration
}

func NewRoundManager(hub *Hub, price PriceSource) *RoundManager {
	return &RoundManager{
		hub:           hub,
		price:         price,
		entryChannel:  make(chan PredictionEntryRequest, 1000),
		stopChan:      make(chan struct{}),
		roundDuration: ROUND_DURATION,
		settleDelay:   SETTLE_DELAY,
		tick:          ROUND_TICK,
		pricePoll:     PRICE_POLL_INTERVAL,
	}
}

// SetTimings overrides the round timings. Tests shrink them to milliseconds.
func (m *RoundManager) SetTimings(round, settle, tick, pricePoll time.Duration) {
	m.roundDuration = round
	m.settleDelay = settle
	m.tick = tick
	m.pricePoll = pricePoll
}

func (m *RoundManager) Start() {
	go m.roundLoop()
}

func (m *RoundManager) Stop() {
	close(m.stopChan)
}

// GetCurrentRound returns a snapshot of the active round, or nil before the
// first round has locked a price.
func (m *RoundManager) GetCurrentRound() *PredictionState {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()

	if m.current == nil {
		return nil
	}
	return &PredictionState{
		RoundID:     m.current.id,
		LockedPrice: m.current.lockedPrice,
		TimeLeft:    m.current.timeLeft,
		IsLive:      m.current.isLive,
		UpPool:      m.current.upPool,
		DownPool:    m.current.downPool,
	}
}

// EnterPrediction queues an up/down entry for the live round.
func (m *RoundManager) EnterPrediction(req PredictionEntryRequest) PredictionEntryResponse {
	respChan := make(chan PredictionEntryResponse, 1)
	req.ResponseChan = respChan

	select {
	case m.entryChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(ENTRY_TIMEOUT):
			return PredictionEntryResponse{Success: false, Message: "Entry timeout"}
		}
	default:
		return PredictionEntryResponse{Success: false, Message: "Entry queue full"}
	}
}

func (m *RoundManager) roundLoop() {
	for {
		select {
		case <-m.stopChan:
			log.Println("[ROUND] Prediction loop stopped")
			return
		default:
			if !m.runRound() {
				return
			}
		}
	}
}

// runRound plays one LIVE -> SETTLING cycle. Returns false when stopped.
func (m *RoundManager) runRound() bool {
	lockedPrice, ok := m.awaitPrice()
	if !ok {
		return false
	}

	m.roundID++
	seed := GenerateSeed()
	commitment := HashCommitment(seed)

	m.stateMutex.Lock()
	m.current = &predictionRound{
		id:          m.roundID,
		lockedPrice: lockedPrice,
		timeLeft:    int(m.roundDuration / time.Second),
		isLive:      true,
		// Placeholder pools until stake accounting is ledger backed.
		upPool:     1.0 + seededFloat(seed, m.roundID)*9.0,
		downPool:   1.0 + seededFloat(seed, m.roundID+1)*9.0,
		seed:       seed,
		commitment: commitment,
	}
	roundID := m.roundID
	m.stateMutex.Unlock()

	log.Printf("[ROUND] Round %d live, locked price %.2f", roundID, lockedPrice)

	m.broadcastState("round_start")

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.stateMutex.Lock()
			m.current.timeLeft--
			expired := m.current.timeLeft <= 0
			if expired {
				m.current.timeLeft = 0
				m.current.isLive = false
			}
			m.stateMutex.Unlock()

			if expired {
				log.Printf("[ROUND] Round %d settling", roundID)
				m.broadcastSettlement()
				return m.settle()
			}
			m.broadcastState("round_update")

		case entry := <-m.entryChannel:
			m.processEntry(entry)

		case <-m.stopChan:
			return false
		}
	}
}

// awaitPrice polls the price source until a quote arrives or the manager is
// stopped. Keeps the lockedPrice-only-when-available rule. Entries arriving
// while no round is live are rejected, not queued for the next round.
func (m *RoundManager) awaitPrice() (float64, bool) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), m.pricePoll)
		price, err := m.price.LatestPrice(ctx)
		cancel()

		if err == nil {
			return price, true
		}

		select {
		case <-time.After(m.pricePoll):
		case entry := <-m.entryChannel:
			m.reject(entry, "No live round")
		case <-m.stopChan:
			return 0, false
		}
	}
}

// settle waits out the grace period between rounds, rejecting entries that
// arrive while no round is live.
func (m *RoundManager) settle() bool {
	timer := time.NewTimer(m.settleDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case entry := <-m.entryChannel:
			m.reject(entry, "Round is settling")
		case <-m.stopChan:
			return false
		}
	}
}

func (m *RoundManager) processEntry(req PredictionEntryRequest) {
	resp := PredictionEntryResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	if req.Direction != "up" && req.Direction != "down" {
		resp.Message = "Direction must be up or down"
		return
	}
	if req.Amount < MIN_ENTRY_AMOUNT || req.Amount > MAX_ENTRY_AMOUNT {
		resp.Message = "Entry amount out of range"
		return
	}

	m.stateMutex.Lock()
	if m.current == nil || !m.current.isLive {
		m.stateMutex.Unlock()
		resp.Message = "No live round"
		return
	}

	if req.Direction == "up" {
		m.current.upPool += req.Amount
	} else {
		m.current.downPool += req.Amount
	}
	resp.RoundID = m.current.id
	resp.UpPool = m.current.upPool
	resp.DownPool = m.current.downPool
	m.stateMutex.Unlock()

	resp.Success = true
	resp.Message = "Entry accepted"

	log.Printf("[ROUND] User %s entered %s with %.4f", req.UserID, req.Direction, req.Amount)
}

func (m *RoundManager) reject(req PredictionEntryRequest, message string) {
	if req.ResponseChan != nil {
		req.ResponseChan <- PredictionEntryResponse{Success: false, Message: message}
	}
}

func (m *RoundManager) broadcastState(msgType string) {
	if m.hub == nil {
		return
	}
	state := m.GetCurrentRound()
	if state == nil {
		return
	}
	m.hub.Broadcast(map[string]interface{}{
		"type": msgType,
		"data": state,
	})
}

func (m *RoundManager) broadcastSettlement() {
	if m.hub == nil {
		return
	}

	m.stateMutex.RLock()
	seed := m.current.seed
	commitment := m.current.commitment
	roundID := m.current.id
	m.stateMutex.RUnlock()

	m.hub.Broadcast(map[string]interface{}{
		"type":       "round_settling",
		"round_id":   roundID,
		"seed":       seed,
		"commitment": commitment,
	})
}
