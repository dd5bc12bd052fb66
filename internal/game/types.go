package game

import (
	"time"
)

// Currency identifies the payout currency of a prize.
type Currency string

const (
	CurrencyBNB Currency = "BNB"
	CurrencyETH Currency = "ETH"
)

// Prize is a wheel catalog entry. Amount 0 marks the "Try Again" segment.
type Prize struct {
	ID          int      `json:"id"`
	Amount      float64  `json:"amount"`
	Currency    Currency `json:"currency"`
	Color       string   `json:"color"`
	Probability float64  `json:"probability"`
	Label       string   `json:"label"`
}

// SpinResult is the per-spin outcome handed back to the UI. Rotation is the
// wheel angle in degrees and carries no game semantics.
type SpinResult struct {
	Prize      *Prize  `json:"prize"`
	SpinNumber int     `json:"spin_number"`
	IsWin      bool    `json:"is_win"`
	IsNearMiss bool    `json:"is_near_miss"`
	Rotation   float64 `json:"rotation"`
}

// SpinSessionState is a read-only snapshot of a user's spin session.
type SpinSessionState struct {
	UserID         string  `json:"user_id"`
	SpinsRemaining int     `json:"spins_remaining"`
	CurrentSpin    int     `json:"current_spin"`
	IsSpinning     bool    `json:"is_spinning"`
	WinHistory     []Prize `json:"win_history"`
}

type SpinRequest struct {
	UserID string `json:"user_id"`
}

type SpinResponse struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	Result         *SpinResult `json:"result,omitempty"`
	SpinsRemaining int         `json:"spins_remaining"`
}

type ChallengeRequest struct {
	UserID string `json:"user_id"`
	Prize  *Prize `json:"prize"`
	Accept bool   `json:"accept"`
}

type ChallengeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Prize     *Prize `json:"prize,omitempty"`
	Forfeited bool   `json:"forfeited"`
}

// PredictionState is the broadcastable view of the current round.
type PredictionState struct {
	RoundID     int64   `json:"round_id"`
	LockedPrice float64 `json:"locked_price"`
	TimeLeft    int     `json:"time_left"`
	IsLive      bool    `json:"is_live"`
	UpPool      float64 `json:"up_pool"`
	DownPool    float64 `json:"down_pool"`
}

type PredictionEntryRequest struct {
	UserID       string                       `json:"user_id"`
	Direction    string                       `json:"direction"` // "up" or "down"
	Amount       float64                      `json:"amount"`
	ResponseChan chan PredictionEntryResponse `json:"-"`
}

type PredictionEntryResponse struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	RoundID  int64   `json:"round_id,omitempty"`
	UpPool   float64 `json:"up_pool,omitempty"`
	DownPool float64 `json:"down_pool,omitempty"`
}

// SpinRecord is a validated spin held by the claim ledger.
type SpinRecord struct {
	SpinID      string    `json:"spin_id"`
	UserID      string    `json:"user_id"`
	Prize       *Prize    `json:"prize,omitempty"`
	Status      string    `json:"status"` // pending, confirmed
	ValidatedAt time.Time `json:"validated_at"`
}

type ValidateSpinRequest struct {
	SpinID string `json:"spinId"`
	UserID string `json:"userId"`
	Prize  *Prize `json:"prize,omitempty"`
}

type ValidateSpinResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SpinID  string `json:"spinId,omitempty"`
}

type ClaimSpinRequest struct {
	SpinID string `json:"spinId"`
	UserID string `json:"userId"`
}

type ClaimSpinResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
