package game

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	REFERRAL_CODE_LENGTH = 8
	REFERRAL_PARAM       = "ref"
	REFERRAL_TTL         = 30 * 24 * time.Hour

	KEY_REFERRAL_CODE_PREFIX  = "referral:code:"
	KEY_REFERRAL_STATS_PREFIX = "referral:stats:"
	SPINS_PER_REFERRAL        = 1
)

// GenerateReferralCode derives the user's short code from an identifier
// (typically a wallet address). Deterministic, 8 uppercase characters,
// URL/display safe: the base64 form is stripped of '+', '/' and '=' before
// truncation and padded with '0' for very short identifiers.
func GenerateReferralCode(identifier string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(identifier))
	encoded = strings.NewReplacer("+", "", "/", "", "=", "").Replace(encoded)
	encoded = strings.ToUpper(encoded)

	if len(encoded) > REFERRAL_CODE_LENGTH {
		encoded = encoded[:REFERRAL_CODE_LENGTH]
	}
	for len(encoded) < REFERRAL_CODE_LENGTH {
		encoded += "0"
	}
	return encoded
}

// ExtractReferralCode pulls the ref query parameter out of a URL. Malformed
// input returns "" rather than an error; a landing page link is never worth
// failing over.
func ExtractReferralCode(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get(REFERRAL_PARAM)
}

type storedReferral struct {
	Code       string    `json:"code"`
	CapturedAt time.Time `json:"captured_at"`
}

// ReferralStore persists a captured referral code with its capture time and
// expires it lazily after 30 days.
type ReferralStore struct {
	kv  StoreKV
	now func() time.Time
}

func NewReferralStore(kv StoreKV) *ReferralStore {
	return &ReferralStore{kv: kv, now: time.Now}
}

// NewReferralStoreWithClock injects the clock used for expiry checks.
func NewReferralStoreWithClock(kv StoreKV, now func() time.Time) *ReferralStore {
	return &ReferralStore{kv: kv, now: now}
}

func (s *ReferralStore) Store(ctx context.Context, userID, code string) error {
	entry := storedReferral{Code: code, CapturedAt: s.now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, KEY_REFERRAL_CODE_PREFIX+userID, string(data), 0)
}

// Retrieve returns the captured code, treating anything older than 30 days
// as absent and clearing it in the same call.
func (s *ReferralStore) Retrieve(ctx context.Context, userID string) (string, error) {
	raw, ok, err := s.kv.Get(ctx, KEY_REFERRAL_CODE_PREFIX+userID)
	if err != nil || !ok {
		return "", err
	}

	var entry storedReferral
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Unreadable entry: clear it, same as expired.
		s.Clear(ctx, userID)
		return "", nil
	}

	if s.now().Sub(entry.CapturedAt) > REFERRAL_TTL {
		if err := s.Clear(ctx, userID); err != nil {
			return "", err
		}
		return "", nil
	}

	return entry.Code, nil
}

func (s *ReferralStore) Clear(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, KEY_REFERRAL_CODE_PREFIX+userID)
}

// ReferralLedger is the durable side of referral tracking. Backed by
// Postgres when the database is up; the tracker works without it.
type ReferralLedger interface {
	RecordReferral(ctx context.Context, code, newUserID string) error
	CountReferrals(ctx context.Context, code string) (int, error)
}

type referralStats struct {
	TotalReferrals  int      `json:"totalReferrals"`
	SpinsEarned     int      `json:"spinsEarned"`
	RecentReferrals []string `json:"recentReferrals"`
}

// ReferralTracker serves the track/stats endpoints: KV counters for speed,
// mirrored into the ledger when one is wired.
type ReferralTracker struct {
	// mu serializes the stats read-modify-write; concurrent tracks would
	// otherwise drop credits.
	mu     sync.Mutex
	kv     StoreKV
	ledger ReferralLedger
}

func NewReferralTracker(kv StoreKV, ledger ReferralLedger) *ReferralTracker {
	return &ReferralTracker{kv: kv, ledger: ledger}
}

// Track credits a referral code for bringing in newUserID.
func (t *ReferralTracker) Track(ctx context.Context, code, newUserID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := KEY_REFERRAL_STATS_PREFIX + code

	raw, ok, err := t.kv.Get(ctx, key)
	if err != nil {
		return err
	}

	stats := referralStats{RecentReferrals: []string{}}
	if ok {
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			stats = referralStats{RecentReferrals: []string{}}
		}
	}

	stats.TotalReferrals++
	stats.SpinsEarned = stats.TotalReferrals * SPINS_PER_REFERRAL
	stats.RecentReferrals = append(stats.RecentReferrals, newUserID)
	if len(stats.RecentReferrals) > 10 {
		stats.RecentReferrals = stats.RecentReferrals[len(stats.RecentReferrals)-10:]
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := t.kv.Set(ctx, key, string(data), 0); err != nil {
		return err
	}

	if t.ledger != nil {
		if err := t.ledger.RecordReferral(ctx, code, newUserID); err != nil {
			log.Printf("[REFERRAL] Ledger write failed for %s: %v", code, err)
		}
	}

	log.Printf("[REFERRAL] Code %s credited for user %s (%d total)", code, newUserID, stats.TotalReferrals)
	return nil
}

// StatsFor returns the stats payload for a user's own code.
func (t *ReferralTracker) StatsFor(ctx context.Context, userID string) (map[string]interface{}, error) {
	code := GenerateReferralCode(userID)

	raw, ok, err := t.kv.Get(ctx, KEY_REFERRAL_STATS_PREFIX+code)
	if err != nil {
		return nil, err
	}

	stats := referralStats{RecentReferrals: []string{}}
	if ok {
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			return nil, fmt.Errorf("corrupt stats for %s: %w", code, err)
		}
	} else if t.ledger != nil {
		// Cold KV (e.g. after a restart without Redis): fall back to the ledger count.
		count, err := t.ledger.CountReferrals(ctx, code)
		if err == nil {
			stats.TotalReferrals = count
			stats.SpinsEarned = count * SPINS_PER_REFERRAL
		}
	}

	return map[string]interface{}{
		"userId":       userID,
		"referralCode": code,
		"stats": map[string]interface{}{
			"totalReferrals":  stats.TotalReferrals,
			"spinsEarned":     stats.SpinsEarned,
			"recentReferrals": stats.RecentReferrals,
		},
	}, nil
}
