package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Source yields uniform draws in [0,1). The spin and challenge engines take a
// Source instead of touching a global RNG so outcomes are testable.
type Source interface {
	Float64() float64
}

// CryptoSource draws from crypto/rand. Default source in production.
type CryptoSource struct{}

func (CryptoSource) Float64() float64 {
	var buf [8]byte
	rand.Read(buf[:])
	const maxUint64 = 18446744073709551616.0
	return float64(binary.BigEndian.Uint64(buf[:])) / maxUint64
}

// GenerateSeed creates a cryptographically secure random seed.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment. Rounds
// publish the commitment up front and reveal the seed at settlement.
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// seededFloat maps an HMAC-SHA256 draw over seed/nonce to [0,1). Used to
// seed the placeholder prize pools deterministically per round.
func seededFloat(seed string, nonce int64) float64 {
	h := hmac.New(sha256.New, []byte(seed))
	fmt.Fprintf(h, "pool:%d", nonce)
	sum := h.Sum(nil)

	const maxUint64 = 18446744073709551616.0
	return float64(binary.BigEndian.Uint64(sum[:8])) / maxUint64
}
