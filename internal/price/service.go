package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"quantspin/internal/cache"
)

const (
	DEFAULT_ENDPOINT = "https://api.binance.com/api/v3/ticker/price"
	DEFAULT_SYMBOL   = "BNBUSDT"
	PRICE_CACHE_TTL  = 5 * time.Minute
	FETCH_TIMEOUT    = 5 * time.Second
)

// FetchFunc retrieves the upstream quote. Injectable for tests.
type FetchFunc func(ctx context.Context) (float64, error)

// Service serves the current quote through a single-slot TTL cache. A fresh
// cached value short-circuits the upstream call; when the upstream fails, the
// last cached value is served even if stale, and an error surfaces only when
// no value was ever cached.
type Service struct {
	slot  *cache.TTLSlot
	fetch FetchFunc
}

func New() *Service {
	return NewWithFetcher(cache.NewTTLSlot(PRICE_CACHE_TTL), binanceFetcher(DEFAULT_ENDPOINT, DEFAULT_SYMBOL))
}

// NewWithFetcher wires an explicit cache slot and fetcher. The slot is
// injected rather than package state so instances and tests stay isolated.
func NewWithFetcher(slot *cache.TTLSlot, fetch FetchFunc) *Service {
	return &Service{slot: slot, fetch: fetch}
}

// CurrentPrice returns the cached-or-fetched quote.
func (s *Service) CurrentPrice(ctx context.Context) (float64, error) {
	if value, fresh := s.slot.Get(); fresh {
		return value, nil
	}

	value, err := s.fetch(ctx)
	if err == nil {
		s.slot.Set(value)
		return value, nil
	}

	if last, ok := s.slot.Last(); ok {
		log.Printf("[PRICE] Upstream fetch failed, serving cached quote: %v", err)
		return last, nil
	}

	return 0, fmt.Errorf("price fetch failed with no cached value: %w", err)
}

// LatestPrice satisfies the prediction manager's price source.
func (s *Service) LatestPrice(ctx context.Context) (float64, error) {
	return s.CurrentPrice(ctx)
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// binanceFetcher pulls a spot ticker quote using fiber's HTTP agent.
func binanceFetcher(endpoint, symbol string) FetchFunc {
	url := fmt.Sprintf("%s?symbol=%s", endpoint, symbol)

	return func(ctx context.Context) (float64, error) {
		deadline := FETCH_TIMEOUT
		if d, ok := ctx.Deadline(); ok {
			if remaining := time.Until(d); remaining < deadline {
				deadline = remaining
			}
		}

		agent := fiber.Get(url)
		agent.Timeout(deadline)

		statusCode, body, errs := agent.Bytes()
		if len(errs) > 0 {
			return 0, fmt.Errorf("upstream request failed: %w", errs[0])
		}
		if statusCode != fiber.StatusOK {
			return 0, fmt.Errorf("upstream returned status %d", statusCode)
		}

		var ticker tickerResponse
		if err := json.Unmarshal(body, &ticker); err != nil {
			return 0, fmt.Errorf("decode upstream response: %w", err)
		}

		value, err := strconv.ParseFloat(ticker.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("parse upstream price %q: %w", ticker.Price, err)
		}
		return value, nil
	}
}
