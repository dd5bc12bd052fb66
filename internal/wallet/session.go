package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const KEY_PREVIOUSLY_CONNECTED = "wallet:previously_connected:"

// FlagStore persists the reconnect-intent flag across sessions.
type FlagStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// State is a read-only snapshot of the wallet session.
type State struct {
	Account      string  `json:"account"`
	Balance      float64 `json:"balance"`
	ChainID      string  `json:"chain_id"`
	IsConnecting bool    `json:"is_connecting"`
	IsConnected  bool    `json:"is_connected"`
}

// Session tracks one wallet connection lifecycle. The provider and signer
// handles are owned exclusively by the session; Disconnect clears every
// field under a single lock so no partially-cleared state is observable.
type Session struct {
	mu       sync.Mutex
	provider Provider
	flags    FlagStore
	userID   string

	account      string
	balance      float64
	chainID      string
	signer       *Signer
	isConnecting bool
	isConnected  bool

	unsubscribeAccounts func()
	unsubscribeChain    func()
}

func NewSession(provider Provider, flags FlagStore, userID string) *Session {
	return &Session{
		provider: provider,
		flags:    flags,
		userID:   userID,
	}
}

// Connect requests accounts from the provider. On success the account,
// balance, chain id and signer are stored and the previously-connected flag
// is persisted. On rejection or a missing provider the state is left
// disconnected and the error surfaces to the caller; there is no retry loop.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.provider == nil {
		s.mu.Unlock()
		return ErrNoProvider
	}
	if s.isConnecting {
		s.mu.Unlock()
		return errors.New("connection already in progress")
	}
	s.isConnecting = true
	provider := s.provider
	s.mu.Unlock()

	accounts, err := provider.RequestAccounts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isConnecting = false

	if err != nil {
		if errors.Is(err, ErrRejected) {
			return fmt.Errorf("wallet connection rejected: %w", err)
		}
		return fmt.Errorf("wallet connection failed: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("wallet returned no accounts")
	}

	return s.adoptAccountLocked(ctx, accounts[0])
}

// adoptAccountLocked derives the per-account state. Caller holds s.mu.
func (s *Session) adoptAccountLocked(ctx context.Context, account string) error {
	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}

	balance, err := s.provider.BalanceAt(ctx, account)
	if err != nil {
		// Balance is cosmetic; the connection stands without it.
		log.Printf("[WALLET] Balance fetch failed for %s: %v", account, err)
		balance = 0
	}

	s.account = account
	s.balance = balance
	s.chainID = chainID
	s.signer = &Signer{provider: s.provider, account: account}
	s.isConnected = true

	if s.flags != nil {
		if err := s.flags.Set(ctx, KEY_PREVIOUSLY_CONNECTED+s.userID, "1", 0); err != nil {
			log.Printf("[WALLET] Failed to persist connect flag: %v", err)
		}
	}

	log.Printf("[WALLET] Connected %s on chain %s", account, chainID)
	return nil
}

// Disconnect clears all wallet state atomically and drops the persisted
// flag. Wallets have no programmatic disconnect, so the provider is not
// called.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	s.account = ""
	s.balance = 0
	s.chainID = ""
	s.signer = nil
	s.isConnected = false
	s.isConnecting = false
	s.mu.Unlock()

	if s.flags != nil {
		if err := s.flags.Delete(ctx, KEY_PREVIOUSLY_CONNECTED+s.userID); err != nil {
			log.Printf("[WALLET] Failed to clear connect flag: %v", err)
		}
	}

	log.Println("[WALLET] Disconnected")
}

// SwitchNetwork asks the wallet to switch chains, falling back to an
// add-chain request when the wallet does not know the target. Any other
// error propagates unchanged.
func (s *Session) SwitchNetwork(ctx context.Context, params ChainParams) error {
	s.mu.Lock()
	provider := s.provider
	s.mu.Unlock()

	if provider == nil {
		return ErrNoProvider
	}

	err := provider.SwitchChain(ctx, params.ChainID)
	if err == nil {
		s.setChainID(params.ChainID)
		return nil
	}
	if !errors.Is(err, ErrUnrecognizedChain) {
		return err
	}

	if err := provider.AddChain(ctx, params); err != nil {
		return err
	}
	s.setChainID(params.ChainID)
	return nil
}

func (s *Session) setChainID(chainID string) {
	s.mu.Lock()
	s.chainID = chainID
	s.mu.Unlock()
}

// Subscribe registers the account-changed and chain-changed handlers exactly
// once and returns a handle whose Close deregisters both. The provider does
// not de-duplicate handlers, so re-registering on every reconnect would
// accumulate duplicates.
func (s *Session) Subscribe() (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider == nil {
		return nil, ErrNoProvider
	}
	if s.unsubscribeAccounts != nil || s.unsubscribeChain != nil {
		return nil, errors.New("already subscribed")
	}

	s.unsubscribeAccounts = s.provider.OnAccountsChanged(s.handleAccountsChanged)
	s.unsubscribeChain = s.provider.OnChainChanged(s.handleChainChanged)

	return &Subscription{session: s}, nil
}

func (s *Session) handleAccountsChanged(accounts []string) {
	ctx := context.Background()

	if len(accounts) == 0 {
		s.Disconnect(ctx)
		return
	}

	s.mu.Lock()
	if accounts[0] == s.account {
		s.mu.Unlock()
		return
	}
	// Different account: reconnect with the new one.
	err := s.adoptAccountLocked(ctx, accounts[0])
	s.mu.Unlock()

	if err != nil {
		// The provider already moved to the new account, so the old signer
		// is stale; don't keep it around.
		log.Printf("[WALLET] Account switch failed, disconnecting: %v", err)
		s.Disconnect(ctx)
	}
}

// handleChainChanged updates the chain id only; account and balance are left
// alone.
func (s *Session) handleChainChanged(chainID string) {
	s.setChainID(chainID)
	log.Printf("[WALLET] Chain changed to %s", chainID)
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Account:      s.account,
		Balance:      s.balance,
		ChainID:      s.chainID,
		IsConnecting: s.isConnecting,
		IsConnected:  s.isConnected,
	}
}

// Signer returns the current signing handle, nil when disconnected.
func (s *Session) Signer() *Signer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer
}

// PreviouslyConnected reports the persisted reconnect-intent flag.
func (s *Session) PreviouslyConnected(ctx context.Context) bool {
	if s.flags == nil {
		return false
	}
	_, ok, err := s.flags.Get(ctx, KEY_PREVIOUSLY_CONNECTED+s.userID)
	if err != nil {
		return false
	}
	return ok
}

// Subscription is the scoped handle for provider event registrations.
type Subscription struct {
	session *Session
	once    sync.Once
}

// Close deregisters both handlers. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		s := sub.session
		s.mu.Lock()
		unsubAccounts := s.unsubscribeAccounts
		unsubChain := s.unsubscribeChain
		s.unsubscribeAccounts = nil
		s.unsubscribeChain = nil
		s.mu.Unlock()

		if unsubAccounts != nil {
			unsubAccounts()
		}
		if unsubChain != nil {
			unsubChain()
		}
	})
}
