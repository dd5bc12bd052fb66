package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNoProvider is returned when no wallet provider is attached.
	ErrNoProvider = errors.New("wallet provider not available")
	// ErrRejected is returned when the user declines the connection prompt.
	ErrRejected = errors.New("connection request rejected")
	// ErrUnrecognizedChain signals that the wallet does not know the target
	// chain and an add-chain request is needed.
	ErrUnrecognizedChain = errors.New("unrecognized chain")
)

// ChainParams is the full chain description handed to an add-chain request.
type ChainParams struct {
	ChainID        string   `json:"chainId"`
	Name           string   `json:"chainName"`
	RPCURLs        []string `json:"rpcUrls"`
	CurrencyName   string   `json:"currencyName"`
	CurrencySymbol string   `json:"currencySymbol"`
	ExplorerURL    string   `json:"explorerUrl"`
}

// Provider abstracts a browser wallet bridge (MetaMask-style). Event
// subscriptions return an unsubscribe func; the provider does not
// de-duplicate handlers, so callers must register exactly once.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)
	BalanceAt(ctx context.Context, account string) (float64, error)
	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, params ChainParams) error
	OnAccountsChanged(handler func(accounts []string)) (unsubscribe func())
	OnChainChanged(handler func(chainID string)) (unsubscribe func())
}

// Signer is the signing handle derived from a connected account. Owned
// exclusively by the session; borrowers must not cache it past a single
// operation because disconnect and account changes invalidate it silently.
type Signer struct {
	provider Provider
	account  string
}

func (s *Signer) Account() string {
	return s.account
}
