package wallet

import (
	"context"
	"sync"
)

// SimProvider is a simulated wallet bridge for local development and
// demos: a fixed account set, a known-chain list, and manual event firing.
// Stands in until a real browser-side bridge feeds the session.
type SimProvider struct {
	mu sync.Mutex

	accounts    []string
	chainID     string
	balances    map[string]float64
	knownChains map[string]bool
	reject      bool

	accountHandlers []func([]string)
	chainHandlers   []func(string)
}

func NewSimProvider(accounts []string, chainID string) *SimProvider {
	balances := make(map[string]float64)
	for _, account := range accounts {
		balances[account] = 10.0
	}
	return &SimProvider{
		accounts:    accounts,
		chainID:     chainID,
		balances:    balances,
		knownChains: map[string]bool{chainID: true},
	}
}

// SetReject makes the next connection attempt behave like a user decline.
func (p *SimProvider) SetReject(reject bool) {
	p.mu.Lock()
	p.reject = reject
	p.mu.Unlock()
}

func (p *SimProvider) RequestAccounts(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return nil, ErrRejected
	}
	out := make([]string, len(p.accounts))
	copy(out, p.accounts)
	return out, nil
}

func (p *SimProvider) ChainID(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *SimProvider) BalanceAt(_ context.Context, account string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[account], nil
}

func (p *SimProvider) SwitchChain(_ context.Context, chainID string) error {
	p.mu.Lock()
	if !p.knownChains[chainID] {
		p.mu.Unlock()
		return ErrUnrecognizedChain
	}
	p.chainID = chainID
	handlers := append([]func(string){}, p.chainHandlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(chainID)
		}
	}
	return nil
}

func (p *SimProvider) AddChain(_ context.Context, params ChainParams) error {
	p.mu.Lock()
	p.knownChains[params.ChainID] = true
	p.chainID = params.ChainID
	handlers := append([]func(string){}, p.chainHandlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(params.ChainID)
		}
	}
	return nil
}

func (p *SimProvider) OnAccountsChanged(handler func([]string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	index := len(p.accountHandlers)
	p.accountHandlers = append(p.accountHandlers, handler)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if index < len(p.accountHandlers) {
			p.accountHandlers[index] = nil
		}
	}
}

func (p *SimProvider) OnChainChanged(handler func(string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	index := len(p.chainHandlers)
	p.chainHandlers = append(p.chainHandlers, handler)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if index < len(p.chainHandlers) {
			p.chainHandlers[index] = nil
		}
	}
}

// SwitchAccounts replaces the account list and notifies subscribers, the
// way a wallet fires accountsChanged.
func (p *SimProvider) SwitchAccounts(accounts []string) {
	p.mu.Lock()
	p.accounts = accounts
	for _, account := range accounts {
		if _, ok := p.balances[account]; !ok {
			p.balances[account] = 10.0
		}
	}
	handlers := append([]func([]string){}, p.accountHandlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(accounts)
		}
	}
}
