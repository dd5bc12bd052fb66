package server

import (
	"sync"

	"quantspin/internal/store"
	"quantspin/internal/wallet"
)

// walletRegistry holds one wallet session per user. All users share the one
// provider bridge; per-user state (account, chain, flags) lives in the
// session.
type walletRegistry struct {
	mu       sync.Mutex
	provider wallet.Provider
	flags    store.KV
	sessions map[string]*wallet.Session
	subs     map[string]*wallet.Subscription
}

func newWalletRegistry(provider wallet.Provider, flags store.KV) *walletRegistry {
	return &walletRegistry{
		provider: provider,
		flags:    flags,
		sessions: make(map[string]*wallet.Session),
		subs:     make(map[string]*wallet.Subscription),
	}
}

// session returns the user's wallet session, creating and subscribing it on
// first use. Subscription failures are non-fatal: a session without provider
// events still serves connect and state reads.
func (r *walletRegistry) session(userID string) *wallet.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}

	s := wallet.NewSession(r.provider, r.flags, userID)
	r.sessions[userID] = s
	if sub, err := s.Subscribe(); err == nil {
		r.subs[userID] = sub
	}
	return s
}

func (r *walletRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sub := range r.subs {
		sub.Close()
		delete(r.subs, id)
	}
}
