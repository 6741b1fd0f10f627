// Package store persists registry investors, wallet ownership and special
// wallet designations.
package store

import (
	"context"
	"sync"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/registry/models"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process maps.
type InMemoryStore struct {
	mu        sync.RWMutex
	investors map[id.InvestorID]*models.Investor
	owners    map[id.Address]id.InvestorID
	specials  map[id.Address]compliance.SpecialKind
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		investors: make(map[id.InvestorID]*models.Investor),
		owners:    make(map[id.Address]id.InvestorID),
		specials:  make(map[id.Address]compliance.SpecialKind),
	}
}

func (s *InMemoryStore) Create(_ context.Context, inv *models.Investor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investors[inv.ID]; ok {
		return sentinel.ErrConflict
	}
	s.investors[inv.ID] = inv.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, investorID id.InvestorID) (*models.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investors[investorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return inv.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, inv *models.Investor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investors[inv.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.investors[inv.ID] = inv.Clone()
	return nil
}

// List returns every investor. Order is unspecified.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Investor, 0, len(s.investors))
	for _, inv := range s.investors {
		out = append(out, inv.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) InvestorOf(_ context.Context, wallet id.Address) (id.InvestorID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[wallet], nil
}

// AssignWallet moves a wallet to investorID, delisting it from any previous
// owner in the same step.
func (s *InMemoryStore) AssignWallet(_ context.Context, wallet id.Address, investorID id.InvestorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.investors[investorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev, ok := s.owners[wallet]; ok && prev != investorID {
		if p := s.investors[prev]; p != nil {
			p.Wallets = removeAddress(p.Wallets, wallet)
		}
	}
	s.owners[wallet] = investorID
	if !next.HasWallet(wallet) {
		next.Wallets = append(next.Wallets, wallet)
	}
	return nil
}

func (s *InMemoryStore) RemoveWallet(_ context.Context, wallet id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.owners[wallet]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.owners, wallet)
	if p := s.investors[prev]; p != nil {
		p.Wallets = removeAddress(p.Wallets, wallet)
	}
	return nil
}

func (s *InMemoryStore) SpecialKind(_ context.Context, wallet id.Address) (compliance.SpecialKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.specials[wallet], nil
}

// SetSpecialKind designates a special wallet; SpecialNone clears it.
func (s *InMemoryStore) SetSpecialKind(_ context.Context, wallet id.Address, kind compliance.SpecialKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == compliance.SpecialNone {
		delete(s.specials, wallet)
		return nil
	}
	s.specials[wallet] = kind
	return nil
}

func removeAddress(list []id.Address, w id.Address) []id.Address {
	out := list[:0]
	for _, x := range list {
		if x != w {
			out = append(out, x)
		}
	}
	return out
}
