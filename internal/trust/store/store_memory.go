// Package store persists role assignments.
package store

import (
	"context"
	"slices"
	"sync"

	compliance "secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[id.Address]map[compliance.Role]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{roles: make(map[id.Address]map[compliance.Role]struct{})}
}

func (s *InMemoryStore) Add(_ context.Context, addr id.Address, role compliance.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.roles[addr]
	if !ok {
		set = make(map[compliance.Role]struct{})
		s.roles[addr] = set
	}
	set[role] = struct{}{}
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, addr id.Address, role compliance.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.roles[addr]
	if _, ok := set[role]; !ok {
		return sentinel.ErrNotFound
	}
	delete(set, role)
	if len(set) == 0 {
		delete(s.roles, addr)
	}
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, addr id.Address, role compliance.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[addr][role]
	return ok, nil
}

// Roles returns the roles held by addr, sorted.
func (s *InMemoryStore) Roles(_ context.Context, addr id.Address) ([]compliance.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]compliance.Role, 0, len(s.roles[addr]))
	for r := range s.roles[addr] {
		out = append(out, r)
	}
	slices.Sort(out)
	return out, nil
}
