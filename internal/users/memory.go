package users

import (
	"context"
	"sync"
)

// MemoryStore keeps users in a map. It backs development mode and tests,
// where running Postgres would be overkill.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) Ensure(_ context.Context, id, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = &User{ID: id}
		s.users[id] = u
	}
	u.Name = name
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) RecordWin(_ context.Context, id string) error {
	return s.update(id, func(u *User) { u.Wins++ })
}

func (s *MemoryStore) RecordLoss(_ context.Context, id string) error {
	return s.update(id, func(u *User) { u.Losses++ })
}

func (s *MemoryStore) SetPremium(_ context.Context, id string, premium bool) error {
	return s.update(id, func(u *User) { u.Premium = premium })
}

func (s *MemoryStore) update(id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	return nil
}
