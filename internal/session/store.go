// Package session keeps track of who the identified visitor is. The user is
// written through to a durable Slot so it survives a restart on the same
// device, and every change is pushed to subscribers.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/Domenick1991/galaxium/internal/domain"
)

// UserKey is the fixed slot key holding the current user.
const UserKey = "galaxium_user"

// Slot is a durable single-value store. Get returns nil, nil when empty.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

type Store struct {
	slot Slot

	mu      sync.RWMutex
	user    *domain.User
	subs    map[int]func(*domain.User)
	nextSub int
}

// Open restores the current user from the slot. An unreadable record is
// treated as no user and removed.
func Open(ctx context.Context, slot Slot) (*Store, error) {
	s := &Store{slot: slot, subs: make(map[int]func(*domain.User))}

	data, err := slot.Get(ctx, UserKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil || u.ID <= 0 {
		log.Printf("session: discarding unreadable user record")
		if err := slot.Clear(ctx, UserKey); err != nil {
			return nil, fmt.Errorf("clear session: %w", err)
		}
		return s, nil
	}
	s.user = &u
	return s, nil
}

func (s *Store) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetCurrentUser persists u, or clears the slot when u is nil, and then
// notifies subscribers. The in-memory user only changes once the slot write
// succeeded.
func (s *Store) SetCurrentUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	if u == nil {
		if err := s.slot.Clear(ctx, UserKey); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("clear session: %w", err)
		}
		s.user = nil
	} else {
		data, err := json.Marshal(u)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encode session user: %w", err)
		}
		if err := s.slot.Set(ctx, UserKey, data); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("save session: %w", err)
		}
		cp := *u
		s.user = &cp
	}
	subs := s.subscribers()
	s.mu.Unlock()

	current := s.CurrentUser()
	for _, fn := range subs {
		fn(current)
	}
	return nil
}

func (s *Store) Logout(ctx context.Context) error {
	return s.SetCurrentUser(ctx, nil)
}

// Subscribe registers fn for user changes and returns a function removing it.
func (s *Store) Subscribe(fn func(*domain.User)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// subscribers returns callbacks in registration order. Caller holds mu.
func (s *Store) subscribers() []func(*domain.User) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(*domain.User), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
