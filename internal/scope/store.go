// Package scope holds the process-wide tenant-scope override: which
// company, if any, data queries are currently pinned to. The override is
// set by the provider state machine and consulted by the query adapter on
// every call.
package scope

import (
	"sync"

	"procurement-backend/internal/logger"
)

// Global is the sentinel override meaning "no tenant filter at all".
// Only privileged identities ever reach this state.
const Global = "__COMPANY_SCOPE_ALL__"

// Subscriber is notified with the new override value after each change.
type Subscriber func(override string)

type subscription struct {
	id int
	fn Subscriber
}

// Store is a minimal synchronous observable register. The zero override
// "" means no override is active.
type Store struct {
	mu       sync.Mutex
	override string
	subs     []subscription
	nextID   int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Override returns the current override value: "", a company ID, or Global.
func (s *Store) Override() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// SetOverride updates the override and synchronously notifies all
// subscribers in registration order. Setting the current value again is a
// no-op: no notification is delivered. A panicking subscriber is logged
// and never blocks the remaining subscribers or the caller.
func (s *Store) SetOverride(override string) {
	s.mu.Lock()
	if override == s.override {
		s.mu.Unlock()
		return
	}
	s.override = override
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		notify(sub, override)
	}
}

func notify(sub subscription, override string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scope: subscriber %d panicked: %v", sub.id, r)
		}
	}()
	sub.fn(override)
}

// Subscribe registers fn and returns its unsubscribe function.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
