// Package identity tracks which user, if any, the client is acting for.
package identity

import (
	"strings"
	"sync"
)

// Change describes an identity transition. An empty UserID means the
// client became anonymous.
type Change struct {
	Previous string
	UserID   string
}

// Anonymous reports whether the new identity has no user.
func (c Change) Anonymous() bool {
	return c.UserID == ""
}

// Provider exposes the current identity and notifies on changes.
type Provider interface {
	Current() (string, bool)
	Subscribe(fn func(Change)) (unsubscribe func())
}

// Session is an in-memory Provider. Listeners run synchronously on the
// goroutine that performed Login or Logout, in subscription order.
// Concurrent changes are delivered one at a time in the order they were
// applied, so the last listener call always carries the current user. A
// listener must not call Login or Logout.
type Session struct {
	deliver sync.Mutex // held across a change and its notifications

	mu        sync.Mutex
	userID    string
	nextID    int
	listeners map[int]func(Change)
	order     []int
}

// NewSession creates a session, logged in as userID when it is non-empty.
func NewSession(userID string) *Session {
	return &Session{
		userID:    strings.TrimSpace(userID),
		listeners: make(map[int]func(Change)),
	}
}

func (s *Session) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// Login switches to userID. Logging in as the current user does not notify.
func (s *Session) Login(userID string) {
	s.set(strings.TrimSpace(userID))
}

// Logout switches to the anonymous identity.
func (s *Session) Logout() {
	s.set("")
}

func (s *Session) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) set(userID string) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	change := Change{Previous: s.userID, UserID: userID}
	s.userID = userID

	listeners := make([]func(Change), 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}
