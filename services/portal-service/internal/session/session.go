// Package session holds the patient's session token and tells interested stores when it changes.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/auth"
)

// Key is the fixed name the token is stored under.
const Key = "token"

var ErrNotFound = errors.New("session: no stored token")

// TokenStore persists the token between process runs.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// Listener receives the new token; "" means the session was cleared.
type Listener func(ctx context.Context, token string)

type Session struct {
	store TokenStore
	now   func() time.Time

	mu        sync.RWMutex
	token     string
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

func New(store TokenStore) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store, now: time.Now}
}

// Restore loads a previously saved token. A missing token is not an error.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated(now time.Time) bool {
	return auth.Usable(s.Token(), now)
}

// UsableToken returns the token when it can still be sent, else "".
func (s *Session) UsableToken() string {
	token := s.Token()
	if !auth.Usable(token, s.now()) {
		return ""
	}
	return token
}

func (s *Session) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear(ctx)
	}
	if err := s.store.Save(ctx, token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.publish(ctx, token)
	return nil
}

func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	s.publish(ctx, "")
	return nil
}

// Subscribe registers fn and returns a func that removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) publish(ctx context.Context, token string) {
	s.mu.RLock()
	subs := make([]subscription, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.RUnlock()
	for _, sub := range subs {
		sub.fn(ctx, token)
	}
}
