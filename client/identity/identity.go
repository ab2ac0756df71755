// Package identity keeps the signed-in user and the bearer credential.
package identity

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"enlechat/models"
)

// Backend is the slice of the REST client the store needs.
type Backend interface {
	SetToken(token string)
	ClearToken()
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Profile(ctx context.Context) (*models.User, error)
	UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error)
}

// Store holds at most one user record. A record exists only while a
// credential is attached.
type Store struct {
	api    Backend
	tokens *TokenStore
	log    *zap.Logger

	mu   sync.RWMutex
	user *models.User

	lmu       sync.Mutex
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(*models.User)
}

func NewStore(api Backend, tokens *TokenStore, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		api:    api,
		tokens: tokens,
		log:    log,
	}
}

// User returns a copy of the current record, or nil when signed out.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.user)
}

// OnChange registers fn to run after every record change. fn receives nil
// on logout. Listeners run synchronously in registration order.
func (s *Store) OnChange(fn func(*models.User)) (cancel func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.signIn(resp)
	return s.User(), nil
}

func (s *Store) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	resp, err := s.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	s.signIn(resp)
	return s.User(), nil
}

func (s *Store) signIn(resp *models.AuthResponse) {
	s.api.SetToken(resp.Token)
	if s.tokens != nil {
		if err := s.tokens.Save(resp.Token); err != nil {
			s.log.Warn("token not persisted", zap.Error(err))
		}
	}
	s.set(&resp.User)
	s.log.Info("signed in", zap.String("user_id", resp.User.ID))
}

// Logout drops the credential and the record. Safe to call when signed out.
func (s *Store) Logout() {
	s.api.ClearToken()
	if s.tokens != nil {
		if err := s.tokens.Clear(); err != nil {
			s.log.Warn("token file not removed", zap.Error(err))
		}
	}

	s.mu.RLock()
	had := s.user != nil
	s.mu.RUnlock()
	if !had {
		return
	}
	s.set(nil)
	s.log.Info("signed out")
}

// Refresh re-reads the profile. On failure the record is left as is and
// nil is returned.
func (s *Store) Refresh(ctx context.Context) *models.User {
	u, err := s.api.Profile(ctx)
	if err != nil {
		s.log.Error("refresh user", zap.Error(err))
		return nil
	}
	s.set(u)
	return s.User()
}

// Restore reattaches a persisted credential and validates it with one
// profile fetch. It reports whether a session was restored.
func (s *Store) Restore(ctx context.Context) bool {
	if s.tokens == nil {
		return false
	}
	tok, err := s.tokens.Load()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			s.log.Warn("token file unreadable", zap.Error(err))
		}
		return false
	}

	s.api.SetToken(tok)
	u, err := s.api.Profile(ctx)
	if err != nil {
		s.log.Info("stored token rejected", zap.Error(err))
		s.api.ClearToken()
		_ = s.tokens.Clear()
		return false
	}
	s.set(u)
	return true
}

// UpdateSettings saves s and merges the server's answer into the record.
func (s *Store) UpdateSettings(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	out, err := s.api.UpdateSettings(ctx, settings)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return out, nil
	}
	s.user.Settings = *out
	u := clone(s.user)
	s.mu.Unlock()

	s.notify(u)
	return out, nil
}

func (s *Store) set(u *models.User) {
	s.mu.Lock()
	s.user = clone(u)
	snapshot := clone(s.user)
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *Store) notify(u *models.User) {
	s.lmu.Lock()
	fns := make([]func(*models.User), 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l.fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(clone(u))
	}
}

func clone(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Contacts != nil {
		c.Contacts = append([]models.ContactRef(nil), u.Contacts...)
	}
	return &c
}
