package realtime

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"enlechat/models"
)

var ErrNoCredential = errors.New("realtime: no bearer token")

// BearerHeader is the upgrade header the server authenticates /ws with.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// Session keeps the channel dialed as the signed-in user. The server binds
// the socket to the token's user, so a different user needs a new socket.
type Session struct {
	ch        *Channel
	serverURL string
	log       *zap.Logger

	mu     sync.Mutex
	userID string
	token  string
}

func NewSession(ch *Channel, serverURL string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{ch: ch, serverURL: serverURL, log: log}
}

// Follow dials for userID with token, closes the socket when userID is
// empty, and does nothing when userID is already bound.
func (s *Session) Follow(userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == s.userID && (userID == "" || token == s.token) {
		return nil
	}
	if s.userID != "" {
		if err := s.ch.Close(); err != nil {
			s.log.Debug("close realtime", zap.Error(err))
		}
	}
	s.userID, s.token = userID, token
	if userID == "" {
		return nil
	}
	return s.dialLocked()
}

// Reconnect redials with the bound credential.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialLocked()
}

func (s *Session) dialLocked() error {
	if s.token == "" {
		return ErrNoCredential
	}
	if err := s.ch.Connect(s.serverURL, BearerHeader(s.token)); err != nil {
		s.log.Warn("realtime dial failed", zap.String("user_id", s.userID), zap.Error(err))
		return err
	}
	return nil
}

// Listener adapts Follow to identity changes. token reads the credential
// the REST client currently holds.
func (s *Session) Listener(token func() string) func(*models.User) {
	return func(u *models.User) {
		if u == nil {
			s.Follow("", "")
			return
		}
		if err := s.Follow(u.ID, token()); err != nil {
			s.log.Warn("realtime not bound", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
}
