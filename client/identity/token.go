package identity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("no valid token (login required)")

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// TokenStore persists the bearer credential between runs.
type TokenStore struct {
	dir string
	now func() time.Time
}

func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir, now: time.Now}
}

func (s *TokenStore) path() string { return filepath.Join(s.dir, "token.json") }

// Save writes tok along with the expiry read from its exp claim. Tokens
// without exp never expire locally.
func (s *TokenStore) Save(tok string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: expiry(tok)})
}

// Load returns the stored token, or ErrNoToken when none is usable. An
// expired token is removed.
func (s *TokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil || tf.AccessToken == "" {
		_ = s.Clear()
		return "", ErrNoToken
	}
	if !tf.ExpiresAt.IsZero() && s.now().After(tf.ExpiresAt) {
		_ = s.Clear()
		return "", ErrNoToken
	}
	return tf.AccessToken, nil
}

func (s *TokenStore) Clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// expiry reads the exp claim without verifying the signature; the server
// is the one that checks it.
func expiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
