package realtime

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"enlechat/models"
)

// authServer accepts upgrades carrying a bearer token and records them.
func authServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var auths []string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mu.Lock()
		auths = append(auths, auth)
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), auths...)
	}
}

func TestSessionFollowsIdentity(t *testing.T) {
	srv, dials := authServer(t)
	ch := New(nil)
	defer ch.Close()
	sess := NewSession(ch, srv.URL, zaptest.NewLogger(t))
	token := "tok-a"
	follow := sess.Listener(func() string { return token })

	follow(&models.User{ID: "u1"})
	require.True(t, ch.IsConnected())
	require.Equal(t, []string{"Bearer tok-a"}, dials())

	// same user again, e.g. a profile refresh
	follow(&models.User{ID: "u1"})
	require.Len(t, dials(), 1)

	follow(nil)
	require.False(t, ch.IsConnected())

	token = "tok-b"
	follow(&models.User{ID: "u2"})
	require.True(t, ch.IsConnected())
	require.Equal(t, []string{"Bearer tok-a", "Bearer tok-b"}, dials())

	require.NoError(t, ch.Close())
	require.NoError(t, sess.Reconnect())
	require.True(t, ch.IsConnected())
	require.Equal(t, "Bearer tok-b", dials()[2])
}

func TestSessionWithoutCredential(t *testing.T) {
	srv, dials := authServer(t)
	sess := NewSession(New(nil), srv.URL, nil)

	require.ErrorIs(t, sess.Reconnect(), ErrNoCredential)
	require.ErrorIs(t, sess.Follow("u1", ""), ErrNoCredential)
	require.Empty(t, dials())
}
