package realtime

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"enlechat/protocol"
)

// echoServer answers every frame with typing_indicator carrying the same data,
// and pushes user_status on connect.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, _ := protocol.Encode(protocol.EventUserStatus, []string{"u1", "u2"})
		conn.WriteMessage(websocket.TextMessage, hello)

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(frame)
			if err != nil {
				continue
			}
			out, _ := protocol.Encode(protocol.EventTypingIndicator, env.Data)
			conn.WriteMessage(websocket.TextMessage, out)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("http://localhost:5000")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:5000/ws", u)

	u, err = WebsocketURL("https://chat.example.com/base/")
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example.com/base/ws", u)

	_, err = WebsocketURL("ftp://x")
	require.Error(t, err)
}

func TestEmitAndReceive(t *testing.T) {
	srv := echoServer(t)
	ch := New(zaptest.NewLogger(t))

	status := make(chan []string, 1)
	typing := make(chan protocol.Typing, 1)
	ch.On(protocol.EventUserStatus, func(env *protocol.Envelope) {
		var ids []string
		require.NoError(t, env.Bind(&ids))
		status <- ids
	})
	ch.On(protocol.EventTypingIndicator, func(env *protocol.Envelope) {
		var ev protocol.Typing
		require.NoError(t, env.Bind(&ev))
		typing <- ev
	})

	require.NoError(t, ch.Connect(srv.URL, nil))
	defer ch.Close()
	require.True(t, ch.IsConnected())

	select {
	case ids := <-status:
		require.Equal(t, []string{"u1", "u2"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("no user_status")
	}

	require.NoError(t, ch.Emit(protocol.EventTyping, protocol.Typing{SenderID: "u1", IsTyping: true}))
	select {
	case ev := <-typing:
		require.Equal(t, "u1", ev.SenderID)
		require.True(t, ev.IsTyping)
	case <-time.After(2 * time.Second):
		t.Fatal("no typing_indicator")
	}
}

func TestCancelDetachesHandler(t *testing.T) {
	srv := echoServer(t)
	ch := New(nil)

	hits := make(chan struct{}, 4)
	cancel := ch.On(protocol.EventTypingIndicator, func(*protocol.Envelope) { hits <- struct{}{} })
	cancel()
	cancel()

	marker := make(chan struct{}, 1)
	ch.On(protocol.EventTypingIndicator, func(*protocol.Envelope) { marker <- struct{}{} })

	require.NoError(t, ch.Connect(srv.URL, nil))
	defer ch.Close()
	require.NoError(t, ch.Emit(protocol.EventTyping, protocol.Typing{SenderID: "u1"}))

	select {
	case <-marker:
	case <-time.After(2 * time.Second):
		t.Fatal("no typing_indicator")
	}
	require.Len(t, hits, 0)
}

func TestEmitWithoutConnection(t *testing.T) {
	ch := New(nil)
	require.ErrorIs(t, ch.Emit(protocol.EventTyping, nil), ErrNotConnected)
	require.NoError(t, ch.Close())
}

func TestDisconnectNotified(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	ch := New(nil)
	lost := make(chan struct{}, 1)
	ch.On(EventDisconnect, func(*protocol.Envelope) { lost <- struct{}{} })
	require.NoError(t, ch.Connect(srv.URL, nil))

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	require.False(t, ch.IsConnected())
}

func TestHandlersSeeEventsInOrder(t *testing.T) {
	const total = 2000
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < total; i++ {
			frame, _ := protocol.Encode(protocol.EventTypingIndicator, protocol.Typing{SenderID: "u2", IsTyping: i%2 == 0})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		// hold the socket open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var mu sync.Mutex
	var seen []bool
	ch := New(nil)
	ch.On(protocol.EventTypingIndicator, func(env *protocol.Envelope) {
		var ev protocol.Typing
		if err := env.Bind(&ev); err != nil {
			return
		}
		mu.Lock()
		seen = append(seen, ev.IsTyping)
		mu.Unlock()
	})

	require.NoError(t, ch.Connect(srv.URL, nil))
	defer ch.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == total
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, isTyping := range seen {
		require.Equal(t, i%2 == 0, isTyping, "event %d applied out of order", i)
	}
	require.False(t, seen[total-1])
}

func TestDisconnectDeliveredAfterPendingEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		frame, _ := protocol.Encode(protocol.EventUserStatus, []string{"u1"})
		conn.WriteMessage(websocket.TextMessage, frame)
		conn.Close()
	}))
	defer srv.Close()

	order := make(chan string, 2)
	ch := New(nil)
	ch.On(protocol.EventUserStatus, func(*protocol.Envelope) {
		time.Sleep(50 * time.Millisecond)
		order <- protocol.EventUserStatus
	})
	ch.On(EventDisconnect, func(*protocol.Envelope) { order <- EventDisconnect })
	require.NoError(t, ch.Connect(srv.URL, nil))

	for _, want := range []string{protocol.EventUserStatus, EventDisconnect} {
		select {
		case got := <-order:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s", want)
		}
	}
}
