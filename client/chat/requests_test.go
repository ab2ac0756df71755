package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"enlechat/models"
	"enlechat/protocol"
)

func TestAcceptConnectionRequest(t *testing.T) {
	srv := newFakeServer()
	alice := models.ConnectionRequest{SenderID: "123456", SenderUsername: "Alice", SenderEnleID: "111111"}
	srv.requests = []models.ConnectionRequest{alice}
	h := signedIn(t, srv)
	require.Len(t, h.store.Requests(), 1)

	require.NoError(t, h.store.Accept(context.Background(), alice))

	require.Empty(t, h.store.Requests())
	require.True(t, srv.respond["123456"])

	var names []string
	for _, c := range h.store.Contacts() {
		names = append(names, c.Username)
	}
	require.Contains(t, names, "Alice")
	require.Equal(t, "Alice", h.store.Name("123456"))

	require.Equal(t, "123456", h.store.ActiveContact())
	announcements := 0
	for _, m := range h.store.Messages() {
		if m.Text == "You and Alice are now connected!" {
			announcements++
			require.Equal(t, "me", m.Sender)
			require.Equal(t, "123456", m.Recipient)
		}
	}
	require.Equal(t, 1, announcements)

	out := h.ch.emittedOf(protocol.EventSendMessage)
	require.Len(t, out, 1)
	var emitted models.Message
	require.NoError(t, out[0].Bind(&emitted))
	require.Equal(t, "You and Alice are now connected!", emitted.Text)
}

func TestAcceptFailureKeepsRequest(t *testing.T) {
	srv := newFakeServer()
	alice := models.ConnectionRequest{SenderID: "123456", SenderUsername: "Alice"}
	srv.requests = []models.ConnectionRequest{alice}
	h := signedIn(t, srv)
	srv.failOn["respond"] = errors.New("Request not found")

	require.Error(t, h.store.Accept(context.Background(), alice))
	require.Len(t, h.store.Requests(), 1)
	require.Zero(t, srv.callCount("send"))
}

func TestDeclineConnectionRequest(t *testing.T) {
	srv := newFakeServer()
	srv.requests = []models.ConnectionRequest{
		{SenderID: "u5", SenderUsername: "dan"},
		{SenderID: "u6", SenderUsername: "erin"},
	}
	h := signedIn(t, srv)

	require.NoError(t, h.store.Decline(context.Background(), "u5"))

	reqs := h.store.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "u6", reqs[0].SenderID)
	require.False(t, srv.respond["u5"])
	require.Zero(t, srv.callCount("send"))
	require.Empty(t, h.ch.emittedOf(protocol.EventSendMessage))
}

func TestSendRequestValidatesHandle(t *testing.T) {
	h := signedIn(t, newFakeServer())
	before := h.srv.totalCalls()

	for _, id := range []string{"", "12345", "1234567", "12a456", "١٢٣٤٥٦"} {
		require.ErrorIs(t, h.store.SendRequest(context.Background(), id), ErrInvalidEnleID, id)
	}
	require.Equal(t, before, h.srv.totalCalls())

	require.NoError(t, h.store.SendRequest(context.Background(), " 123456 "))
	require.Equal(t, 1, h.srv.callCount("send-request"))
}

func TestLoadRequestsReplaces(t *testing.T) {
	srv := newFakeServer()
	h := signedIn(t, srv)
	h.ch.fire(t, protocol.EventConnectionRequest, models.ConnectionRequest{SenderID: "u1"})

	srv.mu.Lock()
	srv.requests = []models.ConnectionRequest{{SenderID: "u2"}}
	srv.mu.Unlock()

	require.NoError(t, h.store.LoadRequests(context.Background()))
	reqs := h.store.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "u2", reqs[0].SenderID)
}
