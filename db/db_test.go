package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"enlechat/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func mustUser(t *testing.T, database *DB, username string) *models.User {
	t.Helper()
	u, err := database.CreateUser(username, username+"@example.com", "secret")
	require.NoError(t, err)
	return u
}

func TestCreateAndAuthenticateUser(t *testing.T) {
	database := setupTestDB(t)

	u := mustUser(t, database, "alice")
	require.NotEmpty(t, u.ID)
	require.Regexp(t, `^\d{6}$`, u.EnleID)
	require.Equal(t, DefaultStatus, u.Status)
	require.Equal(t, "light", u.Settings.Theme)
	require.True(t, u.Settings.Notifications)
	require.Empty(t, u.Contacts)

	_, err := database.CreateUser("alice2", "alice@example.com", "x")
	require.ErrorIs(t, err, ErrEmailTaken)

	got, err := database.AuthenticateUser("alice@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = database.AuthenticateUser("alice@example.com", "wrong")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = database.AuthenticateUser("nobody@example.com", "secret")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestHandlesAreUnique(t *testing.T) {
	database := setupTestDB(t)
	seen := map[string]bool{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		u := mustUser(t, database, name)
		require.False(t, seen[u.EnleID])
		seen[u.EnleID] = true
	}
}

func TestLookupAndDirectory(t *testing.T) {
	database := setupTestDB(t)
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	got, err := database.GetUserByEnleID(bob.EnleID)
	require.NoError(t, err)
	require.Equal(t, bob.ID, got.ID)

	_, err = database.GetUserByEnleID("000000")
	require.ErrorIs(t, err, ErrNoRows)

	_, err = database.GetUser("missing")
	require.ErrorIs(t, err, ErrNoRows)

	dir, err := database.ListUsers(alice.ID)
	require.NoError(t, err)
	require.Len(t, dir, 1)
	require.Equal(t, "bob", dir[0].Username)
	require.Empty(t, dir[0].Email)
}

func TestRequestLifecycle(t *testing.T) {
	database := setupTestDB(t)
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	require.NoError(t, database.CreateRequest(alice.ID, bob.ID))
	require.ErrorIs(t, database.CreateRequest(alice.ID, bob.ID), ErrRequestExists)

	reqs, err := database.GetRequests(bob.ID)
	require.NoError(t, err)
	require.Equal(t, []models.ConnectionRequest{{SenderID: alice.ID, SenderUsername: "alice", SenderEnleID: alice.EnleID}}, reqs)

	require.NoError(t, database.DeleteRequest(alice.ID, bob.ID))
	require.ErrorIs(t, database.DeleteRequest(alice.ID, bob.ID), ErrNoRows)

	require.NoError(t, database.Connect(alice.ID, bob.ID))
	require.NoError(t, database.Connect(alice.ID, bob.ID))
	require.ErrorIs(t, database.CreateRequest(bob.ID, alice.ID), ErrAlreadyContacts)

	got, err := database.GetUser(alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Contacts, 1)
	require.Equal(t, bob.ID, got.Contacts[0].UserID)
	require.Equal(t, "bob", got.Contacts[0].Username)
}

func TestMessages(t *testing.T) {
	database := setupTestDB(t)
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	m1, err := database.SaveMessage(alice.ID, bob.ID, "hi", "")
	require.NoError(t, err)
	_, err = database.SaveMessage(bob.ID, alice.ID, "hey", "")
	require.NoError(t, err)
	_, err = database.SaveMessage(alice.ID, alice.ID, "note to self", "")
	require.NoError(t, err)

	history, err := database.GetHistory(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, m1.ID, history[0].ID)
	require.False(t, history[0].CreatedAt.After(history[1].CreatedAt))

	self, err := database.GetHistory(alice.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, self, 1)

	n, err := database.MarkRead(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = database.MarkRead(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	history, err = database.GetHistory(bob.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, history[0].Read)
	require.False(t, history[1].Read)
}

func TestSettingsAndLastSeen(t *testing.T) {
	database := setupTestDB(t)
	alice := mustUser(t, database, "alice")

	require.NoError(t, database.UpdateSettings(alice.ID, models.Settings{Theme: "dark", Notifications: false}))
	got, err := database.GetUser(alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.Settings{Theme: "dark", Notifications: false}, got.Settings)
	require.ErrorIs(t, database.UpdateSettings("missing", models.Settings{}), ErrNoRows)

	online, offline, err := database.LastSeen(alice.ID)
	require.NoError(t, err)
	require.True(t, online.IsZero())
	require.True(t, offline.IsZero())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, database.UpdateLastOnline(alice.ID, at))
	require.NoError(t, database.UpdateLastOffline(alice.ID, at.Add(time.Hour)))
	online, offline, err = database.LastSeen(alice.ID)
	require.NoError(t, err)
	require.True(t, at.Equal(online))
	require.True(t, at.Add(time.Hour).Equal(offline))
}
