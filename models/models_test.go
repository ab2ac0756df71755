package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserAcceptsBothIDKeys(t *testing.T) {
	var a, b User
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"u1","username":"alice"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u2","username":"bob"}`), &b))
	require.Equal(t, "u1", a.ID)
	require.Equal(t, "u2", b.ID)
}

func TestContactRefUserIDShapes(t *testing.T) {
	var refs []ContactRef
	payload := `[
		{"userId":"u1","username":"alice"},
		{"userId":{"_id":"u2","username":"bob","enleId":"222222"}},
		{"_id":"u3","username":"carol"},
		{"userId":null,"username":"ghost"}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &refs))
	require.Len(t, refs, 4)

	require.Equal(t, "u1", refs[0].UserID)
	require.Equal(t, "u2", refs[1].UserID)
	require.Equal(t, "bob", refs[1].Username)
	require.Equal(t, "222222", refs[1].EnleID)
	require.Equal(t, "u3", refs[2].UserID)
	require.Empty(t, refs[3].UserID)

	var bad ContactRef
	require.Error(t, json.Unmarshal([]byte(`{"userId":42}`), &bad))
}

func TestContactsPayloadShapes(t *testing.T) {
	var combined ContactsPayload
	require.NoError(t, json.Unmarshal([]byte(`{"userContacts":[{"userId":"u1","username":"alice"}],"allUsers":[{"_id":"u1","username":"alice"}]}`), &combined))
	require.NotNil(t, combined.Combined)
	require.Nil(t, combined.Legacy)
	require.Len(t, combined.Combined.UserContacts, 1)

	var legacy ContactsPayload
	require.NoError(t, json.Unmarshal([]byte(`[{"_id":"u1","username":"alice"}]`), &legacy))
	require.Nil(t, legacy.Combined)
	require.Len(t, legacy.Legacy, 1)

	var unknown ContactsPayload
	require.ErrorIs(t, json.Unmarshal([]byte(`{"contacts":[]}`), &unknown), ErrContactsShape)

	out, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.JSONEq(t, `[{"_id":"u1","username":"alice","enleId":"","settings":{"theme":"","notifications":false}}]`, string(out))
}
