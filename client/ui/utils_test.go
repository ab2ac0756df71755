package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"enlechat/client/chat"
	"enlechat/models"
)

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "just now", formatDuration(500*time.Millisecond))
	require.Equal(t, "45s", formatDuration(45*time.Second))
	require.Equal(t, "2m 5s", formatDuration(125*time.Second))
	require.Equal(t, "3h 5m", formatDuration(3*time.Hour+5*time.Minute))
}

func TestFormatDateSeparator(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	require.Equal(t, "Today", formatDateSeparator(now.Add(-14*time.Hour), now))
	require.Equal(t, "Yesterday", formatDateSeparator(now.Add(-24*time.Hour), now))
	require.Equal(t, "January 5", formatDateSeparator(time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), now))
	require.Equal(t, "December 31, 2023", formatDateSeparator(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), now))
	require.Empty(t, formatDateSeparator(time.Time{}, now))
}

func TestInConversation(t *testing.T) {
	toBob := models.Message{Sender: "me", Recipient: "bob"}
	fromBob := models.Message{Sender: "bob", Recipient: "me"}
	note := models.Message{Sender: "me", Recipient: "me"}
	other := models.Message{Sender: "carol", Recipient: "me"}

	require.True(t, inConversation(toBob, "me", "bob"))
	require.True(t, inConversation(fromBob, "me", "bob"))
	require.False(t, inConversation(note, "me", "bob"))
	require.False(t, inConversation(other, "me", "bob"))

	require.True(t, inConversation(note, "me", "me"))
	require.False(t, inConversation(toBob, "me", "me"))
}

func TestUnreadCounts(t *testing.T) {
	msgs := []models.Message{
		{Sender: "bob", Recipient: "me"},
		{Sender: "bob", Recipient: "me"},
		{Sender: "bob", Recipient: "me", Read: true},
		{Sender: "carol", Recipient: "me"},
		{Sender: "me", Recipient: "bob"},
		{Sender: "dave", Recipient: "me"},
	}

	counts := unreadCounts(msgs, "me", "dave")
	require.Equal(t, map[string]int{"bob": 2, "carol": 1}, counts)
}

func TestContactLine(t *testing.T) {
	c := chat.Contact{ID: "u1", Username: "bob", Handle: "ab12cd", Status: "Hey there!"}

	line := contactLine(c, true, false, 3, darkPalette)
	require.Contains(t, line, "●")
	require.Contains(t, line, "bob")
	require.Contains(t, line, "(ab12cd)")
	require.Contains(t, line, "Hey there!")
	require.True(t, strings.HasSuffix(line, "[red](3)[-]"))

	line = contactLine(c, false, true, 0, darkPalette)
	require.Contains(t, line, "○")
	require.Contains(t, line, "typing...")
	require.NotContains(t, line, "Hey there!")
	require.NotContains(t, line, "[red]")

	c.Handle = chat.Unknown
	require.NotContains(t, contactLine(c, false, false, 0, darkPalette), "("+chat.Unknown+")")
}

func TestReadMark(t *testing.T) {
	require.Contains(t, readMark(models.Message{Read: true}, lightPalette), "✓✓")
	require.NotContains(t, readMark(models.Message{}, lightPalette), "✓✓")
}

func TestPaletteFor(t *testing.T) {
	require.Equal(t, lightPalette, paletteFor("light"))
	require.Equal(t, darkPalette, paletteFor("dark"))
	require.Equal(t, darkPalette, paletteFor(""))
}
