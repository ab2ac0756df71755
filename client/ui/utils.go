package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"enlechat/client/avatar"
	"enlechat/client/chat"
	"enlechat/models"
)

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "just now"
	}
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	seconds = seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatDateSeparator labels the day of t relative to now.
func formatDateSeparator(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	msgDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case msgDate.Equal(today):
		return "Today"
	case msgDate.Equal(yesterday):
		return "Yesterday"
	case msgDate.Year() == now.Year():
		return t.Format("January 2")
	default:
		return t.Format("January 2, 2006")
	}
}

// inConversation reports whether m belongs to the chat between self and
// contactID.
func inConversation(m models.Message, self, contactID string) bool {
	if contactID == self {
		return m.Sender == self && m.Recipient == self
	}
	return (m.Sender == self && m.Recipient == contactID) ||
		(m.Sender == contactID && m.Recipient == self)
}

// unreadCounts counts unread incoming messages per sender, skipping the
// open conversation.
func unreadCounts(msgs []models.Message, self, active string) map[string]int {
	counts := make(map[string]int)
	for _, m := range msgs {
		if m.Read || m.Sender == self || m.Sender == active || m.Recipient != self {
			continue
		}
		counts[m.Sender]++
	}
	return counts
}

// readMark is the delivery icon shown after an outgoing message.
func readMark(m models.Message, p Palette) string {
	if m.Read {
		return p.tag(p.Read) + "✓✓[-]"
	}
	return p.tag(p.Offline) + "✓[-]"
}

// contactLine renders one row of the contacts list.
func contactLine(c chat.Contact, online, typing bool, unread int, p Palette) string {
	var sb strings.Builder
	sb.WriteString(avatar.Glyph(c.Picture, c.Username, c.ID))
	sb.WriteString(" ")
	if online {
		sb.WriteString(p.tag(p.Online) + "●[-] ")
	} else {
		sb.WriteString(p.tag(p.Offline) + "○[-] ")
	}
	sb.WriteString(tview.Escape(c.Username))
	if c.Handle != "" && c.Handle != chat.Unknown {
		sb.WriteString(" " + p.tag(p.Offline) + "(" + c.Handle + ")[-]")
	}
	switch {
	case typing:
		sb.WriteString(" " + p.tag(p.Highlight) + "typing...[-]")
	case c.Status != "":
		sb.WriteString(" " + p.tag(p.Offline) + "— " + tview.Escape(c.Status) + "[-]")
	}
	if unread > 0 {
		sb.WriteString(fmt.Sprintf(" [red](%d)[-]", unread))
	}
	return sb.String()
}
