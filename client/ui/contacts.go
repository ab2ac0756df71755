package ui

import (
	"go.uber.org/zap"
)

// reloadContacts refetches contacts and pending requests.
func (a *App) reloadContacts() {
	go func() {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.chat.RefreshContacts(ctx); err != nil {
			a.log.Error("refresh contacts", zap.Error(err))
			a.app.QueueUpdateDraw(func() { a.setConnectionError("Could not load contacts") })
		}
		if err := a.chat.LoadRequests(ctx); err != nil {
			a.log.Error("load requests", zap.Error(err))
		}
	}()
}

func (a *App) updateContactsList() {
	if a.contactsList == nil {
		return
	}

	contacts := a.chat.Contacts()
	self := a.chat.Self()
	selfID := ""
	if self != nil {
		selfID = self.ID
	}

	a.mu.Lock()
	a.contacts = contacts
	open := a.chatOpen
	a.mu.Unlock()

	active := ""
	if open {
		active = a.chat.ActiveContact()
	}
	unread := unreadCounts(a.chat.Messages(), selfID, active)

	currentIdx := a.contactsList.GetCurrentItem()
	a.contactsList.Clear()
	for _, c := range contacts {
		line := contactLine(c, a.chat.IsOnline(c.ID), a.chat.IsTyping(c.ID), unread[c.ID], a.palette)
		a.contactsList.AddItem(line, "", 0, nil)
	}
	if currentIdx >= 0 && currentIdx < a.contactsList.GetItemCount() {
		a.contactsList.SetCurrentItem(currentIdx)
	}

	a.noteUnread(unread)
}

// noteUnread flashes a notice in the status bar when the unread total grows
// and notifications are on.
func (a *App) noteUnread(unread map[string]int) {
	total := 0
	var from string
	for id, n := range unread {
		total += n
		from = id
	}

	a.mu.Lock()
	grew := total > a.lastUnread
	a.lastUnread = total
	a.mu.Unlock()

	self := a.ident.User()
	if !grew || self == nil || !self.Settings.Notifications {
		return
	}
	a.mu.Lock()
	a.notice = "New message from " + a.chat.Name(from)
	a.mu.Unlock()
}
