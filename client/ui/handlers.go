package ui

import (
	"enlechat/client/realtime"
	"enlechat/models"
	"enlechat/protocol"
)

// setupHandlers subscribes the views to store and channel changes. Every
// callback hops onto the draw loop before it touches a widget.
func (a *App) setupHandlers() {
	a.cancels = append(a.cancels,
		a.chat.OnUpdate(func() {
			a.app.QueueUpdateDraw(a.refresh)
		}),
		a.ident.OnChange(func(u *models.User) {
			if u != nil {
				return
			}
			a.app.QueueUpdateDraw(func() {
				if a.pages.HasPage("main") {
					a.leaveMainScreen()
				}
			})
		}),
		a.ch.On(realtime.EventDisconnect, func(*protocol.Envelope) {
			a.log.Info("realtime channel dropped")
			a.app.QueueUpdateDraw(func() {
				a.showDisconnectNotification(nil)
				a.updateStatusBarText()
				a.updateContactsList()
			})
		}),
	)
}

// refresh redraws everything derived from the chat store.
func (a *App) refresh() {
	if a.contactsList == nil {
		return
	}
	a.updateContactsList()

	a.mu.RLock()
	open := a.chatOpen
	a.mu.RUnlock()
	if open {
		a.refreshChatView()
		a.updateChatTitle()
	}

	a.updateStatusBarText()
}
