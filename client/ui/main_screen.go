package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// enterMainScreen swaps the auth pages for the main page.
func (a *App) enterMainScreen() {
	for _, name := range []string{"auth", "register", "background"} {
		a.pages.RemovePage(name)
	}
	if u := a.ident.User(); u != nil {
		a.palette = paletteFor(u.Settings.Theme)
	}
	a.showMainScreen()
}

func (a *App) showMainScreen() {
	mainPage := a.createMainPage()
	a.pages.AddPage("main", mainPage, true, true)

	if u := a.chat.Self(); u != nil {
		a.contactsList.SetTitle(fmt.Sprintf(" Contacts [%s · %s] ", tview.Escape(u.Username), u.EnleID))
	}

	a.startStatusTicker()
	a.updateConnectionStatus()
	a.refresh()

	a.app.SetFocus(a.contactsList)
}

// leaveMainScreen tears the session pages down and returns to login.
func (a *App) leaveMainScreen() {
	a.stopStatusTicker()
	a.mu.Lock()
	a.chatOpen = false
	a.contacts = nil
	a.lastUnread = 0
	a.mu.Unlock()

	for _, name := range []string{"dialog", "help", "chat", "main"} {
		a.pages.RemovePage(name)
	}
	a.contactsList = nil
	a.chatView = nil
	a.messageInput = nil
	a.statusBar = nil
	a.connectionView = nil

	a.palette = darkPalette
	a.showBackground()
	a.showAuthDialog()
}

func (a *App) createMainPage() tview.Primitive {
	p := a.palette

	a.contactsList = tview.NewList()
	a.contactsList.SetBorder(true)
	a.contactsList.SetBorderColor(p.Border)
	a.contactsList.SetBackgroundColor(p.Bg)
	a.contactsList.SetTitle(" Contacts ")
	a.contactsList.SetTitleColor(p.Title)
	a.contactsList.SetMainTextColor(p.Fg)
	a.contactsList.SetMainTextStyle(tcell.StyleDefault.Foreground(p.Fg).Background(p.Bg))
	a.contactsList.SetSelectedTextColor(p.Title)
	a.contactsList.SetSelectedBackgroundColor(p.Bar)
	a.contactsList.SetHighlightFullLine(true)
	a.contactsList.ShowSecondaryText(false)

	a.contactsList.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		a.mu.RLock()
		if index >= len(a.contacts) {
			a.mu.RUnlock()
			return
		}
		contact := a.contacts[index]
		a.mu.RUnlock()
		a.openChat(contact.ID)
	})

	a.connectionView = tview.NewTextView()
	a.connectionView.SetBorder(true)
	a.connectionView.SetBorderColor(p.Border)
	a.connectionView.SetBackgroundColor(p.Bg)
	a.connectionView.SetTitle(" Connection ")
	a.connectionView.SetTitleColor(p.Title)
	a.connectionView.SetTextColor(p.Fg)
	a.connectionView.SetDynamicColors(true)
	a.connectionView.SetTextAlign(tview.AlignCenter)

	a.statusBar = p.statusBar()

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.contactsList, 0, 1, true).
		AddItem(a.connectionView, 3, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	mainFlex.SetBackgroundColor(p.Bg)

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			a.showHelp()
			return nil
		case tcell.KeyF2:
			a.showAddContactDialog()
			return nil
		case tcell.KeyF3:
			a.showRequestsDialog()
			return nil
		case tcell.KeyF4:
			a.showSettingsDialog()
			return nil
		case tcell.KeyF5:
			a.reloadContacts()
			return nil
		case tcell.KeyF6:
			a.toggleConnection()
			return nil
		case tcell.KeyF9:
			a.showLogoutDialog()
			return nil
		case tcell.KeyF10, tcell.KeyEsc:
			a.quit()
			return nil
		}
		return event
	})

	return mainFlex
}
