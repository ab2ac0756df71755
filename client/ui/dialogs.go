package ui

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"enlechat/client/api"
	"enlechat/client/chat"
	"enlechat/models"
)

// dialogBox centers form with a one-line status label below it.
func (a *App) dialogBox(form tview.Primitive, statusLabel *tview.TextView, width, height int) *tview.Flex {
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(statusLabel, width, 0, false).
			AddItem(nil, 0, 1, false), 1, 0, false).
		AddItem(nil, 0, 1, false)
	flex.SetBackgroundColor(a.palette.Bg)
	return flex
}

func (a *App) closeDialog() {
	a.pages.RemovePage("dialog")
	if a.contactsList != nil {
		a.app.SetFocus(a.contactsList)
	}
}

func (a *App) showAddContactDialog() {
	form := tview.NewForm()
	a.palette.styleForm(form, " Add Contact ")

	statusLabel := a.newStatusText()
	statusLabel.SetTextAlign(tview.AlignLeft)

	idField := tview.NewInputField().
		SetLabel("Enle ID: ").
		SetFieldWidth(8).
		SetAcceptanceFunc(tview.InputFieldMaxLength(6))
	form.AddFormItem(idField)

	form.AddButton("Send request", func() {
		enleID := idField.GetText()
		if !chat.ValidEnleID(enleID) {
			statusLabel.SetText("[red]" + chat.ErrInvalidEnleID.Error() + "[-]")
			return
		}
		statusLabel.SetText("Sending...")

		go func() {
			ctx, cancel := a.ctx()
			defer cancel()
			err := a.chat.SendRequest(ctx, enleID)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					statusLabel.SetText("[red]" + tview.Escape(api.Message(err, "Failed to send request")) + "[-]")
					return
				}
				idField.SetText("")
				statusLabel.SetText("[green]Connection request sent![-]")
			})
		}()
	})

	form.AddButton("Close", a.closeDialog)

	a.pages.AddPage("dialog", a.dialogBox(form, statusLabel, 50, 7), true, true)
	a.app.SetFocus(form)
}

func (a *App) showRequestsDialog() {
	p := a.palette

	list := tview.NewList()
	list.SetBorder(true)
	list.SetBorderColor(p.Border)
	list.SetBackgroundColor(p.Bg)
	list.SetTitle(" Connection Requests ")
	list.SetTitleColor(p.Title)
	list.SetMainTextColor(p.Fg)
	list.SetSecondaryTextColor(p.Offline)
	list.SetSelectedTextColor(p.Title)
	list.SetSelectedBackgroundColor(p.Bar)
	list.SetHighlightFullLine(true)

	statusLabel := a.newStatusText()
	statusLabel.SetTextAlign(tview.AlignLeft)

	var reqs []models.ConnectionRequest
	fill := func() {
		reqs = a.chat.Requests()
		list.Clear()
		if len(reqs) == 0 {
			list.AddItem("No pending requests", "", 0, nil)
			return
		}
		for _, r := range reqs {
			list.AddItem(tview.Escape(r.SenderUsername), "Enle ID: "+r.SenderEnleID, 0, nil)
		}
	}
	fill()

	respond := func(accept bool) {
		idx := list.GetCurrentItem()
		if idx < 0 || idx >= len(reqs) {
			return
		}
		req := reqs[idx]
		statusLabel.SetText("Working...")

		go func() {
			ctx, cancel := a.ctx()
			defer cancel()
			var err error
			if accept {
				err = a.chat.Accept(ctx, req)
			} else {
				err = a.chat.Decline(ctx, req.SenderID)
			}
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.log.Error("respond to request", zap.Bool("accept", accept), zap.Error(err))
					statusLabel.SetText("[red]" + tview.Escape(api.Message(err, "Failed to respond")) + "[-]")
					return
				}
				if accept {
					statusLabel.SetText(fmt.Sprintf("[green]You and %s are now connected[-]", tview.Escape(req.SenderUsername)))
				} else {
					statusLabel.SetText("Request declined")
				}
				fill()
			})
		}()
	}

	help := p.statusBar()
	help.SetText(" a:Accept | d:Decline | Esc:Close ")

	body := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(list, 0, 1, true).
		AddItem(help, 1, 0, false)

	body.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEsc:
			a.closeDialog()
			return nil
		case event.Rune() == 'a':
			respond(true)
			return nil
		case event.Rune() == 'd':
			respond(false)
			return nil
		}
		return event
	})

	a.pages.AddPage("dialog", a.dialogBox(body, statusLabel, 56, 14), true, true)
	a.app.SetFocus(list)
}

func (a *App) showSettingsDialog() {
	self := a.ident.User()
	if self == nil {
		return
	}

	form := tview.NewForm()
	a.palette.styleForm(form, " Settings ")

	statusLabel := a.newStatusText()
	statusLabel.SetTextAlign(tview.AlignLeft)

	themes := []string{"light", "dark"}
	current := 0
	if self.Settings.Theme == "dark" {
		current = 1
	}
	themeField := tview.NewDropDown().SetLabel("Theme: ").SetOptions(themes, nil).SetCurrentOption(current)
	notifyField := tview.NewCheckbox().SetLabel("Notifications: ").SetChecked(self.Settings.Notifications)

	form.AddFormItem(themeField)
	form.AddFormItem(notifyField)

	form.AddButton("Save", func() {
		_, theme := themeField.GetCurrentOption()
		settings := models.Settings{Theme: theme, Notifications: notifyField.IsChecked()}
		statusLabel.SetText("Saving...")

		go func() {
			ctx, cancel := a.ctx()
			defer cancel()
			saved, err := a.ident.UpdateSettings(ctx, settings)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					statusLabel.SetText("[red]" + tview.Escape(api.Message(err, "Failed to save settings")) + "[-]")
					return
				}
				a.applyTheme(saved.Theme)
			})
		}()
	})

	form.AddButton("Cancel", a.closeDialog)

	a.pages.AddPage("dialog", a.dialogBox(form, statusLabel, 50, 9), true, true)
	a.app.SetFocus(form)
}

// applyTheme rebuilds the main page with the palette for theme.
func (a *App) applyTheme(theme string) {
	a.palette = paletteFor(theme)
	for _, name := range []string{"dialog", "chat", "main"} {
		a.pages.RemovePage(name)
	}
	a.mu.Lock()
	a.chatOpen = false
	a.mu.Unlock()
	a.chatView = nil
	a.messageInput = nil
	a.stopStatusTicker()
	a.showMainScreen()
}

func (a *App) showLogoutDialog() {
	modal := tview.NewModal()
	modal.SetText("Log out of Enle?")
	a.palette.styleModal(modal)
	modal.AddButtons([]string{"Logout", "Cancel"})
	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		if buttonLabel != "Logout" {
			a.closeDialog()
			return
		}
		a.pages.RemovePage("dialog")
		// listeners run on this goroutine otherwise
		go a.ident.Logout()
	})

	a.pages.AddPage("dialog", modal, true, true)
}

func (a *App) showDisconnectNotification(err error) {
	if a.connectionView == nil {
		return
	}
	reasonText := "Connection lost"
	if errors.Is(err, errManualDisconnect) {
		reasonText = "Disconnected"
	}
	a.connectionView.SetText(fmt.Sprintf("[red]○ %s[-]\n[gray]Press F6 to reconnect[-]", reasonText))
}
