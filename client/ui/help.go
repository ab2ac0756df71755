package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showHelp() {
	helpText := `
 [yellow]Main Screen[-]
 ───────────────────────────────────────────────────────────────
   [white]F1[-]       Show this help
   [white]F2[-]       Add a contact by Enle ID
   [white]F3[-]       Pending connection requests
   [white]F4[-]       Settings (theme, notifications)
   [white]F5[-]       Refresh contacts and requests
   [white]F6[-]       Connect / Disconnect
   [white]F9[-]       Log out
   [white]F10/Esc[-]  Quit application
   [white]Enter[-]    Open chat with contact
   [white]↑ ↓[-]      Navigate contacts

 [yellow]Requests Dialog[-]
 ───────────────────────────────────────────────────────────────
   [white]a[-]        Accept selected request
   [white]d[-]        Decline selected request
   [white]Esc[-]      Close

 [yellow]Chat Screen[-]
 ───────────────────────────────────────────────────────────────
   [white]Enter[-]    Send message
   [white]Tab[-]      Switch between input and scroll mode
   [white]F5[-]       Reload history
   [white]Esc[-]      Back to contacts (from input mode)

 [yellow]Scroll Mode (after pressing Tab)[-]
 ───────────────────────────────────────────────────────────────
   [white]↑ ↓[-]      Scroll one line
   [white]PgUp/Dn[-]  Scroll page (10 lines)
   [white]Home[-]     Scroll to beginning
   [white]End[-]      Scroll to end
   [white]Tab/Esc[-]  Return to input mode

 [yellow]Status Icons[-]
 ───────────────────────────────────────────────────────────────
   [green]●[-] online   Contact is connected
   [gray]○[-] offline  Contact is away
   [gray]✓[-]          Message sent
   [green]✓✓[-]         Message read
   (n)        Unread messages from contact

 Your own account is always listed first as personal notes.
 Contacts see "typing..." while you write to them.
`

	p := a.palette

	helpView := tview.NewTextView()
	helpView.SetText(helpText)
	helpView.SetBackgroundColor(p.Bg)
	helpView.SetTextColor(p.Fg)
	helpView.SetDynamicColors(true)
	helpView.SetBorder(true)
	helpView.SetBorderColor(p.Border)
	helpView.SetTitle(" Enle Help ")
	helpView.SetTitleColor(p.Title)
	helpView.SetScrollable(true)

	statusBar := p.statusBar()
	statusBar.SetText(" ↑↓/PgUp/PgDn: Scroll | Esc/Enter/F1: Close ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(helpView, 0, 1, true).
		AddItem(statusBar, 1, 0, false)
	flex.SetBackgroundColor(p.Bg)

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyF1:
			a.pages.RemovePage("help")
			if a.contactsList != nil {
				a.app.SetFocus(a.contactsList)
			}
			return nil
		case tcell.KeyUp:
			row, col := helpView.GetScrollOffset()
			helpView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := helpView.GetScrollOffset()
			helpView.ScrollTo(row+1, col)
			return nil
		case tcell.KeyPgUp:
			row, col := helpView.GetScrollOffset()
			helpView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := helpView.GetScrollOffset()
			helpView.ScrollTo(row+10, col)
			return nil
		case tcell.KeyHome:
			helpView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			helpView.ScrollToEnd()
			return nil
		}
		return event
	})

	a.pages.AddPage("help", flex, true, true)
}
