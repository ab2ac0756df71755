package ui

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var errManualDisconnect = errors.New("disconnected by user")

func (a *App) updateConnectionStatus() {
	if a.connectionView == nil {
		return
	}
	if a.ch.IsConnected() {
		pingStr := formatDuration(time.Since(a.ch.LastPongAt()))
		a.connectionView.SetText(fmt.Sprintf("[green]● Connected to %s[-] [gray]│ Last ping: %s ago[-]", a.serverURL, pingStr))
	} else {
		a.connectionView.SetText(fmt.Sprintf("[red]○ Disconnected from %s[-]", a.serverURL))
	}
}

func (a *App) startStatusTicker() {
	if a.statusTicker != nil {
		return
	}
	ticker := time.NewTicker(1 * time.Second)
	done := make(chan struct{})
	a.statusTicker = ticker
	a.statusTickerDone = done
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if a.ch.IsConnected() {
					a.app.QueueUpdateDraw(a.updateConnectionStatus)
				}
			}
		}
	}()
}

func (a *App) stopStatusTicker() {
	if a.statusTicker != nil {
		a.statusTicker.Stop()
		close(a.statusTickerDone)
		a.statusTicker = nil
	}
}

func (a *App) setConnectionError(err string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]✗ Error: %s[-]", err))
}

func (a *App) updateStatusBarText() {
	if a.statusBar == nil {
		return
	}
	a.mu.Lock()
	notice := a.notice
	a.notice = ""
	a.mu.Unlock()

	var text string
	if a.ch.IsConnected() {
		text = fmt.Sprintf(" F1:Help | F2:Add | F3:Requests(%d) | F4:Settings | F5:Refresh | F6:Disconnect | F9:Logout | F10:Quit ",
			len(a.chat.Requests()))
	} else {
		text = " F1:Help | F5:Refresh | F6:Connect | F9:Logout | F10:Quit "
	}
	if notice != "" {
		text = fmt.Sprintf(" [yellow]%s[-] │%s", notice, text)
	}
	a.statusBar.SetText(text)
}

func (a *App) toggleConnection() {
	if a.ch.IsConnected() {
		a.connectionView.SetText("[yellow]Disconnecting...[-]")
		if err := a.ch.Close(); err != nil {
			a.log.Debug("close realtime", zap.Error(err))
		}
		a.showDisconnectNotification(errManualDisconnect)
		a.updateStatusBarText()
		a.updateContactsList()
		return
	}

	a.connectionView.SetText("[yellow]Connecting...[-]")
	go a.reconnect()
}

// reconnect redials the realtime channel as the signed-in user and
// announces the session again.
func (a *App) reconnect() {
	if err := a.link.Reconnect(); err != nil {
		a.log.Warn("reconnect failed", zap.Error(err))
		a.app.QueueUpdateDraw(func() {
			a.setConnectionError(fmt.Sprintf("Connection failed: %v", err))
			a.updateStatusBarText()
		})
		return
	}

	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.chat.Rejoin(ctx); err != nil {
		a.log.Warn("rejoin failed", zap.Error(err))
	}

	a.app.QueueUpdateDraw(func() {
		a.updateConnectionStatus()
		a.updateStatusBarText()
	})
}
