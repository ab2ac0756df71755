package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"enlechat/client/api"
	"enlechat/client/avatar"
	"enlechat/client/chat"
)

const (
	typingIdle  = 2 * time.Second
	chatKeys    = " Enter:Send | Tab:Scroll | F5:Refresh | Esc:Back "
	scrollKeys  = " ↑↓/PgUp/PgDn:Scroll | Home:Top | End:Bottom | Tab/Esc:Input "
	fallbackMsg = "Failed to send message"
)

func (a *App) openChat(contactID string) {
	a.mu.Lock()
	a.chatOpen = true
	a.mu.Unlock()

	chatPage := a.createChatPage(contactID)
	a.pages.AddPage("chat", chatPage, true, true)
	a.pages.SwitchToPage("chat")
	a.chatView.SetText("[gray]Loading...[-]")

	go func() {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.chat.SetActiveContact(ctx, contactID); err != nil {
			a.log.Error("open chat", zap.String("contact_id", contactID), zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				if a.chatView != nil {
					a.chatView.SetText("[red]" + tview.Escape(api.Message(err, "Could not load messages")) + "[-]")
				}
			})
		}
	}()
}

func (a *App) getChatTitle(contactID string) string {
	r := a.chat.Resolve(contactID)
	var status string
	switch {
	case r.Kind == chat.KindSelf:
		status = "personal notes"
	case a.chat.IsTyping(contactID):
		status = "typing..."
	case a.chat.IsOnline(contactID):
		status = "● online"
	default:
		status = "○ offline"
	}
	return fmt.Sprintf(" %s %s ─ %s ", avatar.Glyph(r.Picture, r.Username, r.ID), tview.Escape(r.Username), status)
}

func (a *App) updateChatTitle() {
	if a.chatView == nil {
		return
	}
	if active := a.chat.ActiveContact(); active != "" {
		a.chatView.SetTitle(a.getChatTitle(active))
	}
}

func (a *App) createChatPage(contactID string) tview.Primitive {
	p := a.palette

	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(p.Border)
	a.chatView.SetBackgroundColor(p.Bg)
	a.chatView.SetTitle(a.getChatTitle(contactID))
	a.chatView.SetTitleColor(p.Title)
	a.chatView.SetTextColor(p.Fg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)

	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(p.Bg)
	a.messageInput.SetFieldBackgroundColor(p.FieldBg)
	a.messageInput.SetFieldTextColor(p.Fg)
	a.messageInput.SetLabelColor(p.Highlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(p.Border)
	a.messageInput.SetTitle(" Message ")
	a.messageInput.SetTitleColor(p.Title)

	a.messageInput.SetChangedFunc(func(text string) {
		if text != "" {
			a.typing(contactID)
		}
	})

	chatStatus := p.statusBar()
	chatStatus.SetText(chatKeys)

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.messageInput.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		a.messageInput.SetText("")
		a.stopTyping()
		a.sendMessage(text, chatStatus)
	})

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, true).
		AddItem(chatStatus, 1, 0, false)
	mainFlex.SetBackgroundColor(p.Bg)

	chatViewFocused := false

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			if chatViewFocused {
				chatViewFocused = false
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatKeys)
				return nil
			}
			a.closeChat()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
				chatStatus.SetText(scrollKeys)
			} else {
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatKeys)
			}
			return nil
		case tcell.KeyF5:
			go func() {
				ctx, cancel := a.ctx()
				defer cancel()
				if err := a.chat.LoadMessages(ctx, contactID); err != nil {
					a.log.Error("reload history", zap.Error(err))
				}
			}()
			return nil
		case tcell.KeyPgUp:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row+10, col)
			return nil
		case tcell.KeyUp:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row-1, col)
				return nil
			}
		case tcell.KeyDown:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row+1, col)
				return nil
			}
		case tcell.KeyHome:
			if chatViewFocused {
				a.chatView.ScrollToBeginning()
				return nil
			}
		case tcell.KeyEnd:
			if chatViewFocused {
				a.chatView.ScrollToEnd()
				return nil
			}
		}
		return event
	})

	return mainFlex
}

func (a *App) refreshChatView() {
	if a.chatView == nil {
		return
	}
	self := a.chat.Self()
	active := a.chat.ActiveContact()
	if self == nil || active == "" {
		return
	}
	p := a.palette

	_, _, width, _ := a.chatView.GetInnerRect()
	if width < 10 {
		width = 80
	}

	now := time.Now()
	var sb strings.Builder
	var lastDate string
	shown := 0

	for _, msg := range a.chat.Messages() {
		if !inConversation(msg, self.ID, active) {
			continue
		}
		shown++

		local := msg.CreatedAt.Local()
		if day := local.Format("2006-01-02"); !msg.CreatedAt.IsZero() && day != lastDate {
			label := formatDateSeparator(msg.CreatedAt, now)
			padding := (width - len(label)) / 2
			if padding < 0 {
				padding = 0
			}
			sb.WriteString(fmt.Sprintf("[gray]%s%s[-]\n", strings.Repeat(" ", padding), label))
			lastDate = day
		}

		timeStr := local.Format("15:04")
		text := tview.Escape(msg.Text)
		if msg.Media != "" {
			text += " [gray]" + tview.Escape("[media]") + "[-]"
		}

		if msg.Sender == self.ID {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] %s→ %s[-] %s\n",
				timeStr, p.tag(p.Sent), text, readMark(msg, p)))
		} else {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] %s← %s[-]\n",
				timeStr, p.tag(p.Received), text))
		}
	}

	if shown == 0 {
		if active == self.ID {
			sb.WriteString("[gray]Your personal notes. Messages here are only visible to you.[-]\n")
		} else {
			sb.WriteString("[gray]No messages yet. Say hello![-]\n")
		}
	}
	if active != self.ID && a.chat.IsTyping(active) {
		sb.WriteString(fmt.Sprintf("[gray]%s is typing...[-]\n", tview.Escape(a.chat.Name(active))))
	}

	a.chatView.SetText(sb.String())
	a.chatView.ScrollToEnd()
}

func (a *App) sendMessage(text string, chatStatus *tview.TextView) {
	go func() {
		ctx, cancel := a.ctx()
		defer cancel()
		_, err := a.chat.SendMessage(ctx, text, "")
		if err == nil {
			return
		}
		a.log.Error("send message", zap.Error(err))
		msg := api.Message(err, fallbackMsg)
		if errors.Is(err, chat.ErrNoActiveConversation) {
			msg = "Select a contact first"
		}
		a.app.QueueUpdateDraw(func() {
			chatStatus.SetText("[red]" + tview.Escape(msg) + "[-]")
		})
	}()
}

// typing emits isTyping=true once per burst and false after typingIdle of
// silence.
func (a *App) typing(contactID string) {
	a.mu.Lock()
	first := !a.typingSent
	a.typingSent = true
	a.typingTarget = contactID
	if a.typingTimer != nil {
		a.typingTimer.Stop()
	}
	a.typingTimer = time.AfterFunc(typingIdle, a.stopTyping)
	a.mu.Unlock()

	if first {
		go a.emitTyping(contactID, true)
	}
}

func (a *App) stopTyping() {
	a.mu.Lock()
	if a.typingTimer != nil {
		a.typingTimer.Stop()
		a.typingTimer = nil
	}
	sent := a.typingSent
	target := a.typingTarget
	a.typingSent = false
	a.mu.Unlock()

	if sent {
		go a.emitTyping(target, false)
	}
}

func (a *App) emitTyping(contactID string, isTyping bool) {
	if contactID == "" {
		return
	}
	if self := a.chat.Self(); self != nil && self.ID == contactID {
		return
	}
	if err := a.chat.SendTypingStatus(contactID, isTyping); err != nil {
		a.log.Debug("typing not sent", zap.Error(err))
	}
}

func (a *App) closeChat() {
	a.stopTyping()
	a.mu.Lock()
	a.chatOpen = false
	a.mu.Unlock()
	a.chatView = nil
	a.messageInput = nil
	a.pages.RemovePage("chat")
	a.pages.SwitchToPage("main")
	a.app.SetFocus(a.contactsList)
	a.updateContactsList()
}
