package ui

import (
	"context"
	"sync"
	"time"

	"github.com/rivo/tview"
	"go.uber.org/zap"

	"enlechat/client/api"
	"enlechat/client/chat"
	"enlechat/client/identity"
	"enlechat/client/realtime"
)

// Deps are the client components the views run on.
type Deps struct {
	API       *api.Client
	Channel   *realtime.Channel
	Session   *realtime.Session
	Identity  *identity.Store
	Chat      *chat.Store
	ServerURL string
	Timeout   time.Duration
	Log       *zap.Logger
}

// App is the main application
type App struct {
	app   *tview.Application
	pages *tview.Pages

	api       *api.Client
	ch        *realtime.Channel
	link      *realtime.Session
	ident     *identity.Store
	chat      *chat.Store
	reg       *identity.Registration
	serverURL string
	timeout   time.Duration
	log       *zap.Logger

	palette Palette

	mu           sync.RWMutex
	contacts     []chat.Contact
	chatOpen     bool
	lastUnread   int
	notice       string
	typingSent   bool
	typingTimer  *time.Timer
	typingTarget string

	contactsList   *tview.List
	chatView       *tview.TextView
	messageInput   *tview.InputField
	statusBar      *tview.TextView
	connectionView *tview.TextView

	statusTicker     *time.Ticker
	statusTickerDone chan struct{}
	cancels          []func()
}

func NewApp(d Deps) *App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &App{
		api:       d.API,
		ch:        d.Channel,
		link:      d.Session,
		ident:     d.Identity,
		chat:      d.Chat,
		reg:       identity.NewRegistration(d.API),
		serverURL: d.ServerURL,
		timeout:   timeout,
		log:       log,
		palette:   darkPalette,
	}
}

// Run starts the application and blocks until it quits.
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	a.setupHandlers()
	defer a.teardown()

	if u := a.ident.User(); u != nil {
		a.palette = paletteFor(u.Settings.Theme)
		a.showMainScreen()
	} else {
		a.showBackground()
		a.showAuthDialog()
	}

	return a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
}

// ctx is the per-request context every view action runs under.
func (a *App) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *App) showBackground() {
	background := tview.NewBox()
	background.SetBackgroundColor(a.palette.Bg)
	a.pages.AddPage("background", background, true, true)
}

func (a *App) teardown() {
	a.stopStatusTicker()
	for _, cancel := range a.cancels {
		cancel()
	}
	a.cancels = nil
}

// quit exits the application
func (a *App) quit() {
	a.app.Stop()
}
