package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"enlechat/client/api"
	"enlechat/client/chat"
	"enlechat/client/identity"
	"enlechat/client/realtime"
	"enlechat/client/ui"
	"enlechat/config"
)

func main() {
	cfg := config.LoadClient()

	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Enle server base URL")
	flag.StringVar(&cfg.ConfigDir, "config", cfg.ConfigDir, "directory holding the saved session")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file, the terminal belongs to the UI")
	flag.Parse()

	log, err := newFileLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client := api.New(cfg.ServerURL, cfg.RequestTimeout)
	ch := realtime.New(log.Named("realtime"))
	defer ch.Close()
	link := realtime.NewSession(ch, cfg.ServerURL, log.Named("realtime"))

	ident := identity.NewStore(client, identity.NewTokenStore(cfg.ConfigDir), log.Named("identity"))
	// registered before the chat store so user_login goes out on a dialed socket
	defer ident.OnChange(link.Listener(client.Token))()
	store := chat.NewStore(client, ch, ident, log.Named("chat"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Mount(ctx)
	defer store.Unmount()

	restoreCtx, restoreCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	if ident.Restore(restoreCtx) {
		log.Info("session restored")
	}
	restoreCancel()

	app := ui.NewApp(ui.Deps{
		API:       client,
		Channel:   ch,
		Session:   link,
		Identity:  ident,
		Chat:      store,
		ServerURL: cfg.ServerURL,
		Timeout:   cfg.RequestTimeout,
		Log:       log.Named("ui"),
	})
	if err := app.Run(); err != nil {
		log.Error("ui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFileLogger writes JSON logs to path so they stay off the terminal.
func newFileLogger(path string) (*zap.Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{path}
	zcfg.ErrorOutputPaths = []string{path}
	return zcfg.Build()
}
