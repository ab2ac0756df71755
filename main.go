package main

import (
	"bufio"
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"enlechat/config"
	"enlechat/db"
	"enlechat/server"
)

func main() {
	cfg := config.Load()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.ControlSocket, "control", cfg.ControlSocket, "control socket path, empty to disable")
	flag.BoolVar(&cfg.LegacyContacts, "legacy-contacts", cfg.LegacyContacts, "serve contacts as a flat list")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer database.Close()

	srv := server.New(database, &server.ServerConfig{
		Port:           cfg.Port,
		ReadTimeout:    time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		LegacyContacts: cfg.LegacyContacts,
	}, log)

	stop := make(chan string, 1)
	if cfg.ControlSocket != "" {
		go startControlSocket(cfg.ControlSocket, srv, stop, log.Named("control"))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	reason := "maintenance"
	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case reason = <-stop:
		log.Info("shutdown requested", zap.String("reason", reason))
	case err := <-serveErr:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx, reason); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if cfg.ControlSocket != "" {
		os.Remove(cfg.ControlSocket)
	}
}

func startControlSocket(path string, srv *server.Server, stop chan<- string, log *zap.Logger) {
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		log.Error("failed to create control socket", zap.String("path", path), zap.Error(err))
		return
	}
	defer listener.Close()

	log.Info("control socket listening", zap.String("path", path))

	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go handleControlCommand(conn, srv, stop)
	}
}

// handleControlCommand serves one line: "stats" or
// "shutdown|reason|RFC3339 completion time".
func handleControlCommand(conn net.Conn, srv *server.Server, stop chan<- string) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(line), "|", 3)

	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + srv.GetStats() + "\n"))

	case "shutdown":
		reason := "maintenance"
		if len(parts) >= 2 && parts[1] != "" {
			reason = parts[1]
		}
		if len(parts) >= 3 && parts[2] != "" {
			if until, err := time.Parse(time.RFC3339, parts[2]); err == nil {
				reason += " until " + until.UTC().Format(time.RFC3339)
			}
		}
		conn.Write([]byte("OK|Shutting down\n"))
		select {
		case stop <- reason:
		default:
		}

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
