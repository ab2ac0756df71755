package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"enlechat/db"
	"enlechat/models"
)

type Server struct {
	db     *db.DB
	config *ServerConfig
	log    *zap.Logger
	hub    *Hub
	router *mux.Router

	mu      sync.Mutex
	httpSrv *http.Server
	started time.Time
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	JWTSecret      string
	TokenTTL       time.Duration
	LegacyContacts bool
}

func New(database *db.DB, config *ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = 7 * 24 * time.Hour
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 120 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		db:      database,
		config:  config,
		log:     log,
		started: time.Now(),
	}
	s.hub = NewHub(database, config.ReadTimeout, log.Named("hub"))
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.Handle("/ws", s.authMiddleware(http.HandlerFunc(s.hub.ServeWS))).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/send-otp", s.handleSendOTP).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/users/profile", s.handleProfile).Methods(http.MethodGet)
	authed.HandleFunc("/users/settings", s.handleSettings).Methods(http.MethodPut)
	authed.HandleFunc("/users/contacts", s.handleContacts).Methods(http.MethodGet)
	authed.HandleFunc("/users/requests", s.handleListRequests).Methods(http.MethodGet)
	authed.HandleFunc("/users/requests", s.handleSendRequest).Methods(http.MethodPost)
	authed.HandleFunc("/users/requests/{senderId}", s.handleRespondRequest).Methods(http.MethodPut)
	authed.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)
	authed.HandleFunc("/messages/read/{senderId}", s.handleMarkRead).Methods(http.MethodPut)
	authed.HandleFunc("/messages/{contactId}", s.handleHistory).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Start listens on the configured port and blocks until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	s.log.Info("Enle dev backend started", zap.String("addr", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes every realtime session with reason and stops the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context, reason string) error {
	s.hub.CloseAll(reason)

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// GetStats is a one-line summary for the control socket.
func (s *Server) GetStats() string {
	return fmt.Sprintf("online=%d uptime=%s", s.hub.OnlineCount(), time.Since(s.started).Truncate(time.Second))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("dur", time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			s.log.Error("request", fields...)
			return
		}
		s.log.Info("request", fields...)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
