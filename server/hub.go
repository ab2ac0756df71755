package server

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"enlechat/db"
	"enlechat/models"
	"enlechat/protocol"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Session is one websocket connection. authID is the user the upgrade
// token named; UserID stays empty until that user sends user_login.
type Session struct {
	conn   *websocket.Conn
	authID string
	UserID string

	sendMu sync.Mutex
	mu     sync.Mutex
}

func (sess *Session) userID() string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.UserID
}

func (sess *Session) send(frame []byte) error {
	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()
	sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sess.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub tracks realtime sessions and relays events between them.
type Hub struct {
	db          *db.DB
	log         *zap.Logger
	readTimeout time.Duration
	upgrader    websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	conns    map[*Session]struct{}
}

func NewHub(database *db.DB, readTimeout time.Duration, log *zap.Logger) *Hub {
	return &Hub{
		db:          database,
		log:         log,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
		conns:    make(map[*Session]struct{}),
	}
}

// ServeWS upgrades an authenticated request. The user id comes from the
// bearer token checked by authMiddleware.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	authID := userIDFrom(r)
	if authID == "" {
		writeError(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &Session{conn: conn, authID: authID}
	h.mu.Lock()
	h.conns[sess] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.String("user_id", authID))
	go h.pingLoop(sess)
	h.readLoop(sess)
}

func (h *Hub) readLoop(sess *Session) {
	defer h.disconnect(sess)

	sess.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	for {
		kind, frame, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read failed", zap.String("user_id", sess.userID()), zap.Error(err))
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if kind != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			h.log.Debug("invalid frame", zap.Error(err))
			continue
		}
		h.handle(sess, env)
	}
}

func (h *Hub) pingLoop(sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		sess.sendMu.Lock()
		err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		sess.sendMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (h *Hub) handle(sess *Session, env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventUserLogin:
		h.handleLogin(sess, env)
	case protocol.EventSendMessage:
		h.handleSendMessage(sess, env)
	case protocol.EventTyping:
		h.handleTyping(sess, env)
	default:
		h.log.Debug("unknown event", zap.String("event", env.Event))
	}
}

func (h *Hub) handleLogin(sess *Session, env *protocol.Envelope) {
	var userID string
	if err := env.Bind(&userID); err != nil || userID == "" {
		h.log.Debug("bad user_login", zap.Error(err))
		return
	}
	if userID != sess.authID {
		h.log.Warn("user_login for another user",
			zap.String("user_id", userID), zap.String("token_user_id", sess.authID))
		return
	}
	if _, err := h.db.GetUser(userID); err != nil {
		h.log.Warn("user_login for unknown user", zap.String("user_id", userID), zap.Error(err))
		return
	}

	sess.mu.Lock()
	sess.UserID = userID
	sess.mu.Unlock()

	h.mu.Lock()
	h.sessions[userID] = sess
	h.mu.Unlock()

	if err := h.db.UpdateLastOnline(userID, time.Now()); err != nil {
		h.log.Error("update last_online", zap.String("user_id", userID), zap.Error(err))
	}
	h.log.Info("user online", zap.String("user_id", userID))
	h.broadcastStatus()
}

func (h *Hub) handleSendMessage(sess *Session, env *protocol.Envelope) {
	var msg models.Message
	if err := env.Bind(&msg); err != nil {
		h.log.Debug("bad send_message", zap.Error(err))
		return
	}
	msg.Sender = sess.authID
	// the sender already shows its own copy
	if msg.Recipient == "" || msg.Recipient == msg.Sender {
		return
	}
	h.Notify(msg.Recipient, protocol.EventReceiveMessage, msg)
}

func (h *Hub) handleTyping(sess *Session, env *protocol.Envelope) {
	var ev protocol.Typing
	if err := env.Bind(&ev); err != nil || ev.RecipientID == "" {
		return
	}
	h.Notify(ev.RecipientID, protocol.EventTypingIndicator, protocol.Typing{
		SenderID: sess.authID,
		IsTyping: ev.IsTyping,
	})
}

func (h *Hub) disconnect(sess *Session) {
	sess.conn.Close()

	userID := sess.userID()
	h.mu.Lock()
	delete(h.conns, sess)
	removed := false
	if userID != "" && h.sessions[userID] == sess {
		delete(h.sessions, userID)
		removed = true
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	if err := h.db.UpdateLastOffline(userID, time.Now()); err != nil {
		h.log.Error("update last_offline", zap.String("user_id", userID), zap.Error(err))
	}
	h.log.Info("user offline", zap.String("user_id", userID))
	h.broadcastStatus()
}

// Notify sends event to userID if the user is connected.
func (h *Hub) Notify(userID, event string, data any) bool {
	h.mu.RLock()
	sess, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	frame, err := protocol.Encode(event, data)
	if err != nil {
		h.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return false
	}
	if err := sess.send(frame); err != nil {
		h.log.Debug("notify failed", zap.String("user_id", userID), zap.String("event", event), zap.Error(err))
		return false
	}
	return true
}

// Online returns the ids of connected users, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) broadcastStatus() {
	ids := h.Online()
	frame, err := protocol.Encode(protocol.EventUserStatus, ids)
	if err != nil {
		h.log.Error("encode user_status", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.send(frame); err != nil {
			h.log.Debug("user_status not delivered", zap.String("user_id", sess.userID()), zap.Error(err))
		}
	}
}

// CloseAll sends a close frame with reason to every connection.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	all := make([]*Session, 0, len(h.conns))
	for sess := range h.conns {
		all = append(all, sess)
	}
	h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	for _, sess := range all {
		sess.sendMu.Lock()
		sess.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		sess.sendMu.Unlock()
		sess.conn.Close()
	}
}
