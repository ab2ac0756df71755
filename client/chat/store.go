// Package chat keeps the conversation state of the signed-in user: contacts,
// the open conversation, presence, typing flags and pending connection
// requests.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"enlechat/client/realtime"
	"enlechat/models"
	"enlechat/protocol"
)

var (
	ErrNoSession            = errors.New("chat: not signed in")
	ErrNoActiveConversation = errors.New("chat: no active conversation")
	ErrEmptyMessage         = errors.New("chat: message is empty")
	ErrUnknownConversation  = errors.New("chat: unknown conversation")
	ErrInvalidEnleID        = errors.New("please enter a valid 6-digit Enle ID")
)

// Backend is the slice of the REST client the store needs.
type Backend interface {
	Contacts(ctx context.Context) (*models.ContactsPayload, error)
	Requests(ctx context.Context) ([]models.ConnectionRequest, error)
	SendRequest(ctx context.Context, enleID string) error
	RespondRequest(ctx context.Context, senderID string, accept bool) error
	Messages(ctx context.Context, contactID string) ([]models.Message, error)
	SendMessage(ctx context.Context, msg models.OutgoingMessage) (*models.Message, error)
	MarkRead(ctx context.Context, senderID string) error
}

// Channel is the push connection.
type Channel interface {
	On(event string, fn realtime.Handler) (cancel func())
	Emit(event string, data any) error
}

// Identity is the source of the signed-in user.
type Identity interface {
	User() *models.User
	Refresh(ctx context.Context) *models.User
	OnChange(fn func(*models.User)) (cancel func())
}

// Contact is one row of the contact list.
type Contact struct {
	ID       string
	Username string
	Handle   string
	Picture  string
	Status   string
	Self     bool
}

type Store struct {
	api   Backend
	ch    Channel
	ident Identity
	log   *zap.Logger

	mu       sync.RWMutex
	self     *models.User
	roster   Roster
	active   string
	messages []models.Message
	online   map[string]struct{}
	typing   map[string]bool
	requests []models.ConnectionRequest
	gen      uint64

	ctx     context.Context
	stop    context.CancelFunc
	cancels []func()

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

func NewStore(api Backend, ch Channel, ident Identity, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		api:       api,
		ch:        ch,
		ident:     ident,
		log:       log,
		listeners: make(map[int]func()),
	}
	s.resetLocked()
	return s
}

// OnUpdate registers fn to run after any state change.
func (s *Store) OnUpdate(fn func()) (cancel func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) changed() {
	s.lmu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Mount attaches the store to identity changes and push events. State is
// populated as soon as a user is signed in.
func (s *Store) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.stop = context.WithCancel(ctx)
	s.mu.Unlock()

	cancels := []func(){
		s.ident.OnChange(s.handleIdentity),
		s.ch.On(protocol.EventUserStatus, s.handleUserStatus),
		s.ch.On(protocol.EventReceiveMessage, s.handleReceiveMessage),
		s.ch.On(protocol.EventTypingIndicator, s.handleTypingIndicator),
		s.ch.On(protocol.EventConnectionResponse, s.handleConnectionResponse),
		s.ch.On(protocol.EventConnectionRequest, s.handleConnectionRequest),
	}

	s.mu.Lock()
	s.cancels = cancels
	s.mu.Unlock()

	if u := s.ident.User(); u != nil {
		s.handleIdentity(u)
	}
}

// Unmount detaches every subscription and drops all state.
func (s *Store) Unmount() {
	s.mu.Lock()
	cancels := s.cancels
	stop := s.stop
	s.cancels = nil
	s.stop = nil
	s.ctx = nil
	s.self = nil
	s.resetLocked()
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	if stop != nil {
		stop()
	}
	s.changed()
}

func (s *Store) mountCtx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Store) resetLocked() {
	s.roster = Roster{}
	s.active = ""
	s.messages = nil
	s.online = make(map[string]struct{})
	s.typing = make(map[string]bool)
	s.requests = nil
	s.gen++
}

func (s *Store) handleIdentity(u *models.User) {
	s.mu.Lock()
	if u == nil {
		s.self = nil
		s.resetLocked()
		s.mu.Unlock()
		s.changed()
		return
	}
	sameUser := s.self != nil && s.self.ID == u.ID
	s.self = u
	if !sameUser {
		s.resetLocked()
	}
	s.mu.Unlock()

	if sameUser {
		s.changed()
		return
	}

	s.log.Info("session started", zap.String("user_id", u.ID))
	if err := s.ch.Emit(protocol.EventUserLogin, u.ID); err != nil {
		s.log.Warn("user_login not sent", zap.Error(err))
	}

	ctx := s.mountCtx()
	if err := s.LoadContacts(ctx); err != nil {
		s.log.Error("load contacts", zap.Error(err))
	}
	if err := s.LoadRequests(ctx); err != nil {
		s.log.Error("load requests", zap.Error(err))
	}
	if err := s.SetActiveContact(ctx, u.ID); err != nil {
		s.log.Error("open self chat", zap.Error(err))
	}
	s.changed()
}

// Rejoin announces the signed-in user again after the realtime channel
// reconnected, then reloads contacts and pending requests. Presence is
// cleared until the next user_status.
func (s *Store) Rejoin(ctx context.Context) error {
	self := s.Self()
	if self == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	s.online = make(map[string]struct{})
	s.typing = make(map[string]bool)
	s.mu.Unlock()

	if err := s.ch.Emit(protocol.EventUserLogin, self.ID); err != nil {
		return fmt.Errorf("rejoin: %w", err)
	}
	if err := s.LoadContacts(ctx); err != nil {
		s.log.Error("load contacts", zap.Error(err))
	}
	if err := s.LoadRequests(ctx); err != nil {
		s.log.Error("load requests", zap.Error(err))
	}
	s.changed()
	return nil
}

// LoadContacts fetches the contacts payload and replaces the roster.
func (s *Store) LoadContacts(ctx context.Context) error {
	if s.Self() == nil {
		return ErrNoSession
	}
	p, err := s.api.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	roster := NormalizeContacts(p)

	s.mu.Lock()
	s.roster = roster
	s.mu.Unlock()

	s.log.Debug("contacts loaded",
		zap.Int("snapshot", len(roster.Snapshot)),
		zap.Int("directory", len(roster.Directory)),
		zap.Bool("legacy", roster.Legacy))
	s.changed()
	return nil
}

// RefreshContacts refetches the roster after a change made elsewhere.
func (s *Store) RefreshContacts(ctx context.Context) error {
	return s.LoadContacts(ctx)
}

func (s *Store) knownLocked(id string) bool {
	if s.self == nil || id == "" {
		return false
	}
	if id == s.self.ID {
		return true
	}
	for _, c := range s.self.Contacts {
		if c.UserID == id {
			return true
		}
	}
	_, ok := s.roster.snapshot(id)
	return ok
}

// SetActiveContact opens the conversation keyed by id, loads its history
// and, unless it is the self chat, marks the contact's messages read.
func (s *Store) SetActiveContact(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.self == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if !s.knownLocked(id) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	selfID := s.self.ID
	if s.active != id {
		s.active = id
		s.messages = nil
	}
	s.mu.Unlock()
	s.changed()

	applied, err := s.loadMessages(ctx, id)
	if err != nil {
		return err
	}
	if applied && id != selfID {
		if err := s.MarkAsRead(ctx, id); err != nil {
			s.log.Warn("mark read", zap.String("contact_id", id), zap.Error(err))
		}
	}
	return nil
}

// LoadMessages replaces the message list with the server history of
// contactID, which must be the active conversation. A response that arrives
// after a newer load, or after the conversation changed, is dropped.
func (s *Store) LoadMessages(ctx context.Context, contactID string) error {
	s.mu.RLock()
	signedIn, active := s.self != nil, s.active
	s.mu.RUnlock()
	if !signedIn {
		return ErrNoSession
	}
	if contactID == "" || contactID != active {
		return fmt.Errorf("%w: %s is not the active conversation", ErrUnknownConversation, contactID)
	}

	_, err := s.loadMessages(ctx, contactID)
	return err
}

func (s *Store) loadMessages(ctx context.Context, contactID string) (applied bool, err error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	msgs, err := s.api.Messages(ctx, contactID)
	if err != nil {
		return false, fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	if gen != s.gen || s.active != contactID {
		s.mu.Unlock()
		s.log.Debug("stale history dropped", zap.String("contact_id", contactID))
		return false, nil
	}
	s.messages = append([]models.Message(nil), msgs...)
	s.mu.Unlock()
	s.changed()
	return true, nil
}

// SendMessage posts text to the active conversation, announces it on the
// push channel and appends the stored copy.
func (s *Store) SendMessage(ctx context.Context, text, media string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.RLock()
	self, recipient := s.self, s.active
	s.mu.RUnlock()
	if self == nil {
		return nil, ErrNoSession
	}
	if recipient == "" {
		return nil, ErrNoActiveConversation
	}

	msg, err := s.api.SendMessage(ctx, models.OutgoingMessage{Recipient: recipient, Text: text, Media: media})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	s.announce(self.ID, msg)

	s.mu.Lock()
	if s.active == recipient {
		s.messages = append(s.messages, *msg)
	}
	s.mu.Unlock()
	s.changed()
	return msg, nil
}

// announce emits send_message for a message the server already stored.
func (s *Store) announce(senderID string, msg *models.Message) {
	out := *msg
	out.Sender = senderID
	if err := s.ch.Emit(protocol.EventSendMessage, out); err != nil {
		s.log.Warn("send_message not emitted", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// MarkAsRead tells the server that everything from contactID was read and
// flips the matching local messages. Flags only move from unread to read.
func (s *Store) MarkAsRead(ctx context.Context, contactID string) error {
	if contactID == "" {
		return nil
	}
	if err := s.api.MarkRead(ctx, contactID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.mu.Lock()
	flipped := 0
	for i := range s.messages {
		if s.messages[i].Sender == contactID && !s.messages[i].Read {
			s.messages[i].Read = true
			flipped++
		}
	}
	s.mu.Unlock()
	if flipped > 0 {
		s.changed()
	}
	return nil
}

// SendTypingStatus emits a typing flag for contactID. It never touches
// local state.
func (s *Store) SendTypingStatus(contactID string, isTyping bool) error {
	self := s.Self()
	if self == nil || contactID == "" {
		return nil
	}
	return s.ch.Emit(protocol.EventTyping, protocol.Typing{
		SenderID:    self.ID,
		RecipientID: contactID,
		IsTyping:    isTyping,
	})
}

func (s *Store) Self() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.self == nil {
		return nil
	}
	u := *s.self
	return &u
}

func (s *Store) ActiveContact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Store) Roster() Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster.clone()
}

// IsOnline reports presence. The signed-in user is always online.
func (s *Store) IsOnline(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.self != nil && id == s.self.ID {
		return true
	}
	_, ok := s.online[id]
	return ok
}

func (s *Store) IsTyping(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[id]
}

// Contacts lists the self chat first, then every contact of the signed-in
// user enriched from the directory.
func (s *Store) Contacts() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.self == nil {
		return nil
	}

	self := Resolve(s.self, s.roster, s.self.ID)
	out := []Contact{{
		ID:       s.self.ID,
		Username: self.Username,
		Handle:   self.Handle,
		Picture:  self.Picture,
		Status:   "Your personal notes",
		Self:     true,
	}}

	seen := map[string]bool{s.self.ID: true}
	add := func(ref models.ContactRef) {
		if ref.UserID == "" || seen[ref.UserID] {
			return
		}
		seen[ref.UserID] = true
		r := Resolve(s.self, s.roster, ref.UserID)
		status := ref.Status
		if u, ok := s.roster.directory(ref.UserID); ok && u.Status != "" {
			status = u.Status
		}
		if status == "" {
			status = "Online"
		}
		out = append(out, Contact{
			ID:       ref.UserID,
			Username: r.Username,
			Handle:   r.Handle,
			Picture:  r.Picture,
			Status:   status,
		})
	}
	for _, ref := range s.self.Contacts {
		add(ref)
	}
	for _, ref := range s.roster.Snapshot {
		add(ref)
	}
	return out
}
