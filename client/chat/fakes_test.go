package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"enlechat/client/identity"
	"enlechat/client/realtime"
	"enlechat/models"
	"enlechat/protocol"
)

// fakeServer stands in for the REST backend. It serves both the identity
// and the conversation store.
type fakeServer struct {
	mu sync.Mutex

	self     models.User
	combined bool
	snapshot []models.ContactRef
	dir      []models.User
	requests []models.ConnectionRequest
	messages []models.Message

	// gates block Messages(contactID) until closed
	gates map[string]chan struct{}

	calls   []string
	nextMsg int
	respond map[string]bool
	failOn  map[string]error
}

var (
	_ Backend          = (*fakeServer)(nil)
	_ identity.Backend = (*fakeServer)(nil)
)

func newFakeServer() *fakeServer {
	return &fakeServer{
		self:     models.User{ID: "me", Username: "bob", EnleID: "654321"},
		combined: true,
		gates:    map[string]chan struct{}{},
		respond:  map[string]bool{},
		failOn:   map[string]error{},
	}
}

func (f *fakeServer) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeServer) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeServer) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeServer) SetToken(string) {}

func (f *fakeServer) ClearToken() {}

func (f *fakeServer) Register(context.Context, models.RegisterRequest) (*models.AuthResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeServer) Login(context.Context, models.LoginRequest) (*models.AuthResponse, error) {
	if err := f.record("login"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.AuthResponse{Token: "t", User: f.self}, nil
}

func (f *fakeServer) Profile(context.Context) (*models.User, error) {
	if err := f.record("profile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.self
	u.Contacts = append([]models.ContactRef(nil), f.self.Contacts...)
	return &u, nil
}

func (f *fakeServer) UpdateSettings(_ context.Context, s models.Settings) (*models.Settings, error) {
	return &s, nil
}

func (f *fakeServer) Contacts(context.Context) (*models.ContactsPayload, error) {
	if err := f.record("contacts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.combined {
		return &models.ContactsPayload{Combined: &models.CombinedContacts{
			UserContacts: append([]models.ContactRef(nil), f.snapshot...),
			AllUsers:     append([]models.User(nil), f.dir...),
		}}, nil
	}
	return &models.ContactsPayload{Legacy: append([]models.User(nil), f.dir...)}, nil
}

func (f *fakeServer) Requests(context.Context) ([]models.ConnectionRequest, error) {
	if err := f.record("requests"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ConnectionRequest(nil), f.requests...), nil
}

func (f *fakeServer) SendRequest(_ context.Context, enleID string) error {
	return f.record("send-request")
}

func (f *fakeServer) RespondRequest(_ context.Context, senderID string, accept bool) error {
	if err := f.record("respond"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond[senderID] = accept

	var req models.ConnectionRequest
	kept := f.requests[:0:0]
	for _, r := range f.requests {
		if r.SenderID == senderID {
			req = r
			continue
		}
		kept = append(kept, r)
	}
	f.requests = kept

	if accept {
		ref := models.ContactRef{UserID: senderID, Username: req.SenderUsername, EnleID: req.SenderEnleID}
		f.self.Contacts = append(f.self.Contacts, ref)
		f.snapshot = append(f.snapshot, ref)
		f.dir = append(f.dir, models.User{ID: senderID, Username: req.SenderUsername, EnleID: req.SenderEnleID})
	}
	return nil
}

func (f *fakeServer) Messages(_ context.Context, contactID string) ([]models.Message, error) {
	if err := f.record("messages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	gate := f.gates[contactID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if (m.Sender == contactID && m.Recipient == f.self.ID) || (m.Sender == f.self.ID && m.Recipient == contactID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeServer) SendMessage(_ context.Context, msg models.OutgoingMessage) (*models.Message, error) {
	if err := f.record("send"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	m := models.Message{
		ID:        fmt.Sprintf("m%d", f.nextMsg),
		Sender:    f.self.ID,
		Recipient: msg.Recipient,
		Text:      msg.Text,
		Media:     msg.Media,
		CreatedAt: time.Date(2024, 5, 1, 10, f.nextMsg, 0, 0, time.UTC),
	}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeServer) MarkRead(_ context.Context, senderID string) error {
	return f.record("mark-read")
}

// fakeChannel delivers fired events synchronously.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string]map[int]realtime.Handler
	nextID   int
	emitted  []protocol.Envelope
}

var _ Channel = (*fakeChannel)(nil)

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string]map[int]realtime.Handler{}}
}

func (c *fakeChannel) On(event string, fn realtime.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = map[int]realtime.Handler{}
	}
	c.handlers[event][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *fakeChannel) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, protocol.Envelope{Event: event, Data: raw})
	return nil
}

func (c *fakeChannel) fire(t *testing.T, event string, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	require.NoError(t, err)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)

	c.mu.Lock()
	var fns []realtime.Handler
	for _, fn := range c.handlers[event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(env)
	}
}

func (c *fakeChannel) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, hs := range c.handlers {
		n += len(hs)
	}
	return n
}

func (c *fakeChannel) emittedOf(event string) []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range c.emitted {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	srv   *fakeServer
	ch    *fakeChannel
	ident *identity.Store
	store *Store
}

// signedIn mounts a store and logs the fake user in.
func signedIn(t *testing.T, srv *fakeServer) *harness {
	t.Helper()
	ch := newFakeChannel()
	ident := identity.NewStore(srv, nil, nil)
	store := NewStore(srv, ch, ident, nil)
	store.Mount(context.Background())
	t.Cleanup(store.Unmount)

	_, err := ident.Login(context.Background(), models.LoginRequest{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	return &harness{srv: srv, ch: ch, ident: ident, store: store}
}
