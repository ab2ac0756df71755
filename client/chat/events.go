package chat

import (
	"go.uber.org/zap"

	"enlechat/models"
	"enlechat/protocol"
)

// Push handlers run on their own goroutines. Events that arrive while no
// user is signed in are ignored.

func (s *Store) handleUserStatus(env *protocol.Envelope) {
	var ids []string
	if err := env.Bind(&ids); err != nil {
		s.log.Debug("bad user_status", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.self == nil {
		s.mu.Unlock()
		return
	}
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}
	s.online = online
	s.mu.Unlock()
	s.changed()
}

func (s *Store) handleReceiveMessage(env *protocol.Envelope) {
	var msg models.Message
	if err := env.Bind(&msg); err != nil {
		s.log.Debug("bad receive_message", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.self == nil {
		s.mu.Unlock()
		return
	}
	fromActive := msg.Sender != "" && msg.Sender == s.active
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.changed()

	if fromActive {
		if err := s.MarkAsRead(s.mountCtx(), msg.Sender); err != nil {
			s.log.Warn("mark read", zap.String("contact_id", msg.Sender), zap.Error(err))
		}
	}
}

func (s *Store) handleTypingIndicator(env *protocol.Envelope) {
	var ev protocol.Typing
	if err := env.Bind(&ev); err != nil {
		s.log.Debug("bad typing_indicator", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.self == nil {
		s.mu.Unlock()
		return
	}
	s.typing[ev.SenderID] = ev.IsTyping
	s.mu.Unlock()
	s.changed()
}

func (s *Store) handleConnectionResponse(env *protocol.Envelope) {
	var ev protocol.ConnectionResponse
	if err := env.Bind(&ev); err != nil {
		s.log.Debug("bad connection_response", zap.Error(err))
		return
	}
	if !ev.Accepted || s.Self() == nil {
		return
	}

	ctx := s.mountCtx()
	// the new contact lives in the user record, the roster only enriches it
	s.ident.Refresh(ctx)
	if err := s.LoadContacts(ctx); err != nil {
		s.log.Error("reload contacts", zap.Error(err))
	}
}

func (s *Store) handleConnectionRequest(env *protocol.Envelope) {
	var req models.ConnectionRequest
	if err := env.Bind(&req); err != nil {
		s.log.Debug("bad connection_request", zap.Error(err))
		return
	}
	if req.SenderID == "" {
		return
	}

	s.mu.Lock()
	if s.self == nil {
		s.mu.Unlock()
		return
	}
	for _, r := range s.requests {
		if r.SenderID == req.SenderID {
			s.mu.Unlock()
			return
		}
	}
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	s.log.Info("connection request received", zap.String("sender_id", req.SenderID))
	s.changed()
}
