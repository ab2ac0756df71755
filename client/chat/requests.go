package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"enlechat/models"
)

var enleIDRe = regexp.MustCompile(`^\d{6}$`)

// ValidEnleID reports whether id is a six-digit handle.
func ValidEnleID(id string) bool {
	return enleIDRe.MatchString(id)
}

// Announcement is the first message of a freshly accepted connection.
func Announcement(username string) string {
	return fmt.Sprintf("You and %s are now connected!", username)
}

func (s *Store) Requests() []models.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConnectionRequest(nil), s.requests...)
}

// LoadRequests replaces the pending list with the server's.
func (s *Store) LoadRequests(ctx context.Context) error {
	reqs, err := s.api.Requests(ctx)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}

	s.mu.Lock()
	s.requests = append([]models.ConnectionRequest(nil), reqs...)
	s.mu.Unlock()
	s.changed()
	return nil
}

// SendRequest asks the owner of enleID to connect.
func (s *Store) SendRequest(ctx context.Context, enleID string) error {
	enleID = strings.TrimSpace(enleID)
	if !ValidEnleID(enleID) {
		return ErrInvalidEnleID
	}
	if err := s.api.SendRequest(ctx, enleID); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	s.log.Info("connection request sent", zap.String("enle_id", enleID))
	return nil
}

func (s *Store) dropRequest(senderID string) {
	s.mu.Lock()
	kept := s.requests[:0:0]
	for _, r := range s.requests {
		if r.SenderID != senderID {
			kept = append(kept, r)
		}
	}
	s.requests = kept
	s.mu.Unlock()
	s.changed()
}

// Accept confirms req, then in order: drops it from the pending list,
// refreshes the user record and the roster, posts and announces the
// greeting, and opens the new conversation. Only the confirmation itself
// can fail the call; later steps log their errors.
func (s *Store) Accept(ctx context.Context, req models.ConnectionRequest) error {
	self := s.Self()
	if self == nil {
		return ErrNoSession
	}
	if err := s.api.RespondRequest(ctx, req.SenderID, true); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	s.dropRequest(req.SenderID)

	if s.ident.Refresh(ctx) == nil {
		s.log.Warn("user record not refreshed after accept", zap.String("sender_id", req.SenderID))
	}
	if err := s.RefreshContacts(ctx); err != nil {
		s.log.Error("refresh contacts", zap.Error(err))
	}

	msg, err := s.api.SendMessage(ctx, models.OutgoingMessage{
		Recipient: req.SenderID,
		Text:      Announcement(req.SenderUsername),
	})
	if err != nil {
		s.log.Error("greeting not sent", zap.String("sender_id", req.SenderID), zap.Error(err))
	} else {
		s.announce(self.ID, msg)
	}

	if err := s.SetActiveContact(ctx, req.SenderID); err != nil {
		s.log.Error("open new conversation", zap.String("sender_id", req.SenderID), zap.Error(err))
	}
	return nil
}

// Decline rejects the request from senderID. Nothing is sent to the
// conversation.
func (s *Store) Decline(ctx context.Context, senderID string) error {
	if err := s.api.RespondRequest(ctx, senderID, false); err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	s.dropRequest(senderID)
	return nil
}
