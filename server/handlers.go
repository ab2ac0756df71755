package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"enlechat/db"
	"enlechat/models"
	"enlechat/protocol"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter all fields")
		return
	}

	user, err := s.db.CreateUser(req.Username, req.Email, req.Password)
	if errors.Is(err, db.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		s.log.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("enle_id", user.EnleID))
	s.writeAuth(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	user, err := s.db.AuthenticateUser(email, req.Password)
	if err != nil {
		s.log.Error("authenticate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	s.writeAuth(w, http.StatusOK, user)
}

func (s *Server) writeAuth(w http.ResponseWriter, status int, user *models.User) {
	token, err := s.issueToken(user.ID)
	if err != nil {
		s.log.Error("issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, User: *user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetUser(userIDFrom(r))
	if errors.Is(err, db.ErrNoRows) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.log.Error("load profile", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if settings.Theme != "light" && settings.Theme != "dark" {
		writeError(w, http.StatusBadRequest, "Theme must be light or dark")
		return
	}

	err := s.db.UpdateSettings(userIDFrom(r), settings)
	if errors.Is(err, db.ErrNoRows) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.log.Error("update settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleContacts serves the combined shape, or the flat legacy list when
// the server runs with LegacyContacts.
func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	refs, err := s.db.GetContacts(userID)
	if err != nil {
		s.log.Error("load contacts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if s.config.LegacyContacts {
		flat := make([]models.User, 0, len(refs))
		for _, c := range refs {
			flat = append(flat, models.User{
				ID:         c.UserID,
				Username:   c.Username,
				EnleID:     c.EnleID,
				ProfilePic: c.ProfilePic,
				Status:     c.Status,
			})
		}
		writeJSON(w, http.StatusOK, models.ContactsPayload{Legacy: flat})
		return
	}

	all, err := s.db.ListUsers(userID)
	if err != nil {
		s.log.Error("list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, models.ContactsPayload{Combined: &models.CombinedContacts{
		UserContacts: refs,
		AllUsers:     all,
	}})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.db.GetRequests(userIDFrom(r))
	if err != nil {
		s.log.Error("load requests", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var body models.SendRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	senderID := userIDFrom(r)

	target, err := s.db.GetUserByEnleID(strings.TrimSpace(body.EnleID))
	if errors.Is(err, db.ErrNoRows) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.log.Error("lookup enle id", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if target.ID == senderID {
		writeError(w, http.StatusBadRequest, "You cannot send a request to yourself")
		return
	}

	switch err := s.db.CreateRequest(senderID, target.ID); {
	case errors.Is(err, db.ErrAlreadyContacts):
		writeError(w, http.StatusBadRequest, "You are already connected")
		return
	case errors.Is(err, db.ErrRequestExists):
		writeError(w, http.StatusBadRequest, "Request already sent")
		return
	case err != nil:
		s.log.Error("create request", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	sender, err := s.db.GetUser(senderID)
	if err == nil {
		s.hub.Notify(target.ID, protocol.EventConnectionRequest, models.ConnectionRequest{
			SenderID:       sender.ID,
			SenderUsername: sender.Username,
			SenderEnleID:   sender.EnleID,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Request sent"})
}

func (s *Server) handleRespondRequest(w http.ResponseWriter, r *http.Request) {
	var body models.RespondRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	recipientID := userIDFrom(r)
	senderID := mux.Vars(r)["senderId"]

	err := s.db.DeleteRequest(senderID, recipientID)
	if errors.Is(err, db.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	if err != nil {
		s.log.Error("delete request", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if body.Accept {
		if err := s.db.Connect(senderID, recipientID); err != nil {
			s.log.Error("connect users", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
	}

	s.hub.Notify(senderID, protocol.EventConnectionResponse, protocol.ConnectionResponse{Accepted: body.Accept})
	msg := "Request declined"
	if body.Accept {
		msg = "Request accepted"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.db.GetHistory(userIDFrom(r), mux.Vars(r)["contactId"])
	if err != nil {
		s.log.Error("load history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body models.OutgoingMessage
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Recipient == "" || strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "Recipient and text are required")
		return
	}

	msg, err := s.db.SaveMessage(userIDFrom(r), body.Recipient, body.Text, body.Media)
	if err != nil {
		s.log.Error("save message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.MarkRead(mux.Vars(r)["senderId"], userIDFrom(r))
	if err != nil {
		s.log.Error("mark read", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// handleSendOTP stands in for the mail relay and only logs the code.
func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}

	s.log.Info("otp issued",
		zap.String("email", req.Email),
		zap.String("username", req.Username),
		zap.String("otp", req.OTP),
	)
	writeJSON(w, http.StatusOK, models.OTPResponse{Success: true, Message: "OTP sent successfully"})
}
