package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

type Settings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

type User struct {
	ID         string       `json:"_id"`
	Username   string       `json:"username"`
	EnleID     string       `json:"enleId"`
	Email      string       `json:"email,omitempty"`
	ProfilePic string       `json:"profilePic,omitempty"`
	Status     string       `json:"status,omitempty"`
	Settings   Settings     `json:"settings"`
	Contacts   []ContactRef `json:"contacts,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id"; login responses use the latter.
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// ContactRef is the contact snapshot embedded in a User. The server sends
// userId either as a plain id or as a populated user object.
type ContactRef struct {
	UserID     string `json:"userId"`
	Username   string `json:"username,omitempty"`
	EnleID     string `json:"enleId,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (c *ContactRef) UnmarshalJSON(b []byte) error {
	type plain ContactRef
	var aux struct {
		plain
		UserID json.RawMessage `json:"userId"`
		// some payloads key the ref by _id only
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = ContactRef(aux.plain)
	c.UserID = ""

	raw := bytes.TrimSpace(aux.UserID)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &c.UserID); err != nil {
			return err
		}
	case raw[0] == '{':
		var populated User
		if err := json.Unmarshal(raw, &populated); err != nil {
			return err
		}
		c.UserID = populated.ID
		if c.Username == "" {
			c.Username = populated.Username
		}
		if c.EnleID == "" {
			c.EnleID = populated.EnleID
		}
		if c.ProfilePic == "" {
			c.ProfilePic = populated.ProfilePic
		}
	default:
		return errors.New("contact userId: unexpected JSON")
	}
	if c.UserID == "" {
		c.UserID = aux.ID
	}
	return nil
}

type ConnectionRequest struct {
	SenderID       string `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
	SenderEnleID   string `json:"senderEnleId"`
}

type Message struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	Media     string    `json:"media,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// ContactsPayload is the GET /api/users/contacts response. Exactly one of
// Combined and Legacy is set after decoding.
type ContactsPayload struct {
	Combined *CombinedContacts
	Legacy   []User
}

type CombinedContacts struct {
	UserContacts []ContactRef `json:"userContacts"`
	AllUsers     []User       `json:"allUsers"`
}

var ErrContactsShape = errors.New("contacts payload: unrecognized shape")

func (p *ContactsPayload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return ErrContactsShape
	}
	*p = ContactsPayload{}
	switch trimmed[0] {
	case '[':
		var flat []User
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return err
		}
		if flat == nil {
			flat = []User{}
		}
		p.Legacy = flat
		return nil
	case '{':
		var aux struct {
			UserContacts *[]ContactRef `json:"userContacts"`
			AllUsers     *[]User       `json:"allUsers"`
		}
		if err := json.Unmarshal(trimmed, &aux); err != nil {
			return err
		}
		if aux.UserContacts == nil && aux.AllUsers == nil {
			return ErrContactsShape
		}
		combined := &CombinedContacts{}
		if aux.UserContacts != nil {
			combined.UserContacts = *aux.UserContacts
		}
		if aux.AllUsers != nil {
			combined.AllUsers = *aux.AllUsers
		}
		p.Combined = combined
		return nil
	}
	return ErrContactsShape
}

func (p ContactsPayload) MarshalJSON() ([]byte, error) {
	if p.Combined != nil {
		return json.Marshal(p.Combined)
	}
	if p.Legacy == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Legacy)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type OutgoingMessage struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Media     string `json:"media"`
}

type SendRequestBody struct {
	EnleID string `json:"enleId"`
}

type RespondRequestBody struct {
	Accept bool `json:"accept"`
}

type OTPRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Username string `json:"username"`
}

type OTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
