package chat

import (
	"enlechat/client/avatar"
	"enlechat/models"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSelf
	KindContact
)

func (k Kind) String() string {
	switch k {
	case KindSelf:
		return "self"
	case KindContact:
		return "contact"
	default:
		return "unknown"
	}
}

// Unknown is shown for names and handles no source knows.
const Unknown = "Unknown"

// Resolution is what the views know about one user id.
type Resolution struct {
	Kind     Kind
	ID       string
	Username string
	Handle   string
	Picture  string
}

// Resolve looks id up in self, then self's embedded contacts, then the
// reconciled snapshot, then the directory. Each field takes the first
// non-empty value along that order.
func Resolve(self *models.User, roster Roster, id string) Resolution {
	if self != nil && id != "" && id == self.ID {
		return Resolution{
			Kind:     KindSelf,
			ID:       id,
			Username: self.Username + " (You)",
			Handle:   self.EnleID,
			Picture:  avatar.Picture(self.ProfilePic, self.Username, self.ID),
		}
	}

	var username, handle, pic string
	found := false
	take := func(u, h, p string) {
		found = true
		if username == "" {
			username = u
		}
		if handle == "" {
			handle = h
		}
		if pic == "" {
			pic = p
		}
	}

	if self != nil {
		for _, c := range self.Contacts {
			if c.UserID == id {
				take(c.Username, c.EnleID, c.ProfilePic)
				break
			}
		}
	}
	if c, ok := roster.snapshot(id); ok {
		take(c.Username, c.EnleID, c.ProfilePic)
	}
	if u, ok := roster.directory(id); ok {
		take(u.Username, u.EnleID, u.ProfilePic)
	}

	if !found || id == "" {
		return Resolution{Kind: KindUnknown, ID: id, Username: Unknown, Handle: Unknown, Picture: avatar.ForID(id)}
	}

	r := Resolution{Kind: KindContact, ID: id, Username: username, Handle: handle}
	if r.Username == "" {
		r.Username = Unknown
	}
	if r.Handle == "" {
		r.Handle = Unknown
	}
	r.Picture = avatar.Picture(pic, username, id)
	return r
}

func (s *Store) Resolve(id string) Resolution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Resolve(s.self, s.roster, id)
}

func (s *Store) Name(id string) string    { return s.Resolve(id).Username }
func (s *Store) Handle(id string) string  { return s.Resolve(id).Handle }
func (s *Store) Picture(id string) string { return s.Resolve(id).Picture }
