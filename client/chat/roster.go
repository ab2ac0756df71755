package chat

import "enlechat/models"

// Roster is the contacts payload after normalization. The two server
// shapes are folded into one: Snapshot holds the reconciled contact refs
// (combined shape only) and Directory holds every user the server listed.
type Roster struct {
	Snapshot  []models.ContactRef
	Directory []models.User
	Legacy    bool
}

// NormalizeContacts converts either payload shape into a Roster.
func NormalizeContacts(p *models.ContactsPayload) Roster {
	if p == nil {
		return Roster{}
	}
	if p.Combined != nil {
		return Roster{
			Snapshot:  append([]models.ContactRef(nil), p.Combined.UserContacts...),
			Directory: append([]models.User(nil), p.Combined.AllUsers...),
		}
	}
	return Roster{
		Directory: append([]models.User(nil), p.Legacy...),
		Legacy:    true,
	}
}

func (r Roster) snapshot(id string) (models.ContactRef, bool) {
	for _, c := range r.Snapshot {
		if c.UserID == id {
			return c, true
		}
	}
	return models.ContactRef{}, false
}

func (r Roster) directory(id string) (models.User, bool) {
	for _, u := range r.Directory {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

func (r Roster) clone() Roster {
	return Roster{
		Snapshot:  append([]models.ContactRef(nil), r.Snapshot...),
		Directory: append([]models.User(nil), r.Directory...),
		Legacy:    r.Legacy,
	}
}
