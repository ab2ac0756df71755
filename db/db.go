package db

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"enlechat/models"
)

var (
	ErrNoRows          = errors.New("no rows found")
	ErrEmailTaken      = errors.New("user already exists")
	ErrRequestExists   = errors.New("request already sent")
	ErrAlreadyContacts = errors.New("already connected")
	ErrHandleExhausted = errors.New("could not allocate a unique Enle ID")
)

const (
	DefaultStatus = "Hey there! I am using Enle"

	// fixed width so that string order is time order
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	handleAttempts = 20
)

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping() error {
	return db.conn.Ping()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			enle_id TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			profile_pic TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			owner TEXT NOT NULL REFERENCES users(id),
			contact TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			UNIQUE(owner, contact)
		)`,
		`CREATE TABLE IF NOT EXISTS requests (
			sender TEXT NOT NULL REFERENCES users(id),
			recipient TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			UNIQUE(sender, recipient)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			text TEXT NOT NULL,
			media TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, recipient, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_recipient ON requests(recipient)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return db.migrate()
}

// migrate adds columns introduced after the first schema.
func (db *DB) migrate() error {
	columns := []struct {
		name string
		ddl  string
	}{
		{"theme", "ALTER TABLE users ADD COLUMN theme TEXT NOT NULL DEFAULT 'light'"},
		{"notifications", "ALTER TABLE users ADD COLUMN notifications INTEGER NOT NULL DEFAULT 1"},
		{"last_online", "ALTER TABLE users ADD COLUMN last_online TEXT NOT NULL DEFAULT ''"},
		{"last_offline", "ALTER TABLE users ADD COLUMN last_offline TEXT NOT NULL DEFAULT ''"},
	}
	for _, c := range columns {
		if db.columnExists("users", c.name) {
			continue
		}
		if _, err := db.conn.Exec(c.ddl); err != nil {
			return fmt.Errorf("migrate users.%s: %w", c.name, err)
		}
	}
	return nil
}

func (db *DB) columnExists(table, column string) bool {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func newHandle() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), column)
}

// User methods

// CreateUser stores a new account with a fresh six-digit Enle ID.
func (db *DB) CreateUser(username, email, password string) (*models.User, error) {
	exists, err := db.EmailExists(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	for i := 0; i < handleAttempts; i++ {
		handle, err := newHandle()
		if err != nil {
			return nil, err
		}
		_, err = db.conn.Exec(
			"INSERT INTO users (id, username, enle_id, email, password, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id.String(), username, handle, email, string(hashed), DefaultStatus, now(),
		)
		switch {
		case err == nil:
			return db.GetUser(id.String())
		case isUniqueViolation(err, "users.enle_id"):
			continue
		case isUniqueViolation(err, "users.email"):
			return nil, ErrEmailTaken
		default:
			return nil, err
		}
	}
	return nil, ErrHandleExhausted
}

func (db *DB) EmailExists(email string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AuthenticateUser returns the account for email when password matches,
// nil otherwise.
func (db *DB) AuthenticateUser(email, password string) (*models.User, error) {
	var id, hashedPassword string
	err := db.conn.QueryRow("SELECT id, password FROM users WHERE email = ?", email).Scan(&id, &hashedPassword)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) != nil {
		return nil, nil
	}
	return db.GetUser(id)
}

const userColumns = "id, username, enle_id, email, profile_pic, status, theme, notifications"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var notifications int
	err := row.Scan(&u.ID, &u.Username, &u.EnleID, &u.Email, &u.ProfilePic, &u.Status, &u.Settings.Theme, &notifications)
	if err != nil {
		return nil, err
	}
	u.Settings.Notifications = notifications != 0
	return &u, nil
}

// GetUser loads a user with its contact snapshot.
func (db *DB) GetUser(id string) (*models.User, error) {
	u, err := scanUser(db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}

	contacts, err := db.GetContacts(id)
	if err != nil {
		return nil, err
	}
	u.Contacts = contacts
	return u, nil
}

func (db *DB) GetUserByEnleID(enleID string) (*models.User, error) {
	u, err := scanUser(db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE enle_id = ?", enleID))
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	return u, err
}

// ListUsers returns every user except excludeID, without contacts or email.
func (db *DB) ListUsers(excludeID string) ([]models.User, error) {
	rows, err := db.conn.Query("SELECT "+userColumns+" FROM users WHERE id != ? ORDER BY username", excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		u.Email = ""
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) UpdateSettings(id string, s models.Settings) error {
	notifications := 0
	if s.Notifications {
		notifications = 1
	}
	result, err := db.conn.Exec("UPDATE users SET theme = ?, notifications = ? WHERE id = ?", s.Theme, notifications, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

func (db *DB) UpdateLastOnline(id string, t time.Time) error {
	_, err := db.conn.Exec("UPDATE users SET last_online = ? WHERE id = ?", t.UTC().Format(timeLayout), id)
	return err
}

func (db *DB) UpdateLastOffline(id string, t time.Time) error {
	_, err := db.conn.Exec("UPDATE users SET last_offline = ? WHERE id = ?", t.UTC().Format(timeLayout), id)
	return err
}

// LastSeen returns the last connect and disconnect times. Zero values mean
// the user never connected.
func (db *DB) LastSeen(id string) (online, offline time.Time, err error) {
	var onlineStr, offlineStr string
	err = db.conn.QueryRow("SELECT last_online, last_offline FROM users WHERE id = ?", id).Scan(&onlineStr, &offlineStr)
	if err == sql.ErrNoRows {
		err = ErrNoRows
		return
	}
	if err != nil {
		return
	}
	if onlineStr != "" {
		online, _ = time.Parse(timeLayout, onlineStr)
	}
	if offlineStr != "" {
		offline, _ = time.Parse(timeLayout, offlineStr)
	}
	return
}

// Contact methods

// GetContacts returns owner's contacts with the current profile fields of
// each contact.
func (db *DB) GetContacts(owner string) ([]models.ContactRef, error) {
	rows, err := db.conn.Query(`
		SELECT u.id, u.username, u.enle_id, u.profile_pic, u.status
		FROM contacts c JOIN users u ON u.id = c.contact
		WHERE c.owner = ?
		ORDER BY c.created_at ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []models.ContactRef{}
	for rows.Next() {
		var c models.ContactRef
		if err := rows.Scan(&c.UserID, &c.Username, &c.EnleID, &c.ProfilePic, &c.Status); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (db *DB) ContactExists(owner, contact string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM contacts WHERE owner = ? AND contact = ?", owner, contact).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Connect makes a and b contacts of each other.
func (db *DB) Connect(a, b string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.Exec("INSERT OR IGNORE INTO contacts (owner, contact, created_at) VALUES (?, ?, ?)", pair[0], pair[1], ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Request methods

func (db *DB) CreateRequest(sender, recipient string) error {
	connected, err := db.ContactExists(sender, recipient)
	if err != nil {
		return err
	}
	if connected {
		return ErrAlreadyContacts
	}

	_, err = db.conn.Exec("INSERT INTO requests (sender, recipient, created_at) VALUES (?, ?, ?)", sender, recipient, now())
	if isUniqueViolation(err, "requests.sender") {
		return ErrRequestExists
	}
	return err
}

// GetRequests lists the pending requests addressed to recipient.
func (db *DB) GetRequests(recipient string) ([]models.ConnectionRequest, error) {
	rows, err := db.conn.Query(`
		SELECT u.id, u.username, u.enle_id
		FROM requests r JOIN users u ON u.id = r.sender
		WHERE r.recipient = ?
		ORDER BY r.created_at ASC`, recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []models.ConnectionRequest{}
	for rows.Next() {
		var r models.ConnectionRequest
		if err := rows.Scan(&r.SenderID, &r.SenderUsername, &r.SenderEnleID); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (db *DB) DeleteRequest(sender, recipient string) error {
	result, err := db.conn.Exec("DELETE FROM requests WHERE sender = ? AND recipient = ?", sender, recipient)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// Message methods

func (db *DB) SaveMessage(sender, recipient, text, media string) (*models.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	created := time.Now().UTC()
	_, err = db.conn.Exec(
		"INSERT INTO messages (id, sender, recipient, text, media, created_at, read) VALUES (?, ?, ?, ?, ?, ?, 0)",
		id.String(), sender, recipient, text, media, created.Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:        id.String(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		Media:     media,
		CreatedAt: created,
	}, nil
}

// GetHistory returns the conversation between a and b, oldest first. a == b
// is the self chat.
func (db *DB) GetHistory(a, b string) ([]models.Message, error) {
	rows, err := db.conn.Query(`
		SELECT id, sender, recipient, text, media, created_at, read
		FROM messages
		WHERE (sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)
		ORDER BY created_at ASC, rowid ASC`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var created string
		var read int
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Text, &m.Media, &created, &read); err != nil {
			return nil, err
		}
		m.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, err
		}
		m.Read = read != 0
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead flags every message from sender to recipient as read and
// reports how many changed.
func (db *DB) MarkRead(sender, recipient string) (int64, error) {
	result, err := db.conn.Exec(
		"UPDATE messages SET read = 1 WHERE sender = ? AND recipient = ? AND read = 0",
		sender, recipient,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
