package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const fileName = "wsroster.db"

type DB struct {
	db *sql.DB
}

// New opens the database in dataDir, creating it and its schema if needed.
func New(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, fileName)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &DB{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			account TEXT PRIMARY KEY,
			resource TEXT,
			bound_jid TEXT,
			stream_id TEXT,
			last_connected INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS contact_last_presence (
			account TEXT NOT NULL,
			contact_jid TEXT NOT NULL,
			their_show TEXT,
			their_status_msg TEXT,
			available INTEGER DEFAULT 0,
			last_updated INTEGER,
			PRIMARY KEY (account, contact_jid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_last_presence_account ON contact_last_presence(account)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Session is the last successful connection of an account.
type Session struct {
	Account       string
	Resource      string
	BoundJID      string
	StreamID      string
	LastConnected time.Time
}

func (d *DB) SaveSession(session Session) error {
	last := session.LastConnected
	if last.IsZero() {
		last = time.Now()
	}
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO sessions (account, resource, bound_jid, stream_id, last_connected)
		VALUES (?, ?, ?, ?, ?)
	`, session.Account, session.Resource, session.BoundJID, session.StreamID, last.Unix())
	return err
}

// GetSession returns the stored session for account, or nil.
func (d *DB) GetSession(account string) (*Session, error) {
	var session Session
	var lastConnected sql.NullInt64
	var resource, bound, streamID sql.NullString

	err := d.db.QueryRow(`
		SELECT account, resource, bound_jid, stream_id, last_connected
		FROM sessions
		WHERE account = ?
	`, account).Scan(&session.Account, &resource, &bound, &streamID, &lastConnected)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.Resource = resource.String
	session.BoundJID = bound.String
	session.StreamID = streamID.String
	if lastConnected.Valid {
		session.LastConnected = time.Unix(lastConnected.Int64, 0)
	}
	return &session, nil
}

func (d *DB) DeleteSession(account string) error {
	_, err := d.db.Exec("DELETE FROM sessions WHERE account = ?", account)
	return err
}

func (d *DB) SetAppState(key, value string) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO app_state (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}

func (d *DB) GetAppState(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// LastPresence is the most recent presence seen from a contact.
type LastPresence struct {
	ContactJID  string
	Show        string
	StatusMsg   string
	Available   bool
	LastUpdated time.Time
}

func (d *DB) SaveContactLastPresence(account string, p LastPresence) error {
	updated := p.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	available := 0
	if p.Available {
		available = 1
	}
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO contact_last_presence (account, contact_jid, their_show, their_status_msg, available, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, account, p.ContactJID, p.Show, p.StatusMsg, available, updated.Unix())
	return err
}

// GetContactLastPresence returns the stored presence for a contact, or nil.
func (d *DB) GetContactLastPresence(account, contactJID string) (*LastPresence, error) {
	row := d.db.QueryRow(`
		SELECT contact_jid, their_show, their_status_msg, available, last_updated FROM contact_last_presence
		WHERE account = ? AND contact_jid = ?
	`, account, contactJID)

	p, err := scanLastPresence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListContactLastPresence returns every stored presence for account, most
// recent first.
func (d *DB) ListContactLastPresence(account string) ([]LastPresence, error) {
	rows, err := d.db.Query(`
		SELECT contact_jid, their_show, their_status_msg, available, last_updated FROM contact_last_presence
		WHERE account = ?
		ORDER BY last_updated DESC, contact_jid
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LastPresence
	for rows.Next() {
		p, err := scanLastPresence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLastPresence(s scanner) (*LastPresence, error) {
	var p LastPresence
	var show, status sql.NullString
	var available, updated sql.NullInt64

	if err := s.Scan(&p.ContactJID, &show, &status, &available, &updated); err != nil {
		return nil, err
	}
	p.Show = show.String
	p.StatusMsg = status.String
	p.Available = available.Int64 != 0
	if updated.Valid {
		p.LastUpdated = time.Unix(updated.Int64, 0)
	}
	return &p, nil
}
