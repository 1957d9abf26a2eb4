package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)

	s, err := db.GetSession("alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, s)

	at := time.Unix(1700000000, 0)
	require.NoError(t, db.SaveSession(Session{
		Account:       "alice@example.com",
		Resource:      "desk",
		BoundJID:      "alice@example.com/desk",
		StreamID:      "s1",
		LastConnected: at,
	}))

	s, err = db.GetSession("alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "desk", s.Resource)
	assert.Equal(t, "alice@example.com/desk", s.BoundJID)
	assert.Equal(t, "s1", s.StreamID)
	assert.True(t, at.Equal(s.LastConnected))

	require.NoError(t, db.SaveSession(Session{Account: "alice@example.com", Resource: "laptop"}))
	s, err = db.GetSession("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "laptop", s.Resource)
	assert.False(t, s.LastConnected.IsZero())

	require.NoError(t, db.DeleteSession("alice@example.com"))
	s, err = db.GetSession("alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestContactLastPresence(t *testing.T) {
	db := openTestDB(t)

	p, err := db.GetContactLastPresence("alice@example.com", "bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)

	older := time.Unix(1700000000, 0)
	newer := older.Add(time.Hour)
	require.NoError(t, db.SaveContactLastPresence("alice@example.com", LastPresence{
		ContactJID: "bob@example.com", Show: "away", StatusMsg: "lunch", Available: true, LastUpdated: older,
	}))
	require.NoError(t, db.SaveContactLastPresence("alice@example.com", LastPresence{
		ContactJID: "carol@example.com", Show: "chat", LastUpdated: newer,
	}))
	require.NoError(t, db.SaveContactLastPresence("dave@example.com", LastPresence{ContactJID: "bob@example.com"}))

	p, err = db.GetContactLastPresence("alice@example.com", "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "away", p.Show)
	assert.Equal(t, "lunch", p.StatusMsg)
	assert.True(t, p.Available)
	assert.True(t, older.Equal(p.LastUpdated))

	all, err := db.ListContactLastPresence("alice@example.com")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "carol@example.com", all[0].ContactJID)
	assert.False(t, all[0].Available)
}

func TestAppState(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetAppState("last_account")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetAppState("last_account", "alice@example.com"))
	v, err = db.GetAppState("last_account")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", v)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	db, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, db.SaveSession(Session{Account: "alice@example.com", Resource: "desk"}))
	require.NoError(t, db.Close())

	db, err = New(dir)
	require.NoError(t, err)
	defer db.Close()

	s, err := db.GetSession("alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "desk", s.Resource)
}
