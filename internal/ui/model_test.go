package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/wsroster/internal/app"
	"github.com/meszmate/wsroster/internal/config"
	wstransport "github.com/meszmate/wsroster/internal/transport/websocket"
	"github.com/meszmate/wsroster/internal/ui/components/commandline"
	"github.com/meszmate/wsroster/internal/xmpp"
	xchat "github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
	"github.com/meszmate/wsroster/internal/xmpp/presence"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.General.AutoConnect = false
	a, err := app.New(cfg, config.Account{
		JID:        "alice@example.com",
		Password:   "secret",
		ServiceURL: "ws://127.0.0.1:1/xmpp-websocket",
	}, wstransport.NewDialer(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	m := NewModel(a)
	m.now = func() time.Time { return time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC) }
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func lastNotice(t *testing.T, m Model) string {
	t.Helper()
	entries := m.Entries()
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].Notice
}

func TestSubmitWithoutRecipient(t *testing.T) {
	m := newTestModel(t)

	m, cmd := update(t, m, commandline.SubmitMsg{Text: "hello"})
	assert.Nil(t, cmd)
	assert.Contains(t, lastNotice(t, m), "No recipient")
}

func TestToCommand(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, commandline.CommandMsg{Command: "to", Args: []string{"bob@example.com/phone"}})
	assert.Equal(t, "bob@example.com", m.Target())
	assert.Contains(t, m.View(), "to:bob@example.com")

	m, _ = update(t, m, commandline.CommandMsg{Command: "to"})
	assert.Equal(t, "bob@example.com", m.Target())
	assert.Equal(t, "Usage: /to <jid>", lastNotice(t, m))
}

func TestTypedCommandLine(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/to")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("bob@example.com")})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Equal(t, "bob@example.com", m.Target())
}

func TestSendWhileDisconnectedReportsError(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, commandline.CommandMsg{Command: "to", Args: []string{"bob@example.com"}})

	m, cmd := update(t, m, commandline.SubmitMsg{Text: "hello"})
	require.NotNil(t, cmd)
	result, ok := cmd().(app.SendMessageResultMsg)
	require.True(t, ok)
	require.ErrorIs(t, result.Err, xmpp.ErrNotConnected)

	m, _ = update(t, m, result)
	entry := m.Entries()[len(m.Entries())-1]
	assert.Equal(t, xmpp.SeverityError, entry.Severity)
	assert.Contains(t, entry.Notice, "bob@example.com")
}

func TestPresenceCommand(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, commandline.CommandMsg{Command: "presence", Args: []string{"busy"}})
	assert.Equal(t, xmpp.ErrInvalidShow.Error(), lastNotice(t, m))

	before := len(m.Entries())
	m, _ = update(t, m, commandline.CommandMsg{Command: "presence", Args: []string{"away", "out", "to", "lunch"}})
	assert.Len(t, m.Entries(), before)
}

func TestAppEvents(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, commandline.CommandMsg{Command: "to", Args: []string{"bob@example.com"}})

	msg := xchat.Message{
		ID:             "m1",
		ConversationID: "bob@example.com",
		From:           jid.Parse("bob@example.com/phone"),
		Direction:      xchat.Incoming,
		Body:           "hi alice",
		Status:         xchat.StatusDelivered,
		Timestamp:      time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	}
	m, cmd := update(t, m, app.EventMsg{Type: app.EventMessage, Data: msg})
	assert.NotNil(t, cmd, "keeps listening for events")

	out := xchat.Message{
		ID:             "m2",
		ConversationID: "bob@example.com",
		Direction:      xchat.Outgoing,
		Body:           "hello",
		Status:         xchat.StatusSending,
		Timestamp:      time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC),
	}
	m, _ = update(t, m, app.EventMsg{Type: app.EventMessage, Data: out})
	m, _ = update(t, m, app.EventMsg{Type: app.EventMessageStatus, Data: app.MessageStatusUpdate{
		ConversationID: "bob@example.com",
		MessageID:      "m2",
		Status:         xchat.StatusFailed,
	}})
	m, _ = update(t, m, app.EventMsg{Type: app.EventPresence, Data: presence.Update{
		From:   jid.Parse("bob@example.com/phone"),
		Show:   presence.ShowDND,
		Status: "busy",
	}})
	m, _ = update(t, m, app.EventMsg{Type: app.EventStatus, Data: xmpp.StatusConnected})
	m, _ = update(t, m, app.EventMsg{Type: app.EventNotice, Data: app.Notice{
		Text:     "Reconnected",
		Severity: xmpp.SeverityInfo,
		At:       time.Now(),
	}})

	entries := m.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "hi alice", entries[0].Message.Body)
	assert.Equal(t, xchat.StatusFailed, entries[1].Message.Status)
	assert.Equal(t, "bob@example.com/phone is dnd (busy)", entries[2].Notice)
	assert.Equal(t, "Reconnected", entries[3].Notice)

	view := m.View()
	assert.Contains(t, view, "09:30")
	assert.Contains(t, view, "hi alice")
	assert.Contains(t, view, "✗")
	assert.Contains(t, view, "●")
}

func TestUnknownCommandAndQuit(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, commandline.CommandMsg{Command: "bogus"})
	assert.Equal(t, "Unknown command: /bogus", lastNotice(t, m))

	m, _ = update(t, m, commandline.CommandMsg{Command: "help"})
	assert.True(t, strings.HasPrefix(lastNotice(t, m), "/to"))

	m, cmd := update(t, m, commandline.CommandMsg{Command: "quit"})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}
