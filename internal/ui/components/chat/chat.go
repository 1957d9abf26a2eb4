package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/wsroster/internal/ui/theme"
	"github.com/meszmate/wsroster/internal/xmpp"
	xchat "github.com/meszmate/wsroster/internal/xmpp/chat"
)

const maxEntries = 500

// Entry is one line of the log: a message or a system notice.
type Entry struct {
	Message  *xchat.Message
	Notice   string
	Severity xmpp.Severity
	At       time.Time
}

// Model is a scrolling log of messages and notices.
type Model struct {
	entries    []Entry
	width      int
	height     int
	offset     int // lines scrolled up from the bottom
	timeFormat string
	target     string
	styles     *theme.Styles
}

// New creates a new log view
func New(styles *theme.Styles, timeFormat string) Model {
	if timeFormat == "" {
		timeFormat = "15:04"
	}
	return Model{
		styles:     styles,
		timeFormat: timeFormat,
	}
}

// SetSize sets the view dimensions
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// SetTarget sets the conversation messages are sent to. Messages of other
// conversations are tagged with their peer.
func (m Model) SetTarget(target string) Model {
	m.target = target
	return m
}

// AddMessage appends a message. A message already in the log is replaced.
func (m Model) AddMessage(msg xchat.Message) Model {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; e.Message != nil && e.Message.ID == msg.ID {
			entries := append([]Entry(nil), m.entries...)
			entries[i].Message = &msg
			m.entries = entries
			return m
		}
	}
	return m.add(Entry{Message: &msg, At: msg.Timestamp})
}

// AddNotice appends a system line.
func (m Model) AddNotice(text string, severity xmpp.Severity, at time.Time) Model {
	return m.add(Entry{Notice: text, Severity: severity, At: at})
}

func (m Model) add(e Entry) Model {
	entries := append(append([]Entry(nil), m.entries...), e)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	m.entries = entries
	return m
}

// UpdateMessageStatus sets the delivery status of a logged message.
func (m Model) UpdateMessageStatus(msgID string, status xchat.Status) Model {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Message == nil || e.Message.ID != msgID {
			continue
		}
		updated := *e.Message
		updated.Status = status
		entries := append([]Entry(nil), m.entries...)
		entries[i].Message = &updated
		m.entries = entries
		break
	}
	return m
}

// Entries returns the logged entries, oldest first.
func (m Model) Entries() []Entry {
	return m.entries
}

// ScrollUp scrolls towards older lines.
func (m Model) ScrollUp(n int) Model {
	m.offset += n
	return m
}

// ScrollDown scrolls towards newer lines.
func (m Model) ScrollDown(n int) Model {
	m.offset -= n
	if m.offset < 0 {
		m.offset = 0
	}
	return m
}

// ScrollToBottom shows the newest lines.
func (m Model) ScrollToBottom() Model {
	m.offset = 0
	return m
}

// View renders the log, newest lines at the bottom.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var lines []string
	for _, e := range m.entries {
		lines = append(lines, m.render(e)...)
	}
	if len(lines) == 0 {
		lines = []string{m.styles.ChatSystem.Render("No messages yet. Use /to <jid> to pick a recipient.")}
	}

	offset := m.offset
	if top := len(lines) - m.height; offset > top {
		offset = top
	}
	if offset < 0 {
		offset = 0
	}
	end := len(lines) - offset
	start := end - m.height
	if start < 0 {
		start = 0
	}
	visible := lines[start:end]

	var b strings.Builder
	for i := len(visible); i < m.height; i++ {
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(visible, "\n"))
	return b.String()
}

func (m Model) render(e Entry) []string {
	timestamp := m.styles.ChatTimestamp.Render(e.At.Format(m.timeFormat))

	if e.Message == nil {
		style := m.styles.ChatSystem
		switch e.Severity {
		case xmpp.SeverityWarning:
			style = m.styles.ChatSystemWarn
		case xmpp.SeverityError:
			style = m.styles.ChatSystemError
		}
		return []string{timestamp + " " + style.Render("*** "+e.Notice)}
	}

	msg := e.Message
	var nick string
	var nickStyle lipgloss.Style
	if msg.Direction == xchat.Outgoing {
		nick = "me"
		nickStyle = m.styles.ChatMyNick
	} else {
		nick = msg.From.Local
		if nick == "" {
			nick = msg.From.Bare()
		}
		nickStyle = m.styles.ChatTheirNick
	}
	if msg.ConversationID != m.target {
		if msg.Direction == xchat.Outgoing {
			nick = "me→" + msg.ConversationID
		} else {
			nick = msg.ConversationID
		}
	}

	status := m.statusIcon(msg.Status, msg.Direction)

	prefixWidth := lipgloss.Width(timestamp) + 1 + lipgloss.Width(nick) + 2
	width := m.width - prefixWidth
	if width < 10 {
		width = 10
	}

	var out []string
	for i, line := range wordWrap(msg.Body, width) {
		body := m.styles.ChatBody.Render(line)
		if i == 0 {
			out = append(out, fmt.Sprintf("%s %s: %s%s", timestamp, nickStyle.Render(nick), body, status))
			continue
		}
		out = append(out, strings.Repeat(" ", prefixWidth)+body)
	}
	return out
}

func (m Model) statusIcon(status xchat.Status, dir xchat.Direction) string {
	if dir != xchat.Outgoing {
		return ""
	}
	switch status {
	case xchat.StatusSending:
		return " " + m.styles.ChatPending.Render("…")
	case xchat.StatusSent:
		return " " + m.styles.ChatPending.Render("✓")
	case xchat.StatusDelivered, xchat.StatusRead:
		return " " + m.styles.PresenceOnline.Render("✓✓")
	case xchat.StatusFailed:
		return " " + m.styles.ChatFailed.Render("✗")
	default:
		return ""
	}
}

func wordWrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current strings.Builder
	for _, word := range words {
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case lipgloss.Width(current.String())+1+lipgloss.Width(word) <= width:
			current.WriteString(" ")
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	return append(lines, current.String())
}
