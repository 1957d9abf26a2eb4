// Package ui is the terminal front end.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/wsroster/internal/app"
	"github.com/meszmate/wsroster/internal/ui/components/chat"
	"github.com/meszmate/wsroster/internal/ui/components/commandline"
	"github.com/meszmate/wsroster/internal/ui/components/statusbar"
	"github.com/meszmate/wsroster/internal/ui/theme"
	"github.com/meszmate/wsroster/internal/xmpp"
	xchat "github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
	"github.com/meszmate/wsroster/internal/xmpp/presence"
)

var commands = []commandline.Command{
	{Name: "to", Usage: "/to <jid>", Description: "Set the recipient of chat lines"},
	{Name: "presence", Usage: "/presence <chat|away|xa|dnd> [status]", Description: "Broadcast your availability"},
	{Name: "connect", Usage: "/connect", Description: "Connect the account"},
	{Name: "disconnect", Usage: "/disconnect", Description: "Close the session"},
	{Name: "help", Usage: "/help", Description: "List commands"},
	{Name: "quit", Usage: "/quit", Description: "Exit"},
}

// Model is the root Bubble Tea model
type Model struct {
	app    *app.App
	styles *theme.Styles

	log         chat.Model
	statusbar   statusbar.Model
	commandline commandline.Model

	target   string
	width    int
	height   int
	ready    bool
	quitting bool
	now      func() time.Time
}

// NewModel creates the UI for application.
func NewModel(application *app.App) Model {
	styles := theme.Default()

	input := commandline.New(styles)
	for _, c := range commands {
		input = input.RegisterCommand(c)
	}

	return Model{
		app:         application,
		styles:      styles,
		log:         chat.New(styles, application.Config().UI.TimeFormat),
		statusbar:   statusbar.New(styles).SetAccount(application.Account().JID).SetStatus(application.Status()),
		commandline: input,
		now:         time.Now,
	}
}

// Init starts listening for app events
func (m Model) Init() tea.Cmd {
	return m.app.Init()
}

// Target returns the current recipient.
func (m Model) Target() string {
	return m.target
}

// Entries returns the log lines, oldest first.
func (m Model) Entries() []chat.Entry {
	return m.log.Entries()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyPgUp:
			m.log = m.log.ScrollUp(m.pageSize())
			return m, nil
		case tea.KeyPgDown:
			m.log = m.log.ScrollDown(m.pageSize())
			return m, nil
		}
		var cmd tea.Cmd
		m.commandline, cmd = m.commandline.Update(msg)
		return m, cmd

	case commandline.SubmitMsg:
		if m.target == "" {
			m.notice("No recipient. Use /to <jid> first", xmpp.SeverityWarning)
			return m, nil
		}
		m.log = m.log.ScrollToBottom()
		return m, m.app.SendMessageCmd(m.target, msg.Text)

	case commandline.CommandMsg:
		return m.runCommand(msg)

	case app.EventMsg:
		m.handleEvent(msg)
		return m, m.app.ListenForEvents()

	case app.ConnectResultMsg:
		if msg.Err == nil {
			m.notice("Connected as "+msg.JID, xmpp.SeverityInfo)
		}

	case app.SendMessageResultMsg:
		if msg.Err != nil {
			m.notice(fmt.Sprintf("Message to %s not sent: %v", msg.To, msg.Err), xmpp.SeverityError)
		}
	}

	return m, nil
}

func (m Model) runCommand(msg commandline.CommandMsg) (tea.Model, tea.Cmd) {
	switch msg.Command {
	case "to":
		if len(msg.Args) != 1 {
			m.notice("Usage: /to <jid>", xmpp.SeverityWarning)
			return m, nil
		}
		if err := jid.Validate(msg.Args[0]); err != nil {
			m.notice(err.Error(), xmpp.SeverityWarning)
			return m, nil
		}
		m.target = jid.Parse(msg.Args[0]).Bare()
		m.app.Chats().MarkRead(m.target)
		m.log = m.log.SetTarget(m.target)
		m.statusbar = m.statusbar.SetTarget(m.target).SetUnread(m.app.Chats().UnreadCount())
		m.commandline = m.commandline.SetPrompt(jid.Parse(m.target).Local + "> ")

	case "presence":
		if len(msg.Args) == 0 {
			m.notice("Usage: /presence <chat|away|xa|dnd> [status]", xmpp.SeverityWarning)
			return m, nil
		}
		if err := m.app.SendPresence(msg.Args[0], strings.Join(msg.Args[1:], " ")); err != nil {
			m.notice(err.Error(), xmpp.SeverityWarning)
		}

	case "connect":
		return m, m.app.ConnectCmd()

	case "disconnect":
		if err := m.app.Disconnect(); err != nil {
			m.notice(err.Error(), xmpp.SeverityWarning)
		}

	case "help":
		for _, c := range m.commandline.Commands() {
			m.notice(fmt.Sprintf("%-40s %s", c.Usage, c.Description), xmpp.SeverityInfo)
		}

	case "quit", "q":
		m.quitting = true
		return m, tea.Quit

	default:
		m.notice("Unknown command: /"+msg.Command, xmpp.SeverityWarning)
	}
	return m, nil
}

func (m *Model) handleEvent(event app.EventMsg) {
	switch event.Type {
	case app.EventMessage:
		if msg, ok := event.Data.(xchat.Message); ok {
			if msg.ConversationID == m.target {
				m.app.Chats().MarkRead(m.target)
			}
			m.log = m.log.AddMessage(msg)
			m.statusbar = m.statusbar.SetUnread(m.app.Chats().UnreadCount())
		}

	case app.EventMessageStatus:
		if u, ok := event.Data.(app.MessageStatusUpdate); ok {
			m.log = m.log.UpdateMessageStatus(u.MessageID, u.Status)
		}

	case app.EventPresence:
		if u, ok := event.Data.(presence.Update); ok {
			if line := presenceLine(u); line != "" {
				m.notice(line, xmpp.SeverityInfo)
			}
		}

	case app.EventStatus:
		if s, ok := event.Data.(xmpp.Status); ok {
			m.statusbar = m.statusbar.SetStatus(s)
		}

	case app.EventNotice:
		if n, ok := event.Data.(app.Notice); ok {
			m.log = m.log.AddNotice(n.Text, n.Severity, n.At)
		}
	}
}

func presenceLine(u presence.Update) string {
	switch {
	case u.Available():
		line := fmt.Sprintf("%s is %s", u.From.Full(), u.Show)
		if u.Status != "" {
			line += " (" + u.Status + ")"
		}
		return line
	case u.Unavailable():
		return u.From.Full() + " went offline"
	}
	return ""
}

func (m *Model) notice(text string, severity xmpp.Severity) {
	m.log = m.log.AddNotice(text, severity, m.now())
}

func (m *Model) resize() {
	m.statusbar = m.statusbar.SetWidth(m.width)
	m.commandline = m.commandline.SetWidth(m.width)
	m.log = m.log.SetSize(m.width, m.logHeight())
}

// header, status bar and input line take one row each
func (m Model) logHeight() int {
	if h := m.height - 3; h > 0 {
		return h
	}
	return 1
}

func (m Model) pageSize() int {
	if h := m.logHeight() - 1; h > 0 {
		return h
	}
	return 1
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := m.styles.Header.Render("wsroster")
	if user, ok := m.app.Chats().CurrentUser(); ok {
		header += m.styles.ChatTimestamp.Render(user.JID.Full())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.log.View(),
		m.statusbar.View(),
		m.commandline.View(),
	)
}
