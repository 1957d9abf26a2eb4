package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/wsroster/internal/ui/theme"
	"github.com/meszmate/wsroster/internal/xmpp"
)

// Model represents the status bar component
type Model struct {
	width   int
	account string
	status  xmpp.Status
	target  string
	unread  int
	styles  *theme.Styles
}

// New creates a new status bar model
func New(styles *theme.Styles) Model {
	return Model{
		styles: styles,
		status: xmpp.StatusDisconnected,
	}
}

// SetWidth sets the status bar width
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// SetAccount sets the account shown on the left.
func (m Model) SetAccount(account string) Model {
	m.account = account
	return m
}

// SetStatus sets the connection status
func (m Model) SetStatus(status xmpp.Status) Model {
	m.status = status
	return m
}

// SetTarget sets the address messages are sent to.
func (m Model) SetTarget(target string) Model {
	m.target = target
	return m
}

// SetUnread sets the number of unread messages across conversations.
func (m Model) SetUnread(n int) Model {
	m.unread = n
	return m
}

// View renders the status bar
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var indicator, statusText string
	switch m.status {
	case xmpp.StatusConnected:
		indicator = m.styles.PresenceOnline.Render("●")
	case xmpp.StatusConnecting, xmpp.StatusAuthenticating, xmpp.StatusAuthenticated:
		indicator = m.styles.PresenceAway.Render("◐")
		statusText = m.styles.PresenceAway.Render(fmt.Sprintf(" [%s...]", m.status))
	case xmpp.StatusError:
		indicator = m.styles.PresenceDND.Render("✗")
		statusText = m.styles.PresenceDND.Render(" [error]")
	default:
		indicator = m.styles.PresenceOffline.Render("○")
		statusText = fmt.Sprintf(" [%s]", m.status)
	}

	left := fmt.Sprintf(" %s %s%s", indicator, m.styles.StatusAccount.Render(m.account), statusText)

	var right []string
	if m.unread > 0 {
		right = append(right, m.styles.PresenceAway.Render(fmt.Sprintf("%d unread", m.unread)))
	}
	if m.target != "" {
		right = append(right, m.styles.StatusTarget.Render("to:"+m.target))
	}
	rightText := strings.Join(right, " | ") + " "

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightText)
	if padding < 0 {
		padding = 0
	}

	return m.styles.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + rightText)
}
