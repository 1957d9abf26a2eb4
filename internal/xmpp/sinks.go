package xmpp

import (
	"context"

	"github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/presence"
)

// Conn is a bidirectional text-frame transport. ReadFrame blocks until a frame
// arrives or the connection is closed.
type Conn interface {
	ReadFrame(ctx context.Context) (string, error)
	WriteFrame(ctx context.Context, frame string) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// Severity classifies a user-visible notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NoticeSink receives human-readable notices.
type NoticeSink interface {
	Notice(text string, severity Severity)
}

// UserSink receives the identity bound to the connection.
type UserSink interface {
	SetCurrentUser(u chat.User)
}

// ConversationSink stores conversations and messages produced by the client.
type ConversationSink interface {
	HasConversation(id string) bool
	UpsertConversation(c chat.Conversation)
	AppendMessage(m chat.Message)
	UpdateMessageStatus(conversationID, messageID string, status chat.Status) bool
}

// PresenceSink receives contact presence updates. This is the roster
// extension point; the default discards updates.
type PresenceSink interface {
	UpdatePresence(u presence.Update)
}

// StatusSink observes status transitions.
type StatusSink interface {
	StatusChanged(s Status)
}

type nopSink struct{}

func (nopSink) Notice(string, Severity) {}
func (nopSink) SetCurrentUser(chat.User) {}
func (nopSink) HasConversation(string) bool { return true }
func (nopSink) UpsertConversation(chat.Conversation) {}
func (nopSink) AppendMessage(chat.Message) {}
func (nopSink) UpdateMessageStatus(string, string, chat.Status) bool { return false }
func (nopSink) UpdatePresence(presence.Update) {}
func (nopSink) StatusChanged(Status) {}
