package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/meszmate/wsroster/internal/xmpp/jid"
)

// Direction is relative to the current user.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// ContentType describes a message payload.
type ContentType string

const (
	ContentText ContentType = "text"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// ConversationType distinguishes one-to-one chats from rooms.
type ConversationType string

const (
	Direct ConversationType = "direct"
)

// Message represents a chat message
type Message struct {
	ID             string
	ConversationID string
	From           jid.JID
	To             jid.JID
	Direction      Direction
	ContentType    ContentType
	Body           string
	Status         Status
	Timestamp      time.Time
	Read           bool
}

// Conversation is a chat with one peer, keyed by the peer's bare JID.
type Conversation struct {
	ID             string
	Type           ConversationType
	Participants   []jid.JID
	Title          string
	LastMessage    *Message
	Unread         int
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// User is the identity of the connected account.
type User struct {
	JID         jid.JID
	DisplayName string
	Presence    string
}

// NewConversation returns a direct conversation with peer.
func NewConversation(peer jid.JID, now time.Time) Conversation {
	title := peer.Local
	if title == "" {
		title = peer.Bare()
	}
	return Conversation{
		ID:             peer.Bare(),
		Type:           Direct,
		Participants:   []jid.JID{peer},
		Title:          title,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Store keeps conversations and their messages in memory.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message
	user          *User
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
	}
}

// HasConversation reports whether a conversation with id exists.
func (s *Store) HasConversation(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok
}

// UpsertConversation inserts c or replaces the stored conversation with the
// same id, keeping its message-derived fields.
func (s *Store) UpsertConversation(c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conversations[c.ID]; ok {
		c.LastMessage = existing.LastMessage
		c.Unread = existing.Unread
		if existing.LastActivityAt.After(c.LastActivityAt) {
			c.LastActivityAt = existing.LastActivityAt
		}
	}
	s.conversations[c.ID] = &c
}

// AppendMessage adds msg to its conversation and updates the conversation's
// last message, activity time and unread count.
func (s *Store) AppendMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return
	}
	last := msg
	conv.LastMessage = &last
	conv.LastActivityAt = msg.Timestamp
	if msg.Direction == Incoming && !msg.Read {
		conv.Unread++
	}
}

// UpdateMessageStatus sets the status of a stored message.
func (s *Store) UpdateMessageStatus(conversationID, messageID string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != messageID {
			continue
		}
		msgs[i].Status = status
		if conv, ok := s.conversations[conversationID]; ok && conv.LastMessage != nil && conv.LastMessage.ID == messageID {
			conv.LastMessage.Status = status
		}
		return true
	}
	return false
}

// MarkRead marks all messages in a conversation as read
func (s *Store) MarkRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i := range msgs {
		msgs[i].Read = true
	}
	if conv, ok := s.conversations[conversationID]; ok {
		conv.Unread = 0
	}
}

// Conversation returns a copy of the conversation with id.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return *conv, true
}

// Conversations returns all conversations, most recently active first.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// History returns the message history for a conversation
func (s *Store) History(conversationID string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...)
}

// UnreadCount returns the total unread count
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, conv := range s.conversations {
		count += conv.Unread
	}
	return count
}

// SetCurrentUser records the identity of the connected account.
func (s *Store) SetCurrentUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

// CurrentUser returns the connected identity, if any.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}
