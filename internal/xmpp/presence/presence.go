package presence

import (
	"sync"

	"github.com/meszmate/wsroster/internal/xmpp/jid"
)

// Show represents the presence show state
type Show string

const (
	ShowChat Show = "chat"
	ShowAway Show = "away"
	ShowXA   Show = "xa"
	ShowDND  Show = "dnd"
)

// Valid reports whether s is one of the show values a client may send.
func (s Show) Valid() bool {
	switch s {
	case ShowChat, ShowAway, ShowXA, ShowDND:
		return true
	}
	return false
}

// Update is a presence change received from a contact. An empty Type means
// available.
type Update struct {
	From     jid.JID
	Type     string
	Show     Show
	Status   string
	Priority int
}

// Available reports whether the update announces availability.
func (u Update) Available() bool {
	return u.Type == ""
}

// Unavailable reports whether the update withdraws availability.
func (u Update) Unavailable() bool {
	return u.Type == "unavailable"
}

// Status represents a presence status
type Status struct {
	JID      jid.JID
	Show     Show
	Status   string
	Priority int
}

// Store tracks contact presence per resource.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]map[string]*Status // bare JID -> resource -> status
}

// NewStore creates a new presence store
func NewStore() *Store {
	return &Store{
		statuses: make(map[string]map[string]*Status),
	}
}

// UpdatePresence applies an inbound presence. Subscription and probe types are
// ignored here.
func (s *Store) UpdatePresence(u Update) {
	switch {
	case u.Unavailable():
		s.Remove(u.From)
	case u.Available():
		s.Set(Status{JID: u.From, Show: u.Show, Status: u.Status, Priority: u.Priority})
	}
}

// Set sets the presence for a JID
func (s *Store) Set(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bare := status.JID.Bare()
	if s.statuses[bare] == nil {
		s.statuses[bare] = make(map[string]*Status)
	}
	s.statuses[bare][status.JID.Resource] = &status
}

// Remove removes presence for a JID (all resources or specific resource)
func (s *Store) Remove(j jid.JID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bare := j.Bare()
	if j.Resource == "" {
		delete(s.statuses, bare)
		return
	}
	if s.statuses[bare] != nil {
		delete(s.statuses[bare], j.Resource)
		if len(s.statuses[bare]) == 0 {
			delete(s.statuses, bare)
		}
	}
}

// Get returns the highest priority presence for a bare JID
func (s *Store) Get(j jid.JID) *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Status
	for _, status := range s.statuses[j.Bare()] {
		if best == nil || status.Priority > best.Priority {
			best = status
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// IsOnline returns whether a JID has any online resources
func (s *Store) IsOnline(j jid.JID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses[j.Bare()]) > 0
}

// Clear clears all presence information
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = make(map[string]map[string]*Status)
}
