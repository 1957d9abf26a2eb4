package xmpp

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/jackal-xmpp/stravaganza/v2"
	"mellium.im/xmpp/stanza"

	"github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/codec"
	"github.com/meszmate/wsroster/internal/xmpp/handler"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
	"github.com/meszmate/wsroster/internal/xmpp/presence"
)

// SendPresence broadcasts the user's availability. An empty show means
// available for chat. Without a ready session it does nothing.
func (c *Client) SendPresence(show presence.Show, status string) error {
	if show == "" {
		show = presence.ShowChat
	}
	if !show.Valid() {
		return ErrInvalidShow
	}

	c.mu.Lock()
	defer c.unlock()

	s := c.sess
	if s == nil || !s.ready {
		c.logger.Debug("Skipping presence while not connected")
		return nil
	}

	p := codec.NewPresence(nil)
	if show != presence.ShowChat {
		p.Child("show", nil).Text(string(show))
	}
	if status != "" {
		p.Child("status", nil).Text(status)
	}
	return c.writeLocked(s, p.String())
}

// installBuiltinsLocked registers the message and presence handlers once per
// client so reconnects do not duplicate them.
func (c *Client) installBuiltinsLocked() {
	if c.builtins {
		return
	}
	c.builtins = true
	c.handlers.Add("message", string(stanza.ChatMessage), c.handleChatMessage)
	c.handlers.Add("presence", handler.Any, c.handlePresence)
}

func (c *Client) handleChatMessage(el stravaganza.Element) (handler.Result, error) {
	from := el.Attribute("from")
	body := codec.ChildText(el, "body")
	if from == "" || body == "" {
		return handler.Continue, nil
	}

	sender := jid.Parse(from)
	self, _ := c.JID()
	now := c.now()

	convID := sender.Bare()
	if !c.conversations.HasConversation(convID) {
		c.conversations.UpsertConversation(chat.NewConversation(sender, now))
	}
	c.conversations.AppendMessage(chat.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		From:           sender,
		To:             self,
		Direction:      chat.Incoming,
		ContentType:    chat.ContentText,
		Body:           body,
		Status:         chat.StatusDelivered,
		Timestamp:      now,
	})
	return handler.Continue, nil
}

func (c *Client) handlePresence(el stravaganza.Element) (handler.Result, error) {
	from := el.Attribute("from")
	if from == "" {
		return handler.Continue, nil
	}

	show := presence.Show(codec.ChildText(el, "show"))
	if show == "" {
		show = presence.ShowChat
	}
	priority, _ := strconv.Atoi(codec.ChildText(el, "priority"))

	c.presences.UpdatePresence(presence.Update{
		From:     jid.Parse(from),
		Type:     el.Attribute("type"),
		Show:     show,
		Status:   codec.ChildText(el, "status"),
		Priority: priority,
	})
	return handler.Continue, nil
}
