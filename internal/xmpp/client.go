// Package xmpp implements an XMPP client session over a frame transport:
// stream negotiation, SASL authentication, resource binding, stanza routing
// and reconnection.
package xmpp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"mellium.im/xmpp/stanza"

	"github.com/meszmate/wsroster/internal/metrics"
	"github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/codec"
	"github.com/meszmate/wsroster/internal/xmpp/handler"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
	"github.com/meszmate/wsroster/internal/xmpp/sasl"
)

const (
	bindID    = "bind_1"
	sessionID = "session_1"

	maxOutbox = 100
)

// Client is an XMPP client. At most one session, live or being negotiated,
// exists at a time.
type Client struct {
	dialer   Dialer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handlers *handler.Registry
	now      func() time.Time

	notices       NoticeSink
	users         UserSink
	conversations ConversationSink
	presences     PresenceSink
	statuses      StatusSink

	mu       sync.Mutex
	status   Status
	sess     *session
	lastCfg  *Config
	outbox   []outgoing
	builtins bool

	reconnectAttempts int
	reconnectTimer    *time.Timer
	reconnectGen      int

	// post holds sink callbacks queued under mu; unlock runs them.
	post []func()
}

type session struct {
	cfg     Config
	account jid.JID
	ctx     context.Context
	cancel  context.CancelFunc
	conn    Conn
	result  *attemptResult
	timer   *time.Timer
	auto    bool

	streamID        string
	authenticated   bool
	sessionRequired bool
	bound           jid.JID
	hasBound        bool
	ready           bool
	failed          bool
	closeReason     error
}

type outgoing struct {
	conversationID string
	messageID      string
	stanza         string
}

// attemptResult completes a connection attempt exactly once.
type attemptResult struct {
	once sync.Once
	done chan error
}

func newAttemptResult() *attemptResult {
	return &attemptResult{done: make(chan error, 1)}
}

// complete records err and reports whether this call resolved the attempt.
func (r *attemptResult) complete(err error) bool {
	resolved := false
	r.once.Do(func() {
		r.done <- err
		resolved = true
	})
	return resolved
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records connection metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithNoticeSink(s NoticeSink) Option {
	return func(c *Client) { c.notices = s }
}

func WithUserSink(s UserSink) Option {
	return func(c *Client) { c.users = s }
}

func WithConversationSink(s ConversationSink) Option {
	return func(c *Client) { c.conversations = s }
}

func WithPresenceSink(s PresenceSink) Option {
	return func(c *Client) { c.presences = s }
}

func WithStatusSink(s StatusSink) Option {
	return func(c *Client) { c.statuses = s }
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a disconnected client that dials through d.
func NewClient(d Dialer, opts ...Option) *Client {
	c := &Client{
		dialer:        d,
		logger:        zap.NewNop(),
		now:           time.Now,
		notices:       nopSink{},
		users:         nopSink{},
		conversations: nopSink{},
		presences:     nopSink{},
		statuses:      nopSink{},
		status:        StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.handlers = handler.NewRegistry(c.logger, c.metrics)
	return c
}

// Status returns the current lifecycle status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// JID returns the bound address of the live session.
func (c *Client) JID() (jid.JID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || !c.sess.hasBound {
		return jid.JID{}, false
	}
	return c.sess.bound, true
}

// StreamID returns the identifier of the current stream, if any.
func (c *Client) StreamID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.streamID
}

// AddHandler registers h for stanzas named name with the given type attribute.
// Either may be handler.Any.
func (c *Client) AddHandler(name, typ string, h handler.Func) {
	c.handlers.Add(name, typ, h)
}

// Connect opens a session and blocks until it is ready, rejected, or ctx is
// done. Cancelling ctx aborts the attempt without scheduling a reconnect.
func (c *Client) Connect(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.stopReconnectLocked()
	c.reconnectAttempts = 0
	s := c.startLocked(cfg, false)
	c.unlock()

	select {
	case err := <-s.result.done:
		return err
	case <-ctx.Done():
		c.abort(s, ctx.Err(), false)
	}
	return <-s.result.done
}

// Disconnect closes the session, cancels a pending reconnect, and fails a
// pending Connect with ErrDisconnected. Reconnection is not attempted.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.unlock()

	c.stopReconnectLocked()
	c.failOutboxLocked()

	s := c.sess
	if s == nil {
		c.setStatusLocked(StatusDisconnected)
		return nil
	}

	c.setStatusLocked(StatusDisconnecting)
	if s.conn != nil {
		c.writeLocked(s, codec.StreamCloseTag)
	}
	c.teardownLocked(s)
	s.result.complete(ErrDisconnected)
	c.setStatusLocked(StatusDisconnected)
	c.logger.Info("Disconnected")
	return nil
}

// SendMessage sends a chat message to the address to and records it as an
// outgoing message. While an attempt is in flight the message is queued with
// status sending and flushed once the session is ready.
func (c *Client) SendMessage(to, text string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", ErrNoRecipient
	}
	recipient := jid.Parse(to)

	c.mu.Lock()
	defer c.unlock()

	s := c.sess
	if s == nil && c.reconnectTimer == nil {
		return "", ErrNotConnected
	}

	id := uuid.NewString()
	out := codec.NewMessage(codec.Attrs{
		"to":   to,
		"type": string(stanza.ChatMessage),
		"id":   id,
	})
	out.Child("body", nil).Text(text)

	var from jid.JID
	if s != nil && s.hasBound {
		from = s.bound
	} else if c.lastCfg != nil {
		from = jid.Parse(c.lastCfg.JID)
	}

	msg := chat.Message{
		ID:             id,
		ConversationID: recipient.Bare(),
		From:           from,
		To:             recipient,
		Direction:      chat.Outgoing,
		ContentType:    chat.ContentText,
		Body:           text,
		Timestamp:      c.now(),
		Read:           true,
	}

	if s != nil && s.ready {
		if err := c.writeLocked(s, out.String()); err != nil {
			return "", fmt.Errorf("failed to send message: %w", err)
		}
		msg.Status = chat.StatusSent
	} else {
		if len(c.outbox) >= maxOutbox {
			return "", ErrOutboxFull
		}
		msg.Status = chat.StatusSending
		c.outbox = append(c.outbox, outgoing{
			conversationID: msg.ConversationID,
			messageID:      id,
			stanza:         out.String(),
		})
	}

	c.later(func() {
		if !c.conversations.HasConversation(msg.ConversationID) {
			c.conversations.UpsertConversation(chat.NewConversation(recipient, msg.Timestamp))
		}
		c.conversations.AppendMessage(msg)
	})
	return id, nil
}

// later queues f to run after mu is released.
func (c *Client) later(f func()) {
	c.post = append(c.post, f)
}

// unlock releases mu and runs queued callbacks in order.
func (c *Client) unlock() {
	post := c.post
	c.post = nil
	c.mu.Unlock()
	for _, f := range post {
		f()
	}
}

func (c *Client) setStatusLocked(st Status) {
	if c.status == st {
		return
	}
	c.logger.Debug("Status changed", zap.Stringer("from", c.status), zap.Stringer("to", st))
	c.status = st
	c.metrics.SetStatus(string(st), statusNames)
	c.later(func() { c.statuses.StatusChanged(st) })
}

func (c *Client) noticeLocked(text string, severity Severity) {
	c.later(func() { c.notices.Notice(text, severity) })
}

func (c *Client) startLocked(cfg Config, auto bool) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		cfg:     cfg,
		account: jid.Parse(cfg.JID),
		ctx:     ctx,
		cancel:  cancel,
		result:  newAttemptResult(),
		auto:    auto,
	}
	if cfg.Timeout > 0 {
		s.timer = time.AfterFunc(cfg.Timeout, func() {
			c.abort(s, fmt.Errorf("%w: handshake timed out after %s", ErrConnectionFailed, cfg.Timeout), true)
		})
	}

	c.sess = s
	c.lastCfg = &cfg
	c.setStatusLocked(StatusConnecting)
	go c.run(s)
	return s
}

func (c *Client) run(s *session) {
	url := WebSocketURL(s.cfg.ServiceURL)
	c.logger.Info("Connecting", zap.String("url", url), zap.String("jid", s.account.Bare()))

	conn, err := c.dialer.Dial(s.ctx, url)
	if err != nil {
		c.closed(s, err)
		return
	}

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	c.writeLocked(s, codec.StreamOpenTag(s.account.Domain))
	c.unlock()

	for {
		frame, err := conn.ReadFrame(s.ctx)
		if err != nil {
			c.closed(s, err)
			return
		}
		c.handleFrame(s, frame)
	}
}

func (c *Client) writeLocked(s *session, frame string) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if strings.HasPrefix(frame, "<auth") {
		c.logger.Debug("SEND <auth/>")
	} else {
		c.logger.Debug("SEND", zap.String("frame", frame))
	}
	if err := s.conn.WriteFrame(s.ctx, frame); err != nil {
		c.logger.Warn("Failed to write frame", zap.Error(err))
		return err
	}
	return nil
}

// teardownLocked detaches s from the client and releases its transport.
func (c *Client) teardownLocked(s *session) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	if c.sess == s {
		c.sess = nil
	}
}

// closed handles the end of the transport of s.
func (c *Client) closed(s *session, err error) {
	c.mu.Lock()
	defer c.unlock()

	if c.sess != s {
		return
	}
	if s.closeReason != nil {
		err = s.closeReason
	}
	c.teardownLocked(s)

	failure := fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	if s.result.complete(failure) {
		c.connectFailedLocked(s, failure)
	} else {
		c.logger.Warn("Connection lost", zap.Error(err))
	}
	c.setStatusLocked(StatusDisconnected)
	c.scheduleReconnectLocked()
}

// abort fails an attempt still being negotiated.
func (c *Client) abort(s *session, err error, reconnect bool) {
	c.mu.Lock()
	defer c.unlock()

	if c.sess != s || s.ready {
		return
	}
	if !s.result.complete(err) {
		return
	}
	c.connectFailedLocked(s, err)
	c.teardownLocked(s)
	c.setStatusLocked(StatusDisconnected)
	if reconnect {
		c.scheduleReconnectLocked()
	} else {
		c.failOutboxLocked()
	}
}

// failLocked rejects the attempt of s. The session is closed and no
// reconnection is scheduled.
func (c *Client) failLocked(s *session, err error) {
	s.failed = true
	if s.result.complete(err) {
		c.connectFailedLocked(s, err)
	}
	c.setStatusLocked(StatusError)
	c.writeLocked(s, codec.StreamCloseTag)
	c.teardownLocked(s)
	c.failOutboxLocked()
}

func (c *Client) connectFailedLocked(s *session, err error) {
	c.metrics.ConnectResult(resultLabel(err))
	c.logger.Error("Connection attempt failed", zap.Error(err), zap.Bool("reconnect", s.auto))
	if s.auto {
		return
	}

	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		c.noticeLocked("Authentication failed: check your JID and password", SeverityError)
	case errors.Is(err, ErrNoSupportedMechanism):
		c.noticeLocked("Server offers no supported authentication mechanism", SeverityError)
	case errors.Is(err, context.Canceled):
	default:
		c.noticeLocked("Connection failed: "+err.Error(), SeverityError)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ErrNoSupportedMechanism):
		return "no_mechanism"
	case errors.Is(err, context.Canceled), errors.Is(err, ErrDisconnected):
		return "aborted"
	default:
		return "error"
	}
}

func (c *Client) handleFrame(s *session, raw string) {
	c.mu.Lock()
	if c.sess != s || s.failed {
		c.mu.Unlock()
		return
	}

	c.logger.Debug("RECV", zap.String("frame", raw))
	frames, err := codec.Decode(raw)
	if err != nil {
		c.metrics.FrameDropped(dropReason(err))
		c.logger.Warn("Dropping inbound frame", zap.Error(err))
	}

	var dispatch []codec.Frame
	for _, f := range frames {
		if c.sess != s || s.failed {
			break
		}
		c.metrics.FrameReceived(frameKind(f))
		if c.processLocked(s, f) {
			dispatch = append(dispatch, f)
		}
	}
	c.unlock()

	for _, f := range dispatch {
		switch f := f.(type) {
		case codec.Message:
			c.handlers.Dispatch("message", f.Element)
		case codec.Presence:
			c.handlers.Dispatch("presence", f.Element)
		case codec.IQ:
			c.handlers.Dispatch("iq", f.Element)
		}
	}
}

// processLocked advances negotiation for f and reports whether f should be
// routed to the handler registry.
func (c *Client) processLocked(s *session, f codec.Frame) bool {
	switch f := f.(type) {
	case codec.StreamOpen:
		if f.ID != "" {
			s.streamID = f.ID
		}
	case codec.StreamClose:
		c.logger.Info("Stream closed by server")
		c.writeLocked(s, codec.StreamCloseTag)
		s.conn.Close()
	case codec.StreamError:
		c.logger.Error("Stream error", zap.String("condition", f.Condition), zap.String("text", f.Text))
		s.closeReason = fmt.Errorf("stream error: %s", f.Condition)
		s.conn.Close()
	case codec.Features:
		c.featuresLocked(s, f)
	case codec.Success:
		if s.authenticated {
			return false
		}
		s.authenticated = true
		c.setStatusLocked(StatusAuthenticated)
		c.logger.Info("Authenticated", zap.String("jid", s.account.Bare()))
		c.writeLocked(s, codec.StreamOpenTag(s.account.Domain))
	case codec.Failure:
		if s.ready {
			return false
		}
		c.failLocked(s, fmt.Errorf("%w: %s", ErrAuthenticationFailed, f.Condition))
	case codec.IQ:
		return c.iqLocked(s, f)
	case codec.Message, codec.Presence:
		return s.ready
	case codec.Unknown:
		c.logger.Debug("Ignoring element", zap.String("name", f.Element.Name()))
	}
	return false
}

func (c *Client) featuresLocked(s *session, f codec.Features) {
	if f.Mechanisms != nil && !s.authenticated {
		c.setStatusLocked(StatusAuthenticating)

		mech, err := sasl.Select(f.Mechanisms)
		if err != nil {
			c.failLocked(s, err)
			return
		}
		username := s.account.Local
		if username == "" {
			username = s.cfg.JID
		}
		auth, err := sasl.New(username, s.cfg.Password, mech)
		if err != nil {
			c.failLocked(s, err)
			return
		}
		payload, err := auth.InitialResponse()
		if err != nil {
			c.failLocked(s, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err))
			return
		}
		c.writeLocked(s, codec.Build("auth", codec.Attrs{
			"xmlns":     codec.NSSASL,
			"mechanism": mech,
		}).Text(payload).String())
		return
	}

	if !s.authenticated {
		c.logger.Debug("Ignoring features offered before authentication")
		return
	}

	s.sessionRequired = f.Session && !f.SessionOptional
	switch {
	case f.Bind && !s.hasBound:
		resource := s.cfg.resource()
		if resource == "" {
			resource = generateResource()
		}
		iq := codec.NewIQ(codec.Attrs{"type": string(stanza.SetIQ), "id": bindID})
		iq.Child("bind", codec.Attrs{"xmlns": codec.NSBind}).Child("resource", nil).Text(resource)
		c.writeLocked(s, iq.String())
	case s.hasBound && !s.ready:
		if s.sessionRequired {
			c.sendSessionLocked(s)
		} else {
			c.readyLocked(s)
		}
	}
}

func (c *Client) iqLocked(s *session, iq codec.IQ) bool {
	switch {
	case iq.ID == bindID && !s.hasBound:
		switch iq.Type {
		case string(stanza.ResultIQ):
			if iq.BoundJID == "" {
				c.failLocked(s, fmt.Errorf("%w: bind result without jid", ErrConnectionFailed))
				return false
			}
			s.bound = jid.Parse(iq.BoundJID)
			s.hasBound = true
			c.logger.Info("Resource bound", zap.String("jid", s.bound.Full()))

			user := chat.User{JID: s.bound, DisplayName: displayName(s.bound), Presence: "chat"}
			c.later(func() { c.users.SetCurrentUser(user) })

			if s.sessionRequired {
				c.sendSessionLocked(s)
			} else {
				c.readyLocked(s)
			}
		case string(stanza.ErrorIQ):
			c.failLocked(s, fmt.Errorf("%w: resource binding rejected", ErrConnectionFailed))
		}
		return false
	case iq.ID == sessionID && !s.ready:
		switch iq.Type {
		case string(stanza.ResultIQ):
			c.readyLocked(s)
		case string(stanza.ErrorIQ):
			c.failLocked(s, fmt.Errorf("%w: session establishment rejected", ErrConnectionFailed))
		}
		return false
	}
	return s.ready
}

func (c *Client) sendSessionLocked(s *session) {
	iq := codec.NewIQ(codec.Attrs{"type": string(stanza.SetIQ), "id": sessionID})
	iq.Child("session", codec.Attrs{"xmlns": codec.NSSession})
	c.writeLocked(s, iq.String())
}

func (c *Client) readyLocked(s *session) {
	s.ready = true
	if s.timer != nil {
		s.timer.Stop()
	}
	c.reconnectAttempts = 0
	c.installBuiltinsLocked()
	c.setStatusLocked(StatusConnected)
	c.writeLocked(s, codec.NewPresence(nil).String())
	c.flushOutboxLocked(s)

	s.result.complete(nil)
	c.metrics.ConnectResult(resultLabel(nil))
	c.logger.Info("Connected", zap.String("jid", s.bound.Full()), zap.String("stream", s.streamID))
	if s.auto {
		c.noticeLocked("Reconnected", SeverityInfo)
	}
}

func (c *Client) flushOutboxLocked(s *session) {
	pending := c.outbox
	c.outbox = nil
	for _, o := range pending {
		status := chat.StatusSent
		if err := c.writeLocked(s, o.stanza); err != nil {
			status = chat.StatusFailed
		}
		c.later(func() { c.conversations.UpdateMessageStatus(o.conversationID, o.messageID, status) })
	}
}

func (c *Client) failOutboxLocked() {
	pending := c.outbox
	c.outbox = nil
	for _, o := range pending {
		c.later(func() { c.conversations.UpdateMessageStatus(o.conversationID, o.messageID, chat.StatusFailed) })
	}
}

func displayName(j jid.JID) string {
	if j.Local != "" {
		return j.Local
	}
	return j.Bare()
}

func generateResource() string {
	return "wsroster-" + uuid.NewString()[:8]
}

func frameKind(f codec.Frame) string {
	switch f.(type) {
	case codec.StreamOpen:
		return "stream_open"
	case codec.StreamClose:
		return "stream_close"
	case codec.StreamError:
		return "stream_error"
	case codec.Features:
		return "features"
	case codec.Success:
		return "success"
	case codec.Failure:
		return "failure"
	case codec.IQ:
		return "iq"
	case codec.Message:
		return "message"
	case codec.Presence:
		return "presence"
	default:
		return "unknown"
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, codec.ErrUnsafeInput):
		return "unsafe_input"
	case errors.Is(err, codec.ErrUnsafeContent):
		return "unsafe_content"
	default:
		return "malformed"
	}
}
