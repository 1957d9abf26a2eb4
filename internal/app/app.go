package app

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/meszmate/wsroster/internal/config"
	"github.com/meszmate/wsroster/internal/metrics"
	"github.com/meszmate/wsroster/internal/storage/sqlite"
	"github.com/meszmate/wsroster/internal/xmpp"
	"github.com/meszmate/wsroster/internal/xmpp/chat"
	"github.com/meszmate/wsroster/internal/xmpp/jid"
	"github.com/meszmate/wsroster/internal/xmpp/presence"
)

const maxNotices = 50

// Notice is a user-visible message from the client.
type Notice struct {
	Text     string
	Severity xmpp.Severity
	At       time.Time
}

// ConnectResultMsg is sent when a connection attempt completes
type ConnectResultMsg struct {
	JID string
	Err error
}

// SendMessageResultMsg is sent after attempting to send a message
type SendMessageResultMsg struct {
	MessageID string
	To        string
	Err       error
}

// App ties one account's client to its stores, storage and the UI.
type App struct {
	cfg     *config.Config
	account config.Account
	logger  *zap.Logger
	metrics *metrics.Metrics

	client    *xmpp.Client
	chats     *chat.Store
	presences *presence.Store
	storage   *sqlite.DB
	bus       *EventBus

	events chan EventMsg
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	notices []Notice
}

// New creates the app for account. The SQLite cache is opened in the data
// directory; failing to open it only disables persistence.
func New(cfg *config.Config, account config.Account, dialer xmpp.Dialer, logger *zap.Logger, m *metrics.Metrics) (*App, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:       cfg,
		account:   account,
		logger:    logger.With(zap.String("account", account.JID)),
		metrics:   m,
		chats:     chat.NewStore(),
		presences: presence.NewStore(),
		bus:       NewEventBus(),
		events:    make(chan EventMsg, 100),
		ctx:       ctx,
		cancel:    cancel,
	}

	if cfg.General.DataDir != "" && (cfg.Storage.SaveSessions || cfg.Storage.SavePresence) {
		storage, err := sqlite.New(cfg.General.DataDir)
		if err != nil {
			a.logger.Warn("Failed to initialize storage", zap.Error(err))
		} else {
			a.storage = storage
		}
	}

	a.client = xmpp.NewClient(dialer,
		xmpp.WithLogger(a.logger.Named("xmpp")),
		xmpp.WithMetrics(m),
		xmpp.WithUserSink(a.chats),
		xmpp.WithConversationSink(&conversationSink{Store: a.chats, app: a}),
		xmpp.WithPresenceSink(&presenceSink{app: a}),
		xmpp.WithNoticeSink(a),
		xmpp.WithStatusSink(a),
	)
	return a, nil
}

// Config returns the configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Account returns the account this app connects.
func (a *App) Account() config.Account {
	return a.account
}

// Client returns the protocol client.
func (a *App) Client() *xmpp.Client {
	return a.client
}

// Chats returns the conversation store.
func (a *App) Chats() *chat.Store {
	return a.chats
}

// Presences returns the contact presence store.
func (a *App) Presences() *presence.Store {
	return a.presences
}

// Bus returns the event bus.
func (a *App) Bus() *EventBus {
	return a.bus
}

// Events returns the channel of events destined for the UI.
func (a *App) Events() <-chan EventMsg {
	return a.events
}

// Init returns an initialization command
func (a *App) Init() tea.Cmd {
	if a.cfg.General.AutoConnect && a.account.Password != "" {
		return tea.Batch(a.ListenForEvents(), a.ConnectCmd())
	}
	return a.ListenForEvents()
}

// ListenForEvents waits for the next app event. The UI calls it again after
// each event it receives.
func (a *App) ListenForEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-a.events:
			return event
		case <-a.ctx.Done():
			return nil
		}
	}
}

// ConnectCmd connects in the background and reports a ConnectResultMsg.
func (a *App) ConnectCmd() tea.Cmd {
	return func() tea.Msg {
		err := a.Connect(a.ctx)
		return ConnectResultMsg{JID: a.account.JID, Err: err}
	}
}

// Connect opens the session. Without a configured resource the last bound
// resource is reused.
func (a *App) Connect(ctx context.Context) error {
	cfg := a.account.ConnectionConfig()
	if cfg.Resource == "" && jid.Parse(cfg.JID).Resource == "" {
		cfg.Resource = a.lastResource()
	}
	return a.client.Connect(ctx, cfg)
}

func (a *App) lastResource() string {
	if a.storage == nil || !a.cfg.Storage.SaveSessions {
		return ""
	}
	s, err := a.storage.GetSession(jid.Parse(a.account.JID).Bare())
	if err != nil {
		a.logger.Warn("Failed to load session", zap.Error(err))
		return ""
	}
	if s == nil {
		return ""
	}
	return s.Resource
}

// Disconnect closes the session.
func (a *App) Disconnect() error {
	return a.client.Disconnect()
}

// SendMessage sends body to the address to.
func (a *App) SendMessage(to, body string) (string, error) {
	return a.client.SendMessage(to, body)
}

// SendMessageCmd sends in the background and reports a SendMessageResultMsg.
func (a *App) SendMessageCmd(to, body string) tea.Cmd {
	return func() tea.Msg {
		id, err := a.SendMessage(to, body)
		return SendMessageResultMsg{MessageID: id, To: to, Err: err}
	}
}

// SendPresence broadcasts the user's availability.
func (a *App) SendPresence(show, status string) error {
	return a.client.SendPresence(presence.Show(show), status)
}

// Status returns the connection status.
func (a *App) Status() xmpp.Status {
	return a.client.Status()
}

// Notices returns recent notices, oldest first.
func (a *App) Notices() []Notice {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Notice, len(a.notices))
	copy(out, a.notices)
	return out
}

// LastSeen returns the last stored presence of contact.
func (a *App) LastSeen(contact string) (sqlite.LastPresence, bool) {
	if a.storage == nil {
		return sqlite.LastPresence{}, false
	}
	p, err := a.storage.GetContactLastPresence(a.accountKey(), jid.Parse(contact).Bare())
	if err != nil {
		a.logger.Warn("Failed to load last presence", zap.Error(err))
		return sqlite.LastPresence{}, false
	}
	if p == nil {
		return sqlite.LastPresence{}, false
	}
	return *p, true
}

// Close disconnects and releases resources.
func (a *App) Close() error {
	err := a.client.Disconnect()
	a.cancel()
	if a.storage != nil {
		err = errors.Join(err, a.storage.Close())
	}
	return err
}

// Notice implements xmpp.NoticeSink.
func (a *App) Notice(text string, severity xmpp.Severity) {
	n := Notice{Text: text, Severity: severity, At: time.Now()}

	a.mu.Lock()
	a.notices = append(a.notices, n)
	if len(a.notices) > maxNotices {
		a.notices = a.notices[len(a.notices)-maxNotices:]
	}
	a.mu.Unlock()

	switch severity {
	case xmpp.SeverityError:
		a.logger.Warn(text)
	default:
		a.logger.Info(text)
	}
	a.sendEvent(EventMsg{Type: EventNotice, Data: n})
}

// StatusChanged implements xmpp.StatusSink.
func (a *App) StatusChanged(s xmpp.Status) {
	if s == xmpp.StatusConnected {
		a.saveSession()
	}
	a.sendEvent(EventMsg{Type: EventStatus, Data: s})
}

func (a *App) saveSession() {
	if a.storage == nil || !a.cfg.Storage.SaveSessions {
		return
	}
	bound, ok := a.client.JID()
	if !ok {
		return
	}
	err := a.storage.SaveSession(sqlite.Session{
		Account:  a.accountKey(),
		Resource: bound.Resource,
		BoundJID: bound.Full(),
		StreamID: a.client.StreamID(),
	})
	if err != nil {
		a.logger.Warn("Failed to save session", zap.Error(err))
	}
}

func (a *App) accountKey() string {
	return jid.Parse(a.account.JID).Bare()
}

// sendEvent publishes event and queues it for the UI. Events are dropped
// when the UI falls behind.
func (a *App) sendEvent(event EventMsg) {
	a.bus.Publish(event)

	select {
	case a.events <- event:
	default:
		a.logger.Debug("Dropping UI event", zap.Int("type", int(event.Type)))
	}
}

// conversationSink records conversations in the store and notifies the UI.
type conversationSink struct {
	*chat.Store
	app *App
}

func (s *conversationSink) AppendMessage(m chat.Message) {
	s.Store.AppendMessage(m)
	s.app.sendEvent(EventMsg{Type: EventMessage, Data: m})
}

func (s *conversationSink) UpdateMessageStatus(conversationID, messageID string, status chat.Status) bool {
	ok := s.Store.UpdateMessageStatus(conversationID, messageID, status)
	if ok {
		s.app.sendEvent(EventMsg{Type: EventMessageStatus, Data: MessageStatusUpdate{
			ConversationID: conversationID,
			MessageID:      messageID,
			Status:         status,
		}})
	}
	return ok
}

// MessageStatusUpdate is the payload of EventMessageStatus.
type MessageStatusUpdate struct {
	ConversationID string
	MessageID      string
	Status         chat.Status
}

// presenceSink updates the presence store and the last-seen cache.
type presenceSink struct {
	app *App
}

func (s *presenceSink) UpdatePresence(u presence.Update) {
	a := s.app
	a.presences.UpdatePresence(u)

	if a.storage != nil && a.cfg.Storage.SavePresence && (u.Available() || u.Unavailable()) {
		err := a.storage.SaveContactLastPresence(a.accountKey(), sqlite.LastPresence{
			ContactJID: u.From.Bare(),
			Show:       string(u.Show),
			StatusMsg:  u.Status,
			Available:  u.Available(),
		})
		if err != nil {
			a.logger.Warn("Failed to save presence", zap.Error(err), zap.String("contact", u.From.Bare()))
		}
	}
	a.sendEvent(EventMsg{Type: EventPresence, Data: u})
}
