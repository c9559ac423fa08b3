package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pricefeed/internal/router"
)

// Manager owns the streaming connection for one subject at a time. It
// reconnects after unexpected closures at a fixed interval, up to
// MaxReconnectAttempts consecutive attempts without a successful open, and
// never reconnects after Close.
type Manager struct {
	cfg        ManagerConfig
	logger     *slog.Logger
	dispatcher *router.Dispatcher
	newClient  ClientFactory
	session    uuid.UUID

	mu            sync.Mutex
	state         State
	subject       string
	onState       StateFunc
	client        Client
	cancel        context.CancelFunc
	gen           uint64 // bumped by every Open, reconnect and Close
	attempts      int
	closedByOwner bool
	retryTimer    *time.Timer

	frames      atomic.Int64
	parseErrors atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the transport constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.newClient = f
		}
	}
}

// WithDispatcher shares an existing dispatcher instead of creating one.
func WithDispatcher(d *router.Dispatcher) Option {
	return func(m *Manager) {
		if d != nil {
			m.dispatcher = d
		}
	}
}

// attempt is one connection attempt bound to a generation.
type attempt struct {
	gen     uint64
	ctx     context.Context
	client  Client
	onState StateFunc
	subject string
	prev    Client
}

// NewManager creates a new connection manager in the Idle state.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.WSURL == "" {
		cfg.WSURL = def.WSURL
	}

	session := uuid.New()
	m := &Manager{
		cfg:       cfg,
		logger:    logger.With("component", "connection", "session", session.String()),
		newClient: NewClient,
		session:   session,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatcher == nil {
		m.dispatcher = router.NewDispatcher(m.logger)
	}
	return m
}

// Open connects to subject. Any existing transport is torn down first and its
// events are discarded. onState is invoked with Connecting before Open
// returns, and afterwards from the connection goroutine.
func (m *Manager) Open(subject string, onState StateFunc) {
	if subject == "" {
		m.logger.Warn("ignoring open without subject")
		return
	}

	m.mu.Lock()
	m.closedByOwner = false
	m.attempts = 0
	a := m.beginLocked(subject, onState)
	m.mu.Unlock()

	m.logger.Info("opening stream", "subject", subject, "url", Endpoint(m.cfg.WSURL, subject))
	m.start(a)
}

// Close tears the connection down for good: a pending reconnect never fires,
// an in-flight dial is abandoned and all handlers are cleared. The state
// callback is not invoked. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closedByOwner = true
	m.gen++
	m.stopRetryLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	c := m.client
	m.client = nil
	wasActive := m.state == StateConnecting || m.state == StateOpen
	m.state = StateClosed
	subject := m.subject
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}
	m.dispatcher.Clear()

	if wasActive {
		m.logger.Info("stream closed by owner", "subject", subject)
	}
}

// On registers h for frames of msgType. Handlers survive reconnects.
func (m *Manager) On(msgType string, h *router.Handler) {
	m.dispatcher.Register(msgType, h)
}

// Off deregisters h for msgType.
func (m *Manager) Off(msgType string, h *router.Handler) {
	m.dispatcher.Deregister(msgType, h)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subject returns the subject of the latest Open.
func (m *Manager) Subject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subject
}

// Attempts returns the reconnect attempts made since the last successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// IsConnected reports whether the stream is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// Stats returns manager statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		Session:  m.session,
		Subject:  m.subject,
		State:    m.state,
		Attempts: m.attempts,
	}
	m.mu.Unlock()

	stats.FramesReceived = m.frames.Load()
	stats.ParseErrors = m.parseErrors.Load()
	stats.Dispatcher = m.dispatcher.Stats()
	return stats
}

// beginLocked detaches the current transport and prepares a new attempt.
func (m *Manager) beginLocked(subject string, onState StateFunc) attempt {
	m.stopRetryLocked()
	if m.cancel != nil {
		m.cancel()
	}
	prev := m.client

	m.gen++
	m.subject = subject
	m.onState = onState
	m.state = StateConnecting

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.client = m.newClient(m.cfg.clientConfig(subject), m.logger)

	return attempt{
		gen:     m.gen,
		ctx:     ctx,
		client:  m.client,
		onState: onState,
		subject: subject,
		prev:    prev,
	}
}

func (m *Manager) start(a attempt) {
	if a.prev != nil {
		a.prev.Close()
	}
	if a.onState != nil {
		a.onState(StateConnecting)
	}
	go m.run(a)
}

// run drives one attempt from dial to closure.
func (m *Manager) run(a attempt) {
	logger := m.logger.With("subject", a.subject)

	if err := a.client.Connect(a.ctx); err != nil {
		if a.ctx.Err() != nil {
			return
		}
		logger.Warn("connection failed", "error", err)
		m.transition(a.gen, StateFailed)
		m.closed(a.gen)
		return
	}

	m.mu.Lock()
	if a.gen != m.gen {
		m.mu.Unlock()
		a.client.Close()
		return
	}
	m.attempts = 0
	m.state = StateOpen
	cb := m.onState
	m.mu.Unlock()

	logger.Info("stream open")
	if cb != nil {
		cb(StateOpen)
	}

	for msg := range a.client.Messages() {
		if !m.current(a.gen) {
			return
		}
		m.handleFrame(msg)
	}

	var err error
	select {
	case err = <-a.client.Errors():
	default:
	}
	if !m.current(a.gen) {
		return
	}

	if isTransportError(err) {
		logger.Warn("stream error", "error", err)
		m.transition(a.gen, StateFailed)
	} else {
		logger.Info("stream closed by server", "reason", err)
	}
	m.closed(a.gen)
}

func (m *Manager) handleFrame(msg TimestampedMessage) {
	m.frames.Add(1)
	if err := m.dispatcher.DispatchRaw(msg.Data, msg.ReceivedAt); err != nil {
		m.parseErrors.Add(1)
		m.logger.Warn("dropping malformed frame", "error", err, "bytes", len(msg.Data))
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// transition sets st if gen is still current and notifies the callback.
func (m *Manager) transition(gen uint64, st State) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.state = st
	cb := m.onState
	m.mu.Unlock()

	if cb != nil {
		cb(st)
	}
	return true
}

// closed handles the end of a connection and applies the reconnect policy.
func (m *Manager) closed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	c := m.client
	m.client = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	cb := m.onState
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}
	if cb != nil {
		cb(StateClosed)
	}
	m.scheduleReconnect(gen)
}

func (m *Manager) scheduleReconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closedByOwner || m.state != StateClosed {
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("giving up on stream",
			"subject", m.subject,
			"attempts", m.attempts,
		)
		return
	}

	m.attempts++
	m.logger.Info("scheduling reconnect",
		"subject", m.subject,
		"attempt", m.attempts,
		"max", m.cfg.MaxReconnectAttempts,
		"in", m.cfg.ReconnectInterval,
	)
	m.retryTimer = time.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.reconnect(gen)
	})
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closedByOwner {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.logger.Info("attempting to reconnect",
		"subject", m.subject,
		"attempt", m.attempts,
		"max", m.cfg.MaxReconnectAttempts,
	)
	a := m.beginLocked(m.subject, m.onState)
	m.mu.Unlock()

	m.start(a)
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}
