package connection

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pricefeed/internal/router"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrEmptySubject  = errors.New("empty subject")
)

// State is the lifecycle state of a Connection Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateFunc receives state transitions.
type StateFunc func(State)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full endpoint, e.g. ws://localhost:8000/ws/ITEM_00
	HandshakeTimeout time.Duration // Dial handshake timeout
	ReadTimeout      time.Duration // Max silence before the read fails (0 = no limit)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       1000,
	}
}

// ClientFactory builds the transport for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL                string        // Base WebSocket URL (e.g., ws://localhost:8000)
	ReconnectInterval    time.Duration // Fixed wait before each reconnect
	MaxReconnectAttempts int           // Consecutive reconnects without a successful open
	HandshakeTimeout     time.Duration
	ReadTimeout          time.Duration
	BufferSize           int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WSURL:                "ws://localhost:8000",
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		BufferSize:           1000,
	}
}

// clientConfig builds the transport config for subject.
func (c ManagerConfig) clientConfig(subject string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = Endpoint(c.WSURL, subject)
	if c.HandshakeTimeout > 0 {
		cfg.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.BufferSize > 0 {
		cfg.BufferSize = c.BufferSize
	}
	cfg.ReadTimeout = c.ReadTimeout
	return cfg
}

// Endpoint returns the streaming address for subject.
func Endpoint(base, subject string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(subject)
}

// ManagerStats provides statistics about a Connection Manager.
type ManagerStats struct {
	Session        uuid.UUID
	Subject        string
	State          State
	Attempts       int
	FramesReceived int64
	ParseErrors    int64
	Dispatcher     router.Stats
}
