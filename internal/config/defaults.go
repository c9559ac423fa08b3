package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost                 = "0.0.0.0"
	DefaultPort                 = 8000
	DefaultAPIPrefix            = "/api/v1"
	DefaultWriteTimeout         = 10 * time.Second
	DefaultSendBuffer           = 64
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultTickerCount          = 10
	DefaultUpdateInterval       = 1 * time.Second
	DefaultPriceChangeRange     = 1.0
	DefaultInitialPriceMin      = 50.0
	DefaultInitialPriceMax      = 200.0
	DefaultMaxHistorySize       = 1000
	DefaultConsecutiveErrors    = 10
	DefaultDriver               = DriverMemory
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultAPIURL               = "http://localhost:8000/api/v1"
	DefaultWSURL                = "ws://localhost:8000"
	DefaultSeedLimit            = 100
	DefaultHistoryCapacity      = 100
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultRequestTimeout       = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultCORSOrigins are the origins allowed when none are configured.
var DefaultCORSOrigins = []string{"http://localhost:3000", "http://frontend:3000"}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = DefaultAPIPrefix
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = append([]string(nil), DefaultCORSOrigins...)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Feed defaults
	if c.Feed.TickerCount == 0 {
		c.Feed.TickerCount = DefaultTickerCount
	}
	if c.Feed.UpdateInterval == 0 {
		c.Feed.UpdateInterval = DefaultUpdateInterval
	}
	if c.Feed.PriceChangeRange == 0 {
		c.Feed.PriceChangeRange = DefaultPriceChangeRange
	}
	if c.Feed.InitialPriceMin == 0 {
		c.Feed.InitialPriceMin = DefaultInitialPriceMin
	}
	if c.Feed.InitialPriceMax == 0 {
		c.Feed.InitialPriceMax = DefaultInitialPriceMax
	}
	if c.Feed.MaxHistorySize == 0 {
		c.Feed.MaxHistorySize = DefaultMaxHistorySize
	}
	if c.Feed.ConsecutiveErrors == 0 {
		c.Feed.ConsecutiveErrors = DefaultConsecutiveErrors
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultDriver
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Client defaults
	if c.Client.APIURL == "" {
		c.Client.APIURL = DefaultAPIURL
	}
	if c.Client.WSURL == "" {
		c.Client.WSURL = DefaultWSURL
	}
	if c.Client.SeedLimit == 0 {
		c.Client.SeedLimit = DefaultSeedLimit
	}
	if c.Client.HistoryCapacity == 0 {
		c.Client.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.Client.ReconnectInterval == 0 {
		c.Client.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Client.MaxReconnectAttempts == 0 {
		c.Client.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = DefaultRequestTimeout
	}
	if c.Client.MaxRetries == 0 {
		c.Client.MaxRetries = DefaultMaxRetries
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
