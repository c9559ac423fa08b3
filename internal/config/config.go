package config

import "time"

// Config is the root configuration shared by the server and the client.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Feed    FeedConfig    `yaml:"feed"`
	Storage StorageConfig `yaml:"storage"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP and WebSocket server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	APIPrefix       string        `yaml:"api_prefix"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // Per-frame WebSocket write deadline
	SendBuffer      int           `yaml:"send_buffer"`      // Queued frames per subscriber
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// FeedConfig holds price generation settings.
type FeedConfig struct {
	TickerCount       int           `yaml:"ticker_count"`
	UpdateInterval    time.Duration `yaml:"update_interval"`
	PriceChangeRange  float64       `yaml:"price_change_range"` // +/- per update
	InitialPriceMin   float64       `yaml:"initial_price_min"`
	InitialPriceMax   float64       `yaml:"initial_price_max"`
	MaxHistorySize    int           `yaml:"max_history_size"` // Per ticker
	ConsecutiveErrors int           `yaml:"consecutive_errors"`
}

// StorageConfig selects the price repository.
type StorageConfig struct {
	Driver   string   `yaml:"driver"` // memory or postgres
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ClientConfig holds settings for the streaming client.
type ClientConfig struct {
	APIURL               string        `yaml:"api_url"`
	WSURL                string        `yaml:"ws_url"`
	SeedLimit            int           `yaml:"seed_limit"`
	HistoryCapacity      int           `yaml:"history_capacity"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)
