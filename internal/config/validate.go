package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with /, got %q", c.Server.APIPrefix)
	}
	if c.Server.SendBuffer < 1 {
		return errors.New("server.send_buffer must be >= 1")
	}

	if c.Feed.TickerCount < 1 || c.Feed.TickerCount > 100 {
		return fmt.Errorf("feed.ticker_count must be between 1 and 100, got %d", c.Feed.TickerCount)
	}
	if c.Feed.UpdateInterval <= 0 {
		return errors.New("feed.update_interval must be > 0")
	}
	if c.Feed.PriceChangeRange < 0 {
		return errors.New("feed.price_change_range must be >= 0")
	}
	if c.Feed.InitialPriceMin <= 0 {
		return errors.New("feed.initial_price_min must be > 0")
	}
	if c.Feed.InitialPriceMin > c.Feed.InitialPriceMax {
		return fmt.Errorf("feed.initial_price_min (%v) cannot exceed initial_price_max (%v)",
			c.Feed.InitialPriceMin, c.Feed.InitialPriceMax)
	}
	if c.Feed.MaxHistorySize < 1 {
		return errors.New("feed.max_history_size must be >= 1")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverMemory, DriverPostgres, c.Storage.Driver)
	}

	if c.Client.SeedLimit < 1 || c.Client.SeedLimit > 1000 {
		return fmt.Errorf("client.seed_limit must be between 1 and 1000, got %d", c.Client.SeedLimit)
	}
	if c.Client.HistoryCapacity < 1 {
		return errors.New("client.history_capacity must be >= 1")
	}
	if c.Client.MaxReconnectAttempts < 0 {
		return errors.New("client.max_reconnect_attempts must be >= 0")
	}
	if c.Client.ReconnectInterval <= 0 {
		return errors.New("client.reconnect_interval must be > 0")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
