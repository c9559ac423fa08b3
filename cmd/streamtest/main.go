// streamtest opens one streaming connection and prints every frame to the
// console.
// Usage: go run ./cmd/streamtest --config configs/pricefeed.example.yaml --ticker ITEM_00
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rickgao/pricefeed/internal/config"
	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	ticker := flag.String("ticker", "ITEM_00", "instrument to stream")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Logging.Level = "debug"
	logger := cfg.Logging.NewLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcfg := connection.DefaultManagerConfig()
	mcfg.WSURL = cfg.Client.WSURL
	mcfg.ReconnectInterval = cfg.Client.ReconnectInterval
	mcfg.MaxReconnectAttempts = cfg.Client.MaxReconnectAttempts
	mcfg.ReadTimeout = cfg.Client.ReadTimeout

	mgr := connection.NewManager(mcfg, logger)

	mgr.On(router.TypePriceUpdate, router.PriceUpdateHandler(func(u model.PriceUpdate) {
		if *verbose {
			data, _ := json.MarshalIndent(u, "", "  ")
			fmt.Printf("[PRICE] %s\n", data)
			return
		}
		fmt.Printf("[PRICE] ticker=%s price=%.2f ts=%s\n", u.TickerID, u.Price, u.Timestamp)
	}))
	mgr.On(router.TypeError, router.ErrorHandler(func(msg string) {
		fmt.Printf("[ERROR] %s\n", msg)
	}))

	done := make(chan struct{})
	var once sync.Once
	mgr.Open(*ticker, func(s connection.State) {
		fmt.Printf("[STATE] %s\n", s)
		if s == connection.StateFailed || s == connection.StateClosed {
			once.Do(func() { close(done) })
		}
	})

	// Stats printer
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := mgr.Stats()
				logger.Info("stats",
					"state", st.State,
					"attempts", st.Attempts,
					"frames", st.FramesReceived,
					"parse_errors", st.ParseErrors,
					"dispatched", st.Dispatcher.FramesDispatched,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "ticker", *ticker)

	select {
	case <-ctx.Done():
	case <-done:
	}

	mgr.Close()
	logger.Info("stream closed")
}
