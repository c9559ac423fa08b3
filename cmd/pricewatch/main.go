// pricewatch observes one instrument and redraws its live chart in the
// terminal. Typing another ticker id on stdin switches the subject; an
// empty line stops observing.
// Usage: go run ./cmd/pricewatch --config configs/pricefeed.example.yaml --ticker ITEM_00
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/catalog"
	"github.com/rickgao/pricefeed/internal/config"
	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/render"
	"github.com/rickgao/pricefeed/internal/subscription"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	ticker := flag.String("ticker", "", "instrument to observe (defaults to the first listed)")
	lang := flag.String("lang", "en", "language tag for number formatting")
	width := flag.Int("width", render.DefaultWidth, "sparkline width")
	flag.Parse()

	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// Logs go to stderr so they do not interleave with the chart.
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	tag, err := language.Parse(*lang)
	if err != nil {
		logger.Error("invalid language tag", "lang", *lang, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.Client.APIURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Client.RequestTimeout),
		api.WithRetries(cfg.Client.MaxRetries, time.Second),
	)

	cat := catalog.New(catalog.DefaultConfig(), client, logger)
	if err := cat.Start(ctx); err != nil {
		logger.Error("failed to load instruments", "error", err)
		os.Exit(1)
	}
	defer cat.Stop(context.Background())

	ids := cat.IDs()
	if len(ids) == 0 {
		logger.Error("server has no tickers")
		os.Exit(1)
	}
	logger.Info("available tickers", "ids", strings.Join(ids, ","))

	subject := *ticker
	if subject == "" {
		subject = ids[0]
	}

	mcfg := connection.DefaultManagerConfig()
	mcfg.WSURL = cfg.Client.WSURL
	mcfg.ReconnectInterval = cfg.Client.ReconnectInterval
	mcfg.MaxReconnectAttempts = cfg.Client.MaxReconnectAttempts
	mcfg.ReadTimeout = cfg.Client.ReadTimeout

	changed := make(chan subscription.State, 1)
	coord := subscription.New(subscription.Config{
		HistoryCapacity: cfg.Client.HistoryCapacity,
		SeedLimit:       cfg.Client.SeedLimit,
	}, client, subscription.ManagerFactory(mcfg, logger), logger,
		subscription.WithOnChange(func(s subscription.State) {
			// Keep only the newest state.
			select {
			case <-changed:
			default:
			}
			select {
			case changed <- s:
			default:
			}
		}),
	)
	defer coord.Close()

	if err := coord.Observe(subject); err != nil {
		logger.Error("observe failed", "subject", subject, "error", err)
		os.Exit(1)
	}

	go readSubjects(ctx, coord, cat, logger)
	go logCatalogChanges(ctx, cat, logger)

	chart := render.NewChart()
	chart.Width = *width
	chart.Formatter = render.NewFormatter(tag)

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case s := <-changed:
			fmt.Print("\033[H\033[2J")
			fmt.Print(chart.Render(s))
		}
	}
}

func readSubjects(ctx context.Context, coord *subscription.Coordinator, cat *catalog.Catalog, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		subject := strings.TrimSpace(scanner.Text())
		if _, ok := cat.Lookup(subject); subject != "" && !ok {
			logger.Warn("unknown ticker", "subject", subject, "available", strings.Join(cat.IDs(), ","))
			continue
		}
		if err := coord.Observe(subject); err != nil {
			logger.Warn("observe failed", "subject", subject, "error", err)
			return
		}
	}
}

func logCatalogChanges(ctx context.Context, cat *catalog.Catalog, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-cat.Changes():
			logger.Info("catalog change", "id", ch.ID, "event", ch.EventType)
		}
	}
}
