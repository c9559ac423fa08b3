package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/feed"
	"github.com/rickgao/pricefeed/internal/subscription"
)

// TestEndToEnd runs the generator, server and a subscription coordinator
// against each other over real HTTP and WebSocket connections.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	hub := NewHub(64, nil)
	repo := feed.NewMemoryRepository(feed.DefaultMaxHistory)

	genCfg := feed.DefaultConfig()
	genCfg.TickerCount = 2
	genCfg.UpdateInterval = 20 * time.Millisecond
	gen := feed.NewGenerator(genCfg, repo, hub, nil, feed.WithSeed(7))
	if err := gen.Start(ctx); err != nil {
		t.Fatalf("generator start: %v", err)
	}
	defer gen.Stop(ctx)

	svc := feed.NewService(gen, repo)
	srv := httptest.NewServer(New(DefaultConfig(), svc, hub, nil).Handler())
	defer srv.Close()
	defer hub.Close()

	// Let some history accumulate before seeding.
	time.Sleep(100 * time.Millisecond)

	client := api.NewClient(srv.URL + "/api/v1")
	tickers, err := client.ListTickers(ctx)
	if err != nil {
		t.Fatalf("ListTickers: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("len(tickers) = %d, want 2", len(tickers))
	}

	mcfg := connection.DefaultManagerConfig()
	mcfg.WSURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	mcfg.ReconnectInterval = 50 * time.Millisecond

	coord := subscription.New(subscription.DefaultConfig(), client, subscription.ManagerFactory(mcfg, nil), nil)
	defer coord.Close()

	subject := tickers[0].ID
	if err := coord.Observe(subject); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	var seeded int
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := coord.Snapshot()
		if st.Instrument != nil && seeded == 0 {
			seeded = len(st.History)
			if seeded == 0 {
				t.Fatal("seed returned no history")
			}
		}
		if seeded > 0 && st.ConnectionState == connection.StateOpen && len(st.History) > seeded+2 {
			if st.Instrument.ID != subject {
				t.Errorf("instrument = %s, want %s", st.Instrument.ID, subject)
			}
			last := st.History[len(st.History)-1]
			if st.Instrument.CurrentPrice != last.Value {
				t.Errorf("current price %v != last point %v", st.Instrument.CurrentPrice, last.Value)
			}
			if st.Error != "" {
				t.Errorf("unexpected error %q", st.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("live updates never arrived: %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Unknown subjects surface the seed error and the stream is rejected.
	if err := coord.Observe("NOPE"); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		st := coord.Snapshot()
		if st.Subject == "NOPE" && !st.Loading && st.Error != "" {
			if st.Instrument != nil {
				t.Errorf("instrument = %+v, want nil", st.Instrument)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("seed error never surfaced: %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
