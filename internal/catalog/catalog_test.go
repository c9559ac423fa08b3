package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/pricefeed/internal/api"
	"github.com/rickgao/pricefeed/internal/model"
)

// fakeSource returns a mutable instrument list.
type fakeSource struct {
	mu    sync.Mutex
	list  []model.Instrument
	err   error
	calls int
}

func (f *fakeSource) ListTickers(context.Context) ([]model.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Instrument(nil), f.list...), nil
}

func (f *fakeSource) set(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = f.list[:0]
	for _, id := range ids {
		f.list = append(f.list, model.Instrument{ID: id, Name: "Item " + id})
	}
}

func drain(ch <-chan Change) []Change {
	var out []Change
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestCatalog_InitialSync(t *testing.T) {
	src := &fakeSource{}
	src.set("ITEM_01", "ITEM_00")

	c := New(DefaultConfig(), src, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	ids := c.IDs()
	if len(ids) != 2 || ids[0] != "ITEM_00" || ids[1] != "ITEM_01" {
		t.Errorf("IDs = %v, want [ITEM_00 ITEM_01]", ids)
	}
	if _, ok := c.Lookup("ITEM_00"); !ok {
		t.Error("ITEM_00 not found")
	}
	if _, ok := c.Lookup("NOPE"); ok {
		t.Error("NOPE should not be found")
	}
	if c.LastSyncAt().IsZero() {
		t.Error("LastSyncAt not set")
	}

	changes := drain(c.Changes())
	if len(changes) != 2 {
		t.Fatalf("len(changes) = %d, want 2", len(changes))
	}
	for _, ch := range changes {
		if ch.EventType != ChangeAdded {
			t.Errorf("EventType = %q, want added", ch.EventType)
		}
	}
}

func TestCatalog_StartFails(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}

	c := New(DefaultConfig(), src, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected error from Start")
	}
}

func TestCatalog_Reconcile(t *testing.T) {
	src := &fakeSource{}
	src.set("ITEM_00", "ITEM_01")

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 10 * time.Millisecond
	c := New(cfg, src, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())
	drain(c.Changes())

	src.set("ITEM_01", "ITEM_02")

	got := map[string]string{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ch := <-c.Changes():
			got[ch.ID] = ch.EventType
		case <-deadline:
			t.Fatalf("changes = %v, want ITEM_00 removed and ITEM_02 added", got)
		}
	}

	if got["ITEM_00"] != ChangeRemoved {
		t.Errorf("ITEM_00 = %q, want removed", got["ITEM_00"])
	}
	if got["ITEM_02"] != ChangeAdded {
		t.Errorf("ITEM_02 = %q, want added", got["ITEM_02"])
	}
	if _, ok := c.Lookup("ITEM_00"); ok {
		t.Error("ITEM_00 still present")
	}
}

func TestCatalog_ReconcileErrorKeepsState(t *testing.T) {
	src := &fakeSource{}
	src.set("ITEM_00")

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 10 * time.Millisecond
	c := New(cfg, src, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	src.mu.Lock()
	src.err = errors.New("boom")
	src.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 after failed reconcile", c.Len())
	}
}

func TestCatalog_WithAPIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tickers" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Instrument{
			{ID: "ITEM_00", Name: "Item 00", CurrentPrice: 100},
		})
	}))
	defer server.Close()

	c := New(DefaultConfig(), api.NewClient(server.URL+"/api/v1"), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	inst, ok := c.Lookup("ITEM_00")
	if !ok {
		t.Fatal("ITEM_00 not found")
	}
	if inst.CurrentPrice != 100 {
		t.Errorf("CurrentPrice = %v, want 100", inst.CurrentPrice)
	}
}

func TestCatalog_StopWithoutStart(t *testing.T) {
	c := New(DefaultConfig(), &fakeSource{}, nil)
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop = %v, want nil", err)
	}
}
