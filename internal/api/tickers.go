package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/pricefeed/internal/model"
)

// ListTickers fetches every instrument.
func (c *Client) ListTickers(ctx context.Context) ([]model.Instrument, error) {
	var resp TickersResponse
	if err := c.get(ctx, "/tickers", nil, &resp); err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	return resp, nil
}

// GetTickerHistory fetches the instrument and its most recent points, oldest
// first. A limit <= 0 leaves the count to the server. Concurrent calls with
// the same arguments share one request; cancelling ctx abandons the wait
// but not the shared request.
func (c *Client) GetTickerHistory(ctx context.Context, id string, limit int) (*model.PriceHistory, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/tickers/" + url.PathEscape(id) + "/history"

	// The shared request outlives any one caller; a cancelled caller only
	// stops waiting.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path+"?"+query.Encode(), func() (any, error) {
		var resp HistoryResponse
		if err := c.get(fetchCtx, path, query, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get history %s: %w", id, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("get history %s: %w", id, res.Err)
	}
	v, shared := res.Val, res.Shared
	if shared {
		c.logger.Debug("shared history request", "ticker", id)
	}

	// Callers may mutate the result; hand each its own copy.
	src := v.(*model.PriceHistory)
	out := &model.PriceHistory{
		Ticker:  src.Ticker,
		History: append([]model.PricePoint(nil), src.History...),
	}
	return out, nil
}
