package api

import "github.com/rickgao/pricefeed/internal/model"

// HistoryResponse from GET /tickers/{id}/history
type HistoryResponse = model.PriceHistory

// TickersResponse from GET /tickers
type TickersResponse = []model.Instrument
