package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rickgao/pricefeed/internal/feed"
)

// Server serves the REST and WebSocket surfaces.
type Server struct {
	cfg      Config
	svc      TickerService
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a new Server.
func New(cfg Config, svc TickerService, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = def.APIPrefix
	}
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		hub:    hub,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET "+cfg.APIPrefix+"/tickers", s.handleTickers)
	s.mux.HandleFunc("GET "+cfg.APIPrefix+"/tickers/{id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /ws/{id}", s.handleWS)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Tickers())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := feed.DefaultConfig().MaxHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinHistoryLimit || n > MaxHistoryLimit {
			writeDetail(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("limit must be an integer between %d and %d", MinHistoryLimit, MaxHistoryLimit))
			return
		}
		limit = n
	}

	hist, err := s.svc.TickerHistory(r.Context(), id, limit)
	if errors.Is(err, feed.ErrTickerNotFound) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Ticker %s not found", id))
		return
	}
	if err != nil {
		s.logger.Error("history query failed", "ticker", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
