package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const pingInterval = 30 * time.Second

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "ticker", id, "error", err)
		return
	}
	defer conn.Close()

	if !s.svc.Exists(id) {
		msg := websocket.FormatCloseMessage(CloseTickerNotFound, "Ticker not found")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
		s.logger.Info("rejected stream for unknown ticker", "ticker", id)
		return
	}

	sub := s.hub.Register(id)
	defer s.hub.Unregister(sub)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		// Inbound messages are ignored; reading surfaces the client close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.writePump(conn, sub, readDone)
}

func (s *Server) writePump(conn *websocket.Conn, sub *Subscriber, readDone <-chan struct{}) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case data := <-sub.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "subscriber", sub.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-sub.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
			return
		case <-readDone:
			return
		}
	}
}
