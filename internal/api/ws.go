package api

import (
	"net/http"
	"time"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleCyclesWS streams the summary of every new cycle as a JSON text
// message. The latest cycle, if any, is sent on connect.
func (s *Server) handleCyclesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, cycles := s.p.Subscribe()
	defer s.p.Unsubscribe(id)

	// reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if res, ok := s.p.Latest(); ok {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(res.Summarize()); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case res, ok := <-cycles:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(res.Summarize()); err != nil {
				monitoring.Debugf("ws: dropping client: %v", err)
				return
			}
		}
	}
}
