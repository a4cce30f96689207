package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/normalizer"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

// sseWriteTimeout bounds one stream write; a stalled viewer is
// abandoned rather than allowed to hold hub resources.
const sseWriteTimeout = 10 * time.Second

// StreamHandler serves the live pull stream: a long-lived
// text/event-stream connection carrying one event per ingested batch
// plus a periodic heartbeat so intermediaries keep the connection open
// and viewers can detect liveness.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Viewer disconnected; resources release without any
			// ingestion-side acknowledgment.
			return

		case envelope := <-sub.Ch:
			if err := writeSSEEvent(w, rc, envelope.EventType, envelope.ToJsonBytes()); err != nil {
				log.Debugf("Stream write to %s failed: %v", sub.ID, err)
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if err := writeSSEEvent(w, rc, "heartbeat", []byte("{}")); err != nil {
				log.Debugf("Stream heartbeat to %s failed: %v", sub.ID, err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data []byte) error {
	rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Channels are public; no origin restriction
	},
}

// WebSocketHandler upgrades a viewer connection and registers it for
// push broadcasts. The read loop exists only to detect disconnect.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.hub.AddWebSocketClient(conn)

	group := r.URL.Query().Get("group")
	if group == "" {
		group = normalizer.DefaultGroup
	}

	// Send current reading immediately if available
	if latest, err := s.facade.Latest(group); err == nil && latest != nil {
		envelope := types.NewLiveBatch(latest, types.ChannelData, time.Now().UTC())
		s.hub.SendToWebSocketClient(conn, envelope.ToJsonBytes())
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.RemoveWebSocketClient(conn)
			break
		}
	}
}
