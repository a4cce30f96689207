// The live hub delivers every newly ingested batch to all currently
// interested viewers. Delivery is best-effort: a slow or absent
// subscriber never blocks or slows ingestion, events are dropped rather
// than buffered unboundedly, and distribution failures are logged but
// never propagated to the ingestion caller.
package livehub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/promstats"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

// NewHub creates a hub. publisher may be nil when Redis is unavailable;
// push-channel delivery is then skipped.
func NewHub(publisher ChannelPublisher) *Hub {
	return &Hub{
		publisher:   publisher,
		subscribers: make(map[string]*Subscriber),
		wsClients:   make(map[*websocket.Conn]*wsClient),
	}
}

// Publish distributes one ingested batch: one PUBLISH per logical push
// channel, one envelope to every pull subscriber, one websocket
// broadcast. Per-channel ordering follows call order; calls for batches
// that failed persistence must not be made.
func (h *Hub) Publish(wide *types.WideReading) {
	now := time.Now().UTC()

	if h.publisher != nil {
		for _, channel := range types.Channels {
			envelope := types.NewLiveBatch(wide, channel, now)
			if err := h.publisher.Publish(channel, envelope.ToJsonBytes()); err != nil {
				log.WithFields(log.Fields{
					"channel":  channel,
					"batch_id": wide.BatchID,
				}).Warnf("Push channel publish failed: %v", err)
			}
		}
	}

	streamEnvelope := types.NewLiveBatch(wide, types.ChannelData, now)
	h.fanOut(streamEnvelope)
	h.broadcastToWebSockets(streamEnvelope)
}

// Subscribe registers a new pull subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.NewString(),
		Ch: make(chan types.LiveBatch, subscriberBuffer),
	}

	h.subMutex.Lock()
	h.subscribers[sub.ID] = sub
	h.subMutex.Unlock()

	promstats.LiveSubscribers.Inc()
	log.Debugf("Live subscriber %s registered", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber; its channel is left open so a
// racing Publish cannot panic, and is collected once unreferenced.
func (h *Hub) Unsubscribe(id string) {
	h.subMutex.Lock()
	_, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.subMutex.Unlock()

	if ok {
		promstats.LiveSubscribers.Dec()
		log.Debugf("Live subscriber %s removed", id)
	}
}

// SubscriberCount returns the number of registered pull subscribers.
func (h *Hub) SubscriberCount() int {
	h.subMutex.RLock()
	defer h.subMutex.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) fanOut(envelope types.LiveBatch) {
	h.subMutex.RLock()
	defer h.subMutex.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Ch <- envelope:
		default:
			// Subscriber buffer full; drop rather than block ingestion.
			promstats.LiveEventsDropped.Inc()
			log.Debugf("Dropped live event %s for slow subscriber %s",
				envelope.BatchID, sub.ID)
		}
	}
}

// AddWebSocketClient registers a websocket viewer and starts its writer
// goroutine. The connection is written to from that goroutine only.
func (h *Hub) AddWebSocketClient(conn *websocket.Conn) {
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		quit: make(chan struct{}),
	}

	h.wsClientsMutex.Lock()
	h.wsClients[conn] = client
	h.wsClientsMutex.Unlock()

	go client.writePump(h)
}

// RemoveWebSocketClient removes and closes a websocket viewer. Safe to
// call more than once for the same connection.
func (h *Hub) RemoveWebSocketClient(conn *websocket.Conn) {
	h.wsClientsMutex.Lock()
	client, ok := h.wsClients[conn]
	delete(h.wsClients, conn)
	h.wsClientsMutex.Unlock()

	if ok {
		close(client.quit)
	}
	conn.Close()
}

// SendToWebSocketClient enqueues one payload for a single viewer,
// through the same writer goroutine as broadcasts.
func (h *Hub) SendToWebSocketClient(conn *websocket.Conn, payload []byte) {
	h.wsClientsMutex.RLock()
	client, ok := h.wsClients[conn]
	h.wsClientsMutex.RUnlock()
	if !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Hub) broadcastToWebSockets(envelope types.LiveBatch) {
	data := envelope.ToJsonBytes()

	h.wsClientsMutex.RLock()
	var stalled []*websocket.Conn
	for conn, client := range h.wsClients {
		select {
		case client.send <- data:
		default:
			// Writer backlog full; the viewer is too slow to keep.
			stalled = append(stalled, conn)
		}
	}
	h.wsClientsMutex.RUnlock()

	for _, conn := range stalled {
		log.Debug("Dropping stalled websocket viewer")
		h.RemoveWebSocketClient(conn)
	}
}

// writePump is the single writer for one websocket connection.
func (c *wsClient) writePump(h *Hub) {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.RemoveWebSocketClient(c.conn)
				return
			}
		case <-c.quit:
			return
		}
	}
}
