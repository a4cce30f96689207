package livehub

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

// subscriberBuffer is how many envelopes a pull subscriber may lag
// before events are dropped for it.
const subscriberBuffer = 16

// wsSendBuffer is how many payloads a websocket viewer may lag before
// it is disconnected.
const wsSendBuffer = 64

// Subscriber is one pull-stream viewer. Events arrive on Ch; a full
// buffer drops events for this subscriber only.
type Subscriber struct {
	ID string
	Ch chan types.LiveBatch
}

// ChannelPublisher is the push-mode broadcast sink (Redis PUBLISH in
// production). Implementations must not block ingestion.
type ChannelPublisher interface {
	Publish(channel string, payload []byte) error
}

// wsClient is one websocket viewer. All frame writes go through send
// and are performed by a single writer goroutine, since the underlying
// connection supports only one concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
}

// Hub fans newly ingested batches out to pull subscribers, websocket
// clients and the push channels. It owns no durable state.
type Hub struct {
	publisher ChannelPublisher

	subMutex    sync.RWMutex
	subscribers map[string]*Subscriber

	wsClientsMutex sync.RWMutex
	wsClients      map[*websocket.Conn]*wsClient
}
