package types

import (
	"encoding/json"
	"time"
)

// Live push channel names. All currently public (unauthenticated).
const (
	ChannelData       = "scada-data"
	ChannelRealtime   = "scada-realtime"
	ChannelBatch      = "scada-batch"
	ChannelAggregated = "scada-aggregated"
)

// Channels lists every logical push channel one ingestion publishes to.
var Channels = []string{ChannelData, ChannelRealtime, ChannelBatch, ChannelAggregated}

// EventTypeDataReceived identifies a new-batch live event.
const EventTypeDataReceived = "scada.data.received"

// LiveBatch is the ephemeral envelope broadcast to subscribers after a
// batch is ingested. Create-on-ingest, deliver best-effort, discard.
type LiveBatch struct {
	Data      *WideReading `json:"data"`
	Timestamp string       `json:"timestamp"`
	Channel   string       `json:"channel"`
	BatchID   string       `json:"batchId"`
	EventType string       `json:"eventType"`
}

// NewLiveBatch builds the envelope for one channel.
func NewLiveBatch(wide *WideReading, channel string, emittedAt time.Time) LiveBatch {
	return LiveBatch{
		Data:      wide,
		Timestamp: emittedAt.UTC().Format(time.RFC3339),
		Channel:   channel,
		BatchID:   wide.BatchID,
		EventType: EventTypeDataReceived,
	}
}

// ToJsonBytes serializes the envelope, returning nil on failure.
func (b LiveBatch) ToJsonBytes() []byte {
	data, err := json.Marshal(b)
	if err != nil {
		return nil
	}
	return data
}
