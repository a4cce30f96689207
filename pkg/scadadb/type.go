package scadadb

import "time"

// TagMetrics summarizes every persisted tall reading for one tag.
type TagMetrics struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// LastBatchInfo identifies the most recently ingested batch.
type LastBatchInfo struct {
	BatchID   string    `json:"batch_id"`
	Group     string    `json:"group"`
	Timestamp time.Time `json:"timestamp"`
}

// HistorySort orders history pages by device timestamp.
type HistorySort string

const (
	HistorySortAsc  HistorySort = "asc"
	HistorySortDesc HistorySort = "desc"
)

// HistoryFilter selects a page of wide readings.
type HistoryFilter struct {
	Group   string
	Start   time.Time // zero value means unbounded
	End     time.Time // zero value means unbounded
	Search  string    // matched against station_group and batch_id
	Sort    HistorySort
	Page    int // 1-based
	PerPage int
}
