// The query façade answers dashboard reads: latest value per station
// group, whole-dataset tag metrics, and bounded range queries that
// compose the downsampling engine over persisted rows.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/downsample"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

// ErrBadRange flags malformed range parameters. No partial data is
// returned alongside it.
var ErrBadRange = errors.New("invalid range parameters")

// LatestCache is the optional read-through cache for latest readings.
type LatestCache interface {
	GetLatest(group string) (*types.WideReading, error)
	CacheLatest(wide *types.WideReading) error
}

// MetricsSummary is the metrics() response shape.
type MetricsSummary struct {
	Tags      map[string]scadadb.TagMetrics `json:"tags"`
	LastBatch *scadadb.LastBatchInfo        `json:"last_batch,omitempty"`
}

type Facade struct {
	cfg   *config.ScadaAPIConfig
	cache LatestCache
}

// NewFacade builds the façade. cache may be nil; it is also ignored
// when query optimization is disabled in config.
func NewFacade(cfg *config.ScadaAPIConfig, cache LatestCache) *Facade {
	if !cfg.Performance.EnableQueryOptimization {
		cache = nil
	}
	return &Facade{cfg: cfg, cache: cache}
}

// Latest returns the most recent wide reading for a group, nil when the
// group has no data.
func (f *Facade) Latest(group string) (*types.WideReading, error) {
	if f.cache != nil {
		cached, err := f.cache.GetLatest(group)
		if err != nil {
			log.Warnf("Latest-reading cache read failed for %s: %v", group, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	wide, err := scadadb.GetLatestWideReading(group)
	if err != nil {
		return nil, err
	}
	if wide != nil && f.cache != nil {
		if err := f.cache.CacheLatest(wide); err != nil {
			log.Warnf("Latest-reading cache fill failed for %s: %v", group, err)
		}
	}
	return wide, nil
}

// StoreLatest refreshes the cache after a successful ingestion so the
// next Latest call skips the database.
func (f *Facade) StoreLatest(wide *types.WideReading) {
	if f.cache == nil || wide == nil {
		return
	}
	if err := f.cache.CacheLatest(wide); err != nil {
		log.Warnf("Latest-reading cache refresh failed for %s: %v", wide.Group, err)
	}
}

// Metrics summarizes all persisted tall readings. An empty dataset
// yields an empty summary, not an error.
func (f *Facade) Metrics() (MetricsSummary, error) {
	tags, last, err := scadadb.QueryTagMetrics()
	if err != nil {
		return MetricsSummary{}, err
	}
	return MetricsSummary{Tags: tags, LastBatch: last}, nil
}

// Range fetches ordered raw points for one tag in [start, end] and
// applies downsampling. The result never carries more than maxPoints
// real data points regardless of how many raw rows exist.
func (f *Facade) Range(tag string, start, end time.Time, maxPoints int) (types.Series, error) {
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", ErrBadRange)
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: start must not be after end", ErrBadRange)
	}

	series, err := scadadb.QueryTagRange(tag, start, end)
	if err != nil {
		return nil, err
	}

	opts := downsample.OptionsFromConfig(f.cfg, maxPoints)
	// A request-scoped cap is a hard contract: it binds even below the
	// configured no-op threshold and even with downsampling disabled.
	if maxPoints > 0 {
		opts.Enabled = true
		if maxPoints < opts.MinPointsThreshold {
			opts.MinPointsThreshold = maxPoints
		}
	}
	return downsample.Downsample(series, opts), nil
}

// History returns one page of wide readings plus the total row count.
func (f *Facade) History(filter scadadb.HistoryFilter) ([]types.WideReading, int, error) {
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return nil, 0, fmt.Errorf("%w: start must not be after end", ErrBadRange)
	}
	return scadadb.QueryWideHistory(filter)
}
