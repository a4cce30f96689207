package query

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "query-test-*")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	os.Setenv("SCADA_DATA_DIR", dir)

	scadadb.InitializeDatabase()

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func testConfig() *config.ScadaAPIConfig {
	return &config.ScadaAPIConfig{
		Downsampling: config.DownsamplingConfig{
			MaxPointsPerSeries: 1000,
			Enabled:            true,
			MinPointsThreshold: 1000,
		},
		Processing: config.ProcessingConfig{
			GapThresholdSeconds: 30,
		},
		Performance: config.PerformanceConfig{
			EnableQueryOptimization: true,
		},
	}
}

var seedTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func seedTag(t *testing.T, group, tag string, n int, step time.Duration) {
	t.Helper()
	var batches []types.NormalizedBatch
	for i := 0; i < n; i++ {
		ts := seedTime.Add(time.Duration(i) * step)
		value := float64(i)
		wide := &types.WideReading{Timestamp: ts, BatchID: fmt.Sprintf("%s-%d", tag, i), Group: group}
		batches = append(batches, types.NormalizedBatch{
			Wide: wide,
			Talls: []types.TallReading{{
				Timestamp: ts, BatchID: wide.BatchID, Group: group, Tag: tag, Value: value,
			}},
		})
	}
	if err := scadadb.InsertNormalizedBatches(batches); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}
}

// fakeCache records lookups and fills for the cache-aside tests.
type fakeCache struct {
	store map[string]*types.WideReading
	gets  int
	puts  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]*types.WideReading)}
}

func (c *fakeCache) GetLatest(group string) (*types.WideReading, error) {
	c.gets++
	return c.store[group], nil
}

func (c *fakeCache) CacheLatest(wide *types.WideReading) error {
	c.puts++
	c.store[wide.Group] = wide
	return nil
}

func TestRangeValidation(t *testing.T) {
	facade := NewFacade(testConfig(), nil)
	start := seedTime
	end := seedTime.Add(time.Hour)

	cases := []struct {
		name       string
		tag        string
		start, end time.Time
	}{
		{"missing tag", "", start, end},
		{"zero start", "temperature", time.Time{}, end},
		{"zero end", "temperature", start, time.Time{}},
		{"inverted window", "temperature", end, start},
	}
	for _, tc := range cases {
		_, err := facade.Range(tc.tag, tc.start, tc.end, 100)
		if !errors.Is(err, ErrBadRange) {
			t.Errorf("%s: expected ErrBadRange, got %v", tc.name, err)
		}
	}
}

func TestRangeBoundsLargeDataset(t *testing.T) {
	tag := "range_large_tag"
	seedTag(t, "range-large", tag, 2000, time.Second)

	facade := NewFacade(testConfig(), nil)
	series, err := facade.Range(tag, seedTime, seedTime.Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if got := series.DataPointCount(); got == 0 || got > 50 {
		t.Errorf("Expected 1..50 data points, got %d", got)
	}
}

func TestRangeCapBindsBelowNoOpThreshold(t *testing.T) {
	// Fewer rows than the configured no-op threshold; the request cap
	// must still bound the result.
	tag := "range_small_tag"
	seedTag(t, "range-small", tag, 200, time.Second)

	facade := NewFacade(testConfig(), nil)
	series, err := facade.Range(tag, seedTime, seedTime.Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if got := series.DataPointCount(); got > 50 {
		t.Errorf("Request cap violated: %d data points", got)
	}
}

func TestRangeUncappedUsesConfig(t *testing.T) {
	tag := "range_uncapped_tag"
	seedTag(t, "range-uncapped", tag, 100, time.Second)

	facade := NewFacade(testConfig(), nil)
	series, err := facade.Range(tag, seedTime, seedTime.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	// 100 points sit below the configured threshold, so they pass through.
	if got := series.DataPointCount(); got != 100 {
		t.Errorf("Expected passthrough of 100 points, got %d", got)
	}
}

func TestRangeEmptyWindow(t *testing.T) {
	facade := NewFacade(testConfig(), nil)
	series, err := facade.Range("never_written_tag", seedTime, seedTime.Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("Expected empty series, got %d entries", len(series))
	}
}

func TestLatestCacheAside(t *testing.T) {
	group := "cache-group"
	seedTag(t, group, "temperature", 1, time.Second)

	cache := newFakeCache()
	facade := NewFacade(testConfig(), cache)

	// First read misses the cache and fills it from the database.
	first, err := facade.Latest(group)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if first == nil {
		t.Fatal("Expected a reading for the seeded group")
	}
	if cache.gets != 1 || cache.puts != 1 {
		t.Errorf("Expected one miss and one fill, got gets=%d puts=%d", cache.gets, cache.puts)
	}

	// Second read is served from the cache.
	second, err := facade.Latest(group)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if second == nil || second.BatchID != first.BatchID {
		t.Errorf("Cached read diverged: %+v vs %+v", second, first)
	}
	if cache.puts != 1 {
		t.Errorf("Expected no refill on cache hit, got %d puts", cache.puts)
	}
}

func TestLatestCacheDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Performance.EnableQueryOptimization = false

	cache := newFakeCache()
	facade := NewFacade(cfg, cache)

	if _, err := facade.Latest("cache-group"); err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if cache.gets != 0 || cache.puts != 0 {
		t.Errorf("Cache must be ignored when optimization is off, got gets=%d puts=%d",
			cache.gets, cache.puts)
	}
}

func TestStoreLatestRefreshesCache(t *testing.T) {
	cache := newFakeCache()
	facade := NewFacade(testConfig(), cache)

	temp := 19.0
	wide := &types.WideReading{Group: "store-group", BatchID: "sl-1", Temperature: &temp}
	facade.StoreLatest(wide)

	if cache.store["store-group"] != wide {
		t.Error("Expected the cache refreshed with the new reading")
	}

	// Nil readings and nil caches are both tolerated.
	facade.StoreLatest(nil)
	NewFacade(testConfig(), nil).StoreLatest(wide)
}

func TestMetricsIncludeSeededTag(t *testing.T) {
	tag := "metrics_facade_tag"
	seedTag(t, "metrics-facade", tag, 4, time.Second)

	facade := NewFacade(testConfig(), nil)
	summary, err := facade.Metrics()
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	m, ok := summary.Tags[tag]
	if !ok {
		t.Fatalf("Expected metrics for %s", tag)
	}
	if m.Count != 4 || m.Min != 0 || m.Max != 3 || m.Avg != 1.5 {
		t.Errorf("Unexpected metrics: %+v", m)
	}
	if summary.LastBatch == nil {
		t.Error("Expected last batch info with data present")
	}
}

func TestHistoryValidation(t *testing.T) {
	facade := NewFacade(testConfig(), nil)
	_, _, err := facade.History(scadadb.HistoryFilter{
		Start: seedTime.Add(time.Hour),
		End:   seedTime,
	})
	if !errors.Is(err, ErrBadRange) {
		t.Errorf("Expected ErrBadRange for inverted window, got %v", err)
	}
}
