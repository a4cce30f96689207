// Downsampling reduces an ordered series to a bounded point count while
// keeping its visual shape for charting. Buckets are sized by point
// count rather than time so the output bound holds no matter how
// irregularly a field device transmits. Temporal gaps above a threshold
// are marked explicitly so charts render a break instead of
// interpolating across downtime.
package downsample

import (
	"math"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

type Options struct {
	// MaxPoints bounds the number of real data points in the output.
	// Gap markers are not counted against it.
	MaxPoints int
	// GapThreshold is the largest tolerated distance between consecutive
	// source points before a gap marker is inserted.
	GapThreshold time.Duration
	// Enabled gates the reduction step. Gap marking always runs.
	Enabled bool
	// MinPointsThreshold is the series length below which reduction is
	// not attempted.
	MinPointsThreshold int
}

// OptionsFromConfig builds Options from the loaded service config,
// honoring a per-request point cap when maxPoints is positive.
func OptionsFromConfig(cfg *config.ScadaAPIConfig, maxPoints int) Options {
	if maxPoints <= 0 || maxPoints > cfg.Downsampling.MaxPointsPerSeries {
		maxPoints = cfg.Downsampling.MaxPointsPerSeries
	}
	return Options{
		MaxPoints:          maxPoints,
		GapThreshold:       time.Duration(cfg.Processing.GapThresholdSeconds) * time.Second,
		Enabled:            cfg.Downsampling.Enabled,
		MinPointsThreshold: cfg.Downsampling.MinPointsThreshold,
	}
}

// Downsample reduces a chronologically ordered series to at most
// opts.MaxPoints real points and inserts gap markers. The input is never
// mutated. Output timestamps are non-decreasing for sorted input.
func Downsample(series types.Series, opts Options) types.Series {
	if len(series) <= 1 {
		return series
	}

	src := realPoints(series)
	if len(src) == 0 {
		// Nothing but gap entries: collapse to a single marker spanning
		// the whole window.
		mid := midpoint(series[0].Timestamp, series[len(series)-1].Timestamp)
		return types.Series{{Timestamp: mid, Value: nil}}
	}

	reduced := src
	if opts.Enabled && opts.MaxPoints > 0 &&
		len(src) > opts.MinPointsThreshold && len(src) > opts.MaxPoints {
		reduced = reduceByBuckets(src, opts.MaxPoints)
	}

	if opts.GapThreshold <= 0 {
		return reduced
	}
	return insertGapMarkers(reduced, src, opts.GapThreshold)
}

func realPoints(series types.Series) types.Series {
	for _, p := range series {
		if p.IsGap() {
			out := make(types.Series, 0, len(series))
			for _, q := range series {
				if !q.IsGap() {
					out = append(out, q)
				}
			}
			return out
		}
	}
	return series
}

// reduceByBuckets partitions the series into fixed index-width buckets
// and emits one representative per bucket: the arithmetic mean of the
// values, anchored at the bucket's last original timestamp. Boundary
// points always land in the earlier bucket.
func reduceByBuckets(series types.Series, maxPoints int) types.Series {
	bucketSize := int(math.Ceil(float64(len(series)) / float64(maxPoints)))
	out := make(types.Series, 0, maxPoints)

	for start := 0; start < len(series); start += bucketSize {
		end := start + bucketSize
		if end > len(series) {
			end = len(series)
		}

		sum := 0.0
		for _, p := range series[start:end] {
			sum += *p.Value
		}
		mean := sum / float64(end-start)
		out = append(out, types.SeriesPoint{
			Timestamp: series[end-1].Timestamp,
			Value:     &mean,
		})
	}
	return out
}

// insertGapMarkers scans consecutive original timestamps and splices a
// nil-valued marker at the midpoint of every delta above the threshold,
// keeping the merged output sorted.
func insertGapMarkers(reduced, original types.Series, threshold time.Duration) types.Series {
	var gaps []time.Time
	for i := 1; i < len(original); i++ {
		if original[i].Timestamp.Sub(original[i-1].Timestamp) > threshold {
			gaps = append(gaps, midpoint(original[i-1].Timestamp, original[i].Timestamp))
		}
	}
	if len(gaps) == 0 {
		return reduced
	}

	out := make(types.Series, 0, len(reduced)+len(gaps))
	gi := 0
	for _, p := range reduced {
		for gi < len(gaps) && !gaps[gi].After(p.Timestamp) {
			out = append(out, types.SeriesPoint{Timestamp: gaps[gi], Value: nil})
			gi++
		}
		out = append(out, p)
	}
	for ; gi < len(gaps); gi++ {
		out = append(out, types.SeriesPoint{Timestamp: gaps[gi], Value: nil})
	}
	return out
}

func midpoint(a, b time.Time) time.Time {
	return a.Add(b.Sub(a) / 2)
}
