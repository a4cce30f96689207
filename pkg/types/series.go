package types

import "time"

// SeriesPoint is one charting point. A nil Value marks a temporal gap:
// the renderer should break the line instead of interpolating across it.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value"`
}

// IsGap reports whether the point is a gap marker.
func (p SeriesPoint) IsGap() bool {
	return p.Value == nil
}

// Series is a time-ascending sequence of points for one tag. Transient
// charting view only, never persisted.
type Series []SeriesPoint

// DataPointCount returns the number of real (non-gap) points.
func (s Series) DataPointCount() int {
	n := 0
	for _, p := range s {
		if !p.IsGap() {
			n++
		}
	}
	return n
}
