// The normalizer turns one ingestion payload (tag -> value for one
// timestamp) into the two persisted representations: a wide record with
// the canonical tags as columns and a tall record per tag.
package normalizer

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

// DefaultGroup is used when a payload does not name a station group.
const DefaultGroup = "default"

// NormalizeBatch converts a raw payload into a NormalizedBatch stamped
// with a fresh batch id. Non-numeric values are rejected per tag, never
// batch-fatal. Unknown tags are kept tall-format but dropped from the
// wide projection with a warning. A payload that is empty after
// filtering returns a nil batch and a no-op result.
func NormalizeBatch(payload map[string]any, group string, timestamp time.Time) (*types.NormalizedBatch, Result) {
	if group == "" {
		group = DefaultGroup
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	result := Result{
		BatchID: uuid.NewString(),
		Group:   group,
	}

	wide := &types.WideReading{
		Timestamp: timestamp,
		BatchID:   result.BatchID,
		Group:     group,
	}
	var talls []types.TallReading

	// Deterministic tag order keeps logs and tall row order stable.
	tags := make([]string, 0, len(payload))
	for tag := range payload {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		value, ok := numericValue(payload[tag])
		if !ok {
			result.Rejected = append(result.Rejected, tag)
			log.WithFields(log.Fields{
				"batch_id": result.BatchID,
				"group":    group,
				"tag":      tag,
			}).Warn("Rejected non-numeric reading value")
			continue
		}

		talls = append(talls, types.TallReading{
			Timestamp: timestamp,
			BatchID:   result.BatchID,
			Group:     group,
			Tag:       tag,
			Value:     value,
		})
		result.Accepted = append(result.Accepted, tag)

		if !wide.SetTag(tag, value) {
			result.UnknownTags = append(result.UnknownTags, tag)
			log.WithFields(log.Fields{
				"batch_id": result.BatchID,
				"group":    group,
				"tag":      tag,
			}).Warn("Unknown tag kept tall-format only")
		}
	}

	if len(talls) == 0 {
		return nil, result
	}

	return &types.NormalizedBatch{Wide: wide, Talls: talls}, result
}

// numericValue coerces the JSON value shapes a field device may send.
func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
