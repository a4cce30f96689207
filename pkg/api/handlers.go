package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/normalizer"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/promstats"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/query"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	log "github.com/sirupsen/logrus"
)

// Reserved payload keys that are not sensor tags.
const (
	payloadKeyGroup     = "group"
	payloadKeyTimestamp = "timestamp"
)

// IngestHandler accepts a flat JSON object of tag -> numeric value plus
// optional group and timestamp, runs it through the normalizer and the
// persistence writer, and publishes the live event only when the write
// path reported no durability failure for this call.
func (s *Server) IngestHandler(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		promstats.RequestsTotal.WithLabelValues("/api/ingest", r.Method, "400").Inc()
		s.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	group := ""
	if raw, ok := payload[payloadKeyGroup]; ok {
		delete(payload, payloadKeyGroup)
		g, ok := raw.(string)
		if !ok {
			promstats.RequestsTotal.WithLabelValues("/api/ingest", r.Method, "400").Inc()
			s.respondError(w, "Invalid group: must be a string", http.StatusBadRequest)
			return
		}
		group = g
	}

	timestamp := time.Time{}
	if raw, ok := payload[payloadKeyTimestamp]; ok {
		delete(payload, payloadKeyTimestamp)
		parsed, ok := parseTimestamp(raw)
		if !ok {
			promstats.RequestsTotal.WithLabelValues("/api/ingest", r.Method, "400").Inc()
			s.respondError(w, "Invalid timestamp", http.StatusBadRequest)
			return
		}
		timestamp = parsed
	}

	batch, result := normalizer.NormalizeBatch(payload, group, timestamp)
	promstats.ReadingsRejected.Add(float64(len(result.Rejected)))

	if batch == nil {
		// Nothing left after filtering: a no-op, not an error.
		s.respondJSON(w, map[string]any{
			"status": "no-op",
			"result": result,
		}, http.StatusOK)
		return
	}

	if err := s.writer.Write(batch); err != nil {
		// Durability failed for this call; suppress the live event so no
		// subscriber sees a batch with no backing record.
		log.WithField("batch_id", result.BatchID).Errorf("Ingestion persistence failed: %v", err)
		promstats.RequestsTotal.WithLabelValues("/api/ingest", r.Method, "500").Inc()
		s.respondError(w, "Persistence failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.hub.Publish(batch.Wide)
	s.facade.StoreLatest(batch.Wide)

	promstats.BatchesIngested.Inc()
	promstats.RequestsTotal.WithLabelValues("/api/ingest", r.Method, "200").Inc()
	s.respondJSON(w, map[string]any{
		"status":   "accepted",
		"batch_id": result.BatchID,
		"result":   result,
	}, http.StatusOK)
}

// LatestHandler returns the most recent wide reading for a group.
func (s *Server) LatestHandler(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = normalizer.DefaultGroup
	}

	reading, err := s.facade.Latest(group)
	if err != nil {
		s.respondError(w, "Query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if reading == nil {
		s.respondError(w, "No readings available yet", http.StatusNotFound)
		return
	}
	s.respondJSON(w, reading, http.StatusOK)
}

// MetricsHandler returns per-tag summary statistics.
func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.facade.Metrics()
	if err != nil {
		s.respondError(w, "Query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, summary, http.StatusOK)
}

// RangeHandler returns a downsampled series for one tag.
func (s *Server) RangeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tag := q.Get("tag")

	start, okStart := parseTimestamp(q.Get("start"))
	end, okEnd := parseTimestamp(q.Get("end"))
	if !okStart || !okEnd {
		s.respondError(w, "start and end must be RFC3339 or unix milliseconds", http.StatusBadRequest)
		return
	}

	maxPoints := 0
	if raw := q.Get("max_points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, "max_points must be a positive integer", http.StatusBadRequest)
			return
		}
		maxPoints = n
	}

	series, err := s.facade.Range(tag, start, end, maxPoints)
	if err != nil {
		if errors.Is(err, query.ErrBadRange) {
			s.respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.respondError(w, "Query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.respondJSON(w, map[string]any{
		"tag":         tag,
		"points":      series,
		"data_points": series.DataPointCount(),
	}, http.StatusOK)
}

// HistoryHandler returns a filtered, sorted, paginated page of wide rows.
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := scadadb.HistoryFilter{
		Group:  q.Get("group"),
		Search: q.Get("search"),
		Sort:   scadadb.HistorySortDesc,
	}
	if q.Get("sort") == string(scadadb.HistorySortAsc) {
		filter.Sort = scadadb.HistorySortAsc
	}
	if raw := q.Get("start"); raw != "" {
		t, ok := parseTimestamp(raw)
		if !ok {
			s.respondError(w, "Invalid start", http.StatusBadRequest)
			return
		}
		filter.Start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, ok := parseTimestamp(raw)
		if !ok {
			s.respondError(w, "Invalid end", http.StatusBadRequest)
			return
		}
		filter.End = t
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	readings, total, err := s.facade.History(filter)
	if err != nil {
		if errors.Is(err, query.ErrBadRange) {
			s.respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.respondError(w, "Query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	s.respondJSON(w, map[string]any{
		"data":     readings,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	}, http.StatusOK)
}

// parseTimestamp accepts RFC3339 strings or unix milliseconds (number
// or numeric string).
func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), true
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}
