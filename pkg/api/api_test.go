package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/livehub"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/query"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/writer"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "api-test-*")
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
		Processing: config.ProcessingConfig{GapThresholdSeconds: 30},
		Performance: config.PerformanceConfig{
			MaxBatchSize: 1, // Every ingestion flushes inline.
		},
	}
}

type testEnv struct {
	hub    *livehub.Hub
	writer *writer.Writer
	http   *httptest.Server
}

// newTestEnv builds the full pipeline over the shared test database,
// with a custom store so failure paths can be exercised.
func newTestEnv(t *testing.T, store writer.Store) *testEnv {
	t.Helper()
	cfg := testConfig()

	if store == nil {
		store = writer.StoreFunc(scadadb.InsertNormalizedBatches)
	}
	w := writer.NewWriter(store, writer.Options{
		MaxBatchSize: cfg.Performance.MaxBatchSize,
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
	})

	hub := livehub.NewHub(nil)
	facade := query.NewFacade(cfg, nil)
	server := NewServer(cfg, w, hub, facade, nil)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(func() {
		ts.Close()
		w.Close()
	})
	return &testEnv{hub: hub, writer: w, http: ts}
}

func postIngest(t *testing.T, env *testEnv, payload map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(env.http.URL+"/api/ingest", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Ingest request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Ingest response not JSON: %v", err)
	}
	return resp, body
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Response not JSON: %v", err)
		}
	}
	return resp
}

func TestIngestEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	sub := env.hub.Subscribe()
	defer env.hub.Unsubscribe(sub.ID)

	resp, body := postIngest(t, env, map[string]any{
		"temperature": 21.5,
		"humidity":    60.0,
		"group":       "e2e",
		"timestamp":   "2025-06-01T10:00:00Z",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, body)
	}
	batchID, _ := body["batch_id"].(string)
	if batchID == "" {
		t.Fatalf("Response missing batch_id: %v", body)
	}

	// The batch flushed inline, so both shapes are durable already.
	n, err := scadadb.CountTallByBatch(batchID)
	if err != nil {
		t.Fatalf("Tall count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 tall rows for the batch, got %d", n)
	}

	// The subscriber sees exactly this batch.
	select {
	case envelope := <-sub.Ch:
		if envelope.BatchID != batchID {
			t.Errorf("Live event carries batch %s, want %s", envelope.BatchID, batchID)
		}
		if envelope.EventType != types.EventTypeDataReceived {
			t.Errorf("Unexpected event type %s", envelope.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscriber never received the live event")
	}

	// And the latest endpoint serves it back.
	var latest types.WideReading
	lresp := getJSON(t, env.http.URL+"/api/latest?group=e2e", &latest)
	if lresp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from latest, got %d", lresp.StatusCode)
	}
	if latest.BatchID != batchID {
		t.Errorf("Latest serves batch %s, want %s", latest.BatchID, batchID)
	}
	if latest.Temperature == nil || *latest.Temperature != 21.5 {
		t.Error("Latest reading lost the temperature value")
	}
}

func TestIngestPersistenceFailureSuppressesLiveEvent(t *testing.T) {
	failing := writer.StoreFunc(func([]types.NormalizedBatch) error {
		return fmt.Errorf("disk full")
	})
	env := newTestEnv(t, failing)
	sub := env.hub.Subscribe()
	defer env.hub.Unsubscribe(sub.ID)

	resp, body := postIngest(t, env, map[string]any{
		"temperature": 21.5,
		"group":       "failure-group",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %v", resp.StatusCode, body)
	}

	select {
	case envelope := <-sub.Ch:
		t.Errorf("Live event %s published for a batch that never persisted", envelope.BatchID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIngestEmptyPayloadIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := postIngest(t, env, map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for empty payload, got %d", resp.StatusCode)
	}
	if body["status"] != "no-op" {
		t.Errorf("Expected no-op status, got %v", body["status"])
	}
}

func TestIngestBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Post(env.http.URL+"/api/ingest", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", resp.StatusCode)
	}

	resp2, _ := postIngest(t, env, map[string]any{
		"temperature": 20.0,
		"timestamp":   "yesterday-ish",
	})
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid timestamp, got %d", resp2.StatusCode)
	}

	resp3, _ := postIngest(t, env, map[string]any{
		"temperature": 20.0,
		"group":       5,
	})
	if resp3.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-string group, got %d", resp3.StatusCode)
	}
}

func TestLatestUnknownGroup(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := getJSON(t, env.http.URL+"/api/latest?group=ghost-group", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for a group with no data, got %d", resp.StatusCode)
	}
}

func TestRangeHandlerBoundsResult(t *testing.T) {
	env := newTestEnv(t, nil)

	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	var batches []types.NormalizedBatch
	for i := 0; i < 1200; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		id := fmt.Sprintf("rh-%d", i)
		batches = append(batches, types.NormalizedBatch{
			Wide: &types.WideReading{Timestamp: ts, BatchID: id, Group: "range-handler"},
			Talls: []types.TallReading{{
				Timestamp: ts, BatchID: id, Group: "range-handler",
				Tag: "range_handler_tag", Value: float64(i),
			}},
		})
	}
	if err := scadadb.InsertNormalizedBatches(batches); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	url := fmt.Sprintf("%s/api/range?tag=range_handler_tag&start=%s&end=%s&max_points=40",
		env.http.URL,
		base.Format(time.RFC3339),
		base.Add(time.Hour).Format(time.RFC3339))

	var body struct {
		Tag        string       `json:"tag"`
		Points     types.Series `json:"points"`
		DataPoints int          `json:"data_points"`
	}
	resp := getJSON(t, url, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body.DataPoints == 0 || body.DataPoints > 40 {
		t.Errorf("Expected 1..40 data points, got %d", body.DataPoints)
	}
}

func TestRangeHandlerRejectsBadParams(t *testing.T) {
	env := newTestEnv(t, nil)
	start := time.Now().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().Format(time.RFC3339)

	for name, url := range map[string]string{
		"missing tag":   fmt.Sprintf("%s/api/range?start=%s&end=%s", env.http.URL, start, end),
		"missing start": fmt.Sprintf("%s/api/range?tag=temperature&end=%s", env.http.URL, end),
		"bad start":     fmt.Sprintf("%s/api/range?tag=temperature&start=whenever&end=%s", env.http.URL, end),
		"inverted":      fmt.Sprintf("%s/api/range?tag=temperature&start=%s&end=%s", env.http.URL, end, start),
		"bad cap":       fmt.Sprintf("%s/api/range?tag=temperature&start=%s&end=%s&max_points=zero", env.http.URL, start, end),
	} {
		resp := getJSON(t, url, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 5; i++ {
		resp, _ := postIngest(t, env, map[string]any{
			"pressure":  1000.0 + float64(i),
			"group":     "history-handler",
			"timestamp": time.Date(2025, 8, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Seeding ingest %d failed with %d", i, resp.StatusCode)
		}
	}

	var body struct {
		Data    []types.WideReading `json:"data"`
		Total   int                 `json:"total"`
		Page    int                 `json:"page"`
		PerPage int                 `json:"per_page"`
	}
	resp := getJSON(t, env.http.URL+"/api/history?group=history-handler&per_page=2", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body.Total != 5 {
		t.Errorf("Expected total 5, got %d", body.Total)
	}
	if len(body.Data) != 2 || body.PerPage != 2 || body.Page != 1 {
		t.Errorf("Unexpected page shape: len=%d page=%d per_page=%d",
			len(body.Data), body.Page, body.PerPage)
	}
	// Newest first by default.
	if body.Data[0].Pressure == nil || *body.Data[0].Pressure != 1004 {
		t.Errorf("Expected newest row first, got %+v", body.Data[0])
	}
}

func TestStreamDeliversIngestedBatch(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.http.URL + "/api/stream")
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %q", ct)
	}

	// Wait for the stream's hub registration before ingesting.
	deadline := time.Now().Add(time.Second)
	for env.hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Stream never registered as a subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ingestResp, body := postIngest(t, env, map[string]any{
		"temperature": 19.0,
		"group":       "stream-group",
	})
	if ingestResp.StatusCode != http.StatusOK {
		t.Fatalf("Ingest failed with %d", ingestResp.StatusCode)
	}
	batchID := body["batch_id"].(string)

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var sawEvent bool
	timeout := time.After(5 * time.Second)
	for !sawEvent {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("Stream closed before delivering the event")
			}
			if line == "event: "+types.EventTypeDataReceived {
				sawEvent = true
			}
		case <-timeout:
			t.Fatal("Timed out waiting for the live event")
		}
	}

	// The data line directly follows the event line.
	select {
	case line := <-lines:
		if !strings.HasPrefix(line, "data: ") {
			t.Fatalf("Expected data line, got %q", line)
		}
		var envelope types.LiveBatch
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &envelope); err != nil {
			t.Fatalf("Event payload not JSON: %v", err)
		}
		if envelope.BatchID != batchID {
			t.Errorf("Stream delivered batch %s, want %s", envelope.BatchID, batchID)
		}
	case <-time.After(time.Second):
		t.Fatal("Event line arrived without a data line")
	}
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?group=ws-group"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	ingestResp, body := postIngest(t, env, map[string]any{
		"wind_speed": 4.2,
		"group":      "ws-group",
	})
	if ingestResp.StatusCode != http.StatusOK {
		t.Fatalf("Ingest failed with %d", ingestResp.StatusCode)
	}
	batchID := body["batch_id"].(string)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("WebSocket read failed: %v", err)
		}
		var envelope types.LiveBatch
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("Broadcast payload not JSON: %v", err)
		}
		if envelope.BatchID == batchID {
			return
		}
		// Skip the initial latest-reading message when present.
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	var body map[string]any
	resp := getJSON(t, env.http.URL+"/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
	if body["database"] != "connected" {
		t.Errorf("Expected connected database, got %v", body["database"])
	}
	if body["redis"] != "disconnected" {
		t.Errorf("Expected disconnected redis without a client, got %v", body["redis"])
	}
}

func TestRootEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	var body map[string]string
	resp := getJSON(t, env.http.URL+"/", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "running" {
		t.Errorf("Unexpected root response: %v", body)
	}
}
