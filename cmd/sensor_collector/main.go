// Sensor collector runs beside the field datalogger. It reads framed
// serial readings, folds in the optional Modbus radiation head, and
// posts ingestion payloads to the scada API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/collector"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/modbusstation"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	log "github.com/sirupsen/logrus"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	if err := config.LoadSensorCollectorConfig(); err != nil {
		log.Fatalf("Failed to load sensor collector config: %v", err)
	}
	cfg := config.ActiveSensorCollectorConfig

	reader := collector.NewLoggerReader(cfg.SerialDevice, cfg.Baudrate)
	reader.StartReading(
		func(payload map[string]float64) {
			postPayload(cfg, payload)
		},
		func(err error) {
			if err != nil {
				log.Fatalf("Error reading datalogger: %v", err)
			}
		},
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-interrupt

	log.Info("Interrupt received, shutting down...")
	reader.StopReading()
}

// postPayload ships one reading batch to the ingestion endpoint with
// bounded retries and linear backoff.
func postPayload(cfg *config.SensorCollectorConfig, payload map[string]float64) {
	body := make(map[string]any, len(payload)+2)
	for tag, value := range payload {
		body[tag] = value
	}

	// The networked radiation head, when present, rides along in the
	// same batch.
	if modbusstation.IsConfigured() {
		if wm2, err := modbusstation.ReadRadiation(); err == nil {
			body[types.TagSolarRadiation] = wm2
		} else {
			log.Warnf("Modbus radiation read failed: %v", err)
		}
	}

	body["group"] = cfg.StationGroup
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(body)
	if err != nil {
		log.Errorf("Failed to marshal payload: %v", err)
		return
	}

	scheme := "http"
	if cfg.TLSEnabled {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/api/ingest", scheme, cfg.ScadaAPIHost)

	const maxRetries = 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := httpClient.Post(url, "application/json", bytes.NewReader(data))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			err = fmt.Errorf("ingestion returned %s", resp.Status)
		}

		log.Warnf("Post attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	log.Error("Giving up on batch after retries")
}
