// Scada API is the ingestion, storage and live distribution service for
// the weather-station dashboard.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/api"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/livehub"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/query"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/rediscache"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/writer"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load config
	if err := config.LoadScadaAPIConfig(); err != nil {
		log.Fatalf("Failed to load scada API config: %v", err)
	}
	cfg := config.ActiveScadaAPIConfig

	if cfg.Processing.EnableLogging {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	// Initialize database
	scadadb.InitializeDatabase()

	// Redis is optional; the service runs without push channels and the
	// latest-value cache when it is unreachable.
	var redisClient *rediscache.Client
	if cfg.Redis.Address != "" {
		var err error
		for i := 0; i < 5; i++ {
			redisClient, err = rediscache.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
			if err == nil {
				log.Infof("Connected to Redis at %s", cfg.Redis.Address)
				break
			}
			log.Warnf("Redis connection attempt %d failed: %v", i+1, err)
			if i < 4 {
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
		if err != nil {
			log.Warnf("Running without Redis: %v", err)
			redisClient = nil
		}
	}

	// Persistence writer
	writerOpts := writer.DefaultOptions()
	writerOpts.MaxBatchSize = cfg.Performance.MaxBatchSize
	w := writer.NewWriter(writer.StoreFunc(scadadb.InsertNormalizedBatches), writerOpts)
	w.Start()
	go func() {
		for batches := range w.FailedBatches() {
			for _, b := range batches {
				if b.Wide != nil {
					log.WithField("batch_id", b.Wide.BatchID).Error("Batch lost after flush retries")
				}
			}
		}
	}()

	// Live hub and query façade
	var hub *livehub.Hub
	var facade *query.Facade
	if redisClient != nil {
		hub = livehub.NewHub(redisClient)
		facade = query.NewFacade(cfg, redisClient)
	} else {
		hub = livehub.NewHub(nil)
		facade = query.NewFacade(cfg, nil)
	}

	server := api.NewServer(cfg, w, hub, facade, redisClient)

	listener := fmt.Sprintf("%s:%d", cfg.Server.ListenAddress, cfg.Server.ListenPort)
	httpServer := &http.Server{
		Addr:    listener,
		Handler: server.Router(),
		// No global write timeout: the live stream holds connections
		// open and paces itself with per-write deadlines.
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting AWS SCADA Telemetry API on %s", listener)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	// Drain the batching buffer before exit.
	if err := w.Close(); err != nil {
		log.Errorf("Final flush failed: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Info("Server stopped")
}
