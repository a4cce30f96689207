// HTTP surface of the telemetry service: ingestion, historical queries,
// the live pull stream and the websocket push endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/livehub"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/promstats"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/query"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/rediscache"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadadb"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/writer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// heartbeatInterval paces the SSE keep-alive when no data arrives.
const heartbeatInterval = 15 * time.Second

type Server struct {
	cfg       *config.ScadaAPIConfig
	writer    *writer.Writer
	hub       *livehub.Hub
	facade    *query.Facade
	redis     *rediscache.Client
	startTime time.Time
}

// NewServer wires the pipeline behind the HTTP surface. redis may be nil.
func NewServer(cfg *config.ScadaAPIConfig, w *writer.Writer, hub *livehub.Hub, facade *query.Facade, redis *rediscache.Client) *Server {
	return &Server{
		cfg:       cfg,
		writer:    w,
		hub:       hub,
		facade:    facade,
		redis:     redis,
		startTime: time.Now(),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", s.RootHandler).Methods("GET")
	router.HandleFunc("/api/ingest", s.IngestHandler).Methods("POST")
	router.HandleFunc("/api/latest", s.LatestHandler).Methods("GET")
	router.HandleFunc("/api/metrics", s.MetricsHandler).Methods("GET")
	router.HandleFunc("/api/range", s.RangeHandler).Methods("GET")
	router.HandleFunc("/api/history", s.HistoryHandler).Methods("GET")
	router.HandleFunc("/api/stream", s.StreamHandler).Methods("GET")
	router.HandleFunc("/ws", s.WebSocketHandler)
	router.HandleFunc("/health", s.HealthHandler).Methods("GET")
	router.Handle("/prometheus", promhttp.Handler())

	router.Use(loggingMiddleware)

	return router
}

func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]string{
		"message": "AWS SCADA Telemetry API",
		"status":  "running",
	}, http.StatusOK)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if s.redis != nil && s.redis.Ping() == nil {
		redisStatus = "connected"
	}
	dbStatus := "connected"
	if err := scadadb.GetDB().Ping(); err != nil {
		dbStatus = "disconnected"
	}

	s.respondJSON(w, map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"database":    dbStatus,
		"redis":       redisStatus,
		"subscribers": s.hub.SubscriberCount(),
		"uptime":      time.Since(s.startTime).String(),
	}, http.StatusOK)
}

func (s *Server) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, map[string]string{"error": message}, status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
		promstats.RequestDuration.WithLabelValues(r.URL.Path, r.Method).
			Observe(time.Since(start).Seconds())
	})
}
