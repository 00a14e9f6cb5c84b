package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tubematch/internal/core"
	"tubematch/internal/flood"
	"tubematch/internal/resolver"
	"tubematch/internal/store"
	"tubematch/internal/youtube"
)

const (
	// ResolvePrefix is the route prefix of the playlist resolution endpoint
	ResolvePrefix = "/youtube/"
	// ViewMatched selects the deduplicated matched-tracks response
	ViewMatched = "matched"
	// batchIDHeader carries the batch ID on every resolution response
	batchIDHeader = "X-Batch-ID"
	// shutdownTimeout bounds the graceful shutdown
	shutdownTimeout = 10 * time.Second
)

// BatchResolver resolves a whole playlist batch.
type BatchResolver interface {
	ResolveAll(
		ctx context.Context,
		items []core.SourceItem,
		descriptions core.DescriptionFetcher,
		catalog core.Catalog,
	) ([]core.ItemResult, error)
}

// Dependencies are the collaborators behind the resolution route.
type Dependencies struct {
	Platform  core.VideoPlatform
	Catalog   core.Catalog
	Resolver  BatchResolver
	Floodgate *flood.Floodgate
	// DescriptionCache is optional and only observed for metrics
	DescriptionCache *store.DescriptionCache
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	registry *prometheus.Registry
	deps     Dependencies
}

type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	ResolutionsTotal   *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	MatchedTracksTotal prometheus.Counter
	FloodRejected      prometheus.Counter
	BatchDuration      prometheus.Histogram
	BatchSize          prometheus.Histogram
	ActiveBatches      prometheus.Gauge
}

func NewServer(config *core.ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  newMetrics(registry),
		registry: registry,
		deps:     deps,
	}
	registerStateGauges(registry, deps)
	s.server = createHTTPServer(config, s.setupRoutes())

	return s
}

func newMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubematch_requests_total",
				Help: "Total number of resolution requests by response status",
			},
			[]string{"status"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubematch_resolutions_total",
				Help: "Total number of resolved playlist items by result kind",
			},
			[]string{"kind"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubematch_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		MatchedTracksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tubematch_matched_tracks_total",
				Help: "Total number of catalog tracks matched",
			},
		),
		FloodRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tubematch_flood_rejected_total",
				Help: "Total number of requests rejected by the per-client limit",
			},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tubematch_batch_duration_seconds",
				Help:    "Time spent resolving one playlist",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tubematch_batch_items",
				Help:    "Number of playlist items per resolution request",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		ActiveBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tubematch_active_batches",
				Help: "Number of playlists currently being resolved",
			},
		),
	}

	registerer.MustRegister(
		metrics.RequestsTotal,
		metrics.ResolutionsTotal,
		metrics.ErrorsTotal,
		metrics.MatchedTracksTotal,
		metrics.FloodRejected,
		metrics.BatchDuration,
		metrics.BatchSize,
		metrics.ActiveBatches,
	)

	return metrics
}

// registerStateGauges exposes the size of the optional floodgate and
// description cache, sampled on scrape.
func registerStateGauges(registerer prometheus.Registerer, deps Dependencies) {
	if fg := deps.Floodgate; fg != nil {
		registerer.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tubematch_flood_active_clients",
				Help: "Number of clients tracked by the per-client request limit",
			},
			func() float64 { return float64(fg.GetStats().ActiveClients) },
		))
	}

	if cache := deps.DescriptionCache; cache != nil {
		registerer.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tubematch_description_cache_entries",
				Help: "Number of video descriptions currently cached",
			},
			func() float64 { return float64(cache.Len()) },
		))
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", statusHandler(s.logger, "ok"))
	mux.HandleFunc("/readyz", statusHandler(s.logger, "ready"))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	mux.HandleFunc(ResolvePrefix, s.resolveHandler)
	mux.HandleFunc("/", homeHandler(s.logger))

	return mux
}

func statusHandler(logger *zap.Logger, status string) http.HandlerFunc {
	body := fmt.Sprintf(`{"status":%q,"service":"tubematch"}`, status)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			logger.Debug("Failed to write status response", zap.Error(err))
		}
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>tubematch</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>tubematch</h1>
    <p>Resolves YouTube playlists to Spotify tracks.</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><code>/youtube/playlist?q=&lt;playlist id&gt;</code> - Resolve a playlist</div>
    <div class="endpoint"><code>/youtube/playlist?q=&lt;playlist id&gt;&amp;view=matched</code> - Matched tracks only</div>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	batchID := uuid.NewString()
	logger := s.logger.With(zap.String("batchID", batchID))
	w.Header().Set(batchIDHeader, batchID)

	if r.Method != http.MethodGet {
		s.writeError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.deps.Floodgate != nil && !s.deps.Floodgate.Allow(clientAddress(r, s.config.TrustForwardedFor)) {
		s.metrics.FloodRejected.Inc()
		s.writeError(w, logger, http.StatusTooManyRequests, "too many requests")
		return
	}

	playlistID, err := playlistIDFromRequest(r)
	if err != nil {
		s.writeError(w, logger, http.StatusBadRequest, err.Error())
		return
	}
	logger = logger.With(zap.String("playlistID", playlistID))

	s.metrics.ActiveBatches.Inc()
	defer s.metrics.ActiveBatches.Dec()

	start := time.Now()
	ctx := r.Context()

	items, err := s.deps.Platform.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		s.handleBatchError(w, logger, "youtube", err)
		return
	}

	results, err := s.deps.Resolver.ResolveAll(ctx, items, s.deps.Platform, s.deps.Catalog)
	if err != nil {
		s.handleBatchError(w, logger, "spotify", err)
		return
	}

	stats := resolver.Summarize(results, time.Since(start))
	s.recordBatch(results, stats)
	logger.Info("Resolved playlist",
		zap.Int("items", stats.Items),
		zap.Int("compilations", stats.Compilations),
		zap.Int("matched", stats.Matched),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration))

	if ctx.Err() != nil {
		logger.Info("Client went away before the playlist was resolved")
		return
	}

	if r.URL.Query().Get("view") == ViewMatched {
		s.writeJSON(w, logger, http.StatusOK, store.UniqueMatches(results))
		return
	}
	s.writeJSON(w, logger, http.StatusOK, results)
}

func (s *Server) handleBatchError(w http.ResponseWriter, logger *zap.Logger, component string, err error) {
	kind := core.KindOf(err)
	s.metrics.ErrorsTotal.WithLabelValues(component, string(kind)).Inc()

	if errors.Is(err, context.Canceled) {
		logger.Info("Client went away while resolving", zap.Error(err))
		return
	}

	status := http.StatusBadGateway
	if kind == core.KindNotFound {
		status = http.StatusNotFound
	}

	logger.Warn("Playlist resolution failed", zap.String("component", component), zap.Error(err))
	s.writeError(w, logger, status, err.Error())
}

func (s *Server) recordBatch(results []core.ItemResult, stats core.BatchStats) {
	for i := range results {
		result := results[i].Result
		s.metrics.ResolutionsTotal.WithLabelValues(string(result.Kind)).Inc()
		if result.Error != nil {
			s.metrics.ErrorsTotal.WithLabelValues("resolver", string(result.Error.Kind)).Inc()
		}
	}
	s.metrics.MatchedTracksTotal.Add(float64(stats.Matched))
	s.metrics.BatchSize.Observe(float64(stats.Items))
	s.metrics.BatchDuration.Observe(stats.Duration.Seconds())
}

func (s *Server) writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	s.writeJSON(w, logger, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	s.metrics.RequestsTotal.WithLabelValues(fmt.Sprintf("%d", status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// playlistIDFromRequest reads the playlist ID from the q or list parameter,
// or from a bare query string such as "/youtube/playlist?PL...".
func playlistIDFromRequest(r *http.Request) (string, error) {
	values := r.URL.Query()
	for _, key := range []string{"q", "list"} {
		if v := values.Get(key); v != "" {
			return youtube.ExtractPlaylistID(v)
		}
	}

	bare, _, _ := strings.Cut(r.URL.RawQuery, "&")
	return youtube.ExtractPlaylistID(bare)
}

// clientAddress keys the per-client limit. With trustForwardedFor the first
// X-Forwarded-For hop wins over the peer address.
func clientAddress(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) handler() http.Handler {
	return s.server.Handler
}
