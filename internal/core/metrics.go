package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raainshe/ratemind/internal/logging"
)

// wsUpgrader upgrades /ws connections for the dashboard's snapshot
// stream. Origin checking is left permissive (same posture as the
// plain /metrics endpoint): this server is meant to sit behind the
// same network boundary as the qBittorrent WebUI it supervises, not
// to be exposed directly to the internet.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Metrics holds the Prometheus collectors exposed on the optional
// /metrics endpoint. One instance is shared by the Coordinator and
// updated on every tick; the HTTP server only ever reads the
// registry promhttp builds over it.
type Metrics struct {
	reg *prometheus.Registry

	TickDuration     prometheus.Histogram
	TorrentsByPhase  *prometheus.GaugeVec
	UploadLimitBytes *prometheus.GaugeVec
	DownloadLimitKiB *prometheus.GaugeVec
	PrecisionAdj     *prometheus.GaugeVec
	ReannouncesTotal *prometheus.CounterVec
	CycleClosedTotal *prometheus.CounterVec
	TrackedTorrents  prometheus.Gauge

	server     *http.Server
	logger     *logging.Logger
	snapshotFn func() []Status
}

// SetSnapshotFn wires the coordinator's Snapshot method into the /ws
// stream. Called once during setup, before Start.
func (m *Metrics) SetSnapshotFn(fn func() []Status) {
	m.snapshotFn = fn
}

// NewMetrics builds and registers the collector set. Call Handler (or
// Start) to expose them; an unstarted Metrics is harmless to keep
// updating, it just has no listener.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ratemind",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one coordinator control-loop tick.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		TorrentsByPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratemind",
			Name:      "torrents_by_phase",
			Help:      "Number of tracked torrents currently in each rate-control phase.",
		}, []string{"phase"}),
		UploadLimitBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratemind",
			Name:      "upload_limit_bytes",
			Help:      "Current applied upload limit in bytes per second, by torrent hash.",
		}, []string{"hash", "name"}),
		DownloadLimitKiB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratemind",
			Name:      "download_limit_kib",
			Help:      "Current applied download limit in KiB per second, by torrent hash.",
		}, []string{"hash", "name"}),
		PrecisionAdj: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratemind",
			Name:      "precision_adjustment",
			Help:      "Precision-tracker adjustment multiplier, by phase ('global' for the shared value).",
		}, []string{"phase"}),
		ReannouncesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratemind",
			Name:      "reannounces_total",
			Help:      "Total forced reannounces, by reason.",
		}, []string{"reason"}),
		CycleClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratemind",
			Name:      "cycle_closed_total",
			Help:      "Total announce cycles closed, by phase.",
		}, []string{"phase"}),
		TrackedTorrents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ratemind",
			Name:      "tracked_torrents",
			Help:      "Number of torrents currently tracked by the coordinator.",
		}),
		logger: logging.GetRateControlLogger(),
	}

	reg.MustRegister(
		m.TickDuration,
		m.TorrentsByPhase,
		m.UploadLimitBytes,
		m.DownloadLimitKiB,
		m.PrecisionAdj,
		m.ReannouncesTotal,
		m.CycleClosedTotal,
		m.TrackedTorrents,
	)

	return m
}

// Handler returns the HTTP handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Start launches the /metrics HTTP server in the background. Stop
// must be called to release the listener.
func (m *Metrics) Start(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ws", m.serveWS)

	m.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.WithError(err).Error("Metrics server stopped unexpectedly")
		}
	}()

	m.logger.WithField("addr", addr).Info("Metrics server listening")
}

// serveWS streams the coordinator's per-tick torrent snapshot as JSON
// to any connected client, once per second, so an external tool can
// subscribe instead of polling rate-status.
func (m *Metrics) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to upgrade /ws connection")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		snapshot := []Status{}
		if m.snapshotFn != nil {
			snapshot = m.snapshotFn()
		}
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}
}

// Stop shuts down the HTTP server, if one was started.
func (m *Metrics) Stop() error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}
