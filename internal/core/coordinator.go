package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raainshe/ratemind/internal/cache"
	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/logging"
	"github.com/raainshe/ratemind/internal/notify"
	"github.com/raainshe/ratemind/internal/persistence"
	"github.com/raainshe/ratemind/internal/qbittorrent"
	"github.com/raainshe/ratemind/internal/ratecontrol"
	"github.com/raainshe/ratemind/internal/report"
)

// Coordinator is the control loop: on every tick it pulls the current
// torrent list from qBittorrent, advances each torrent's rate-control
// state machine, and pushes back upload/download limits and forced
// reannounces. It is the Go-side equivalent of the original daemon's
// top-level run loop, built on a background ticker with a stop channel
// (Start/Stop/loop).
type Coordinator struct {
	client         *qbittorrent.Client
	torrentService *TorrentService
	cache          *cache.CacheManager
	store          *persistence.Store
	notifier       *notify.Notifier
	reporter       *report.Generator
	cfg            func() *config.Config
	logger         *logging.Logger

	precision *ratecontrol.PrecisionTracker
	metrics   *Metrics

	mu     sync.RWMutex
	states map[string]*ratecontrol.TorrentState

	startedAt time.Time

	stopChan  chan struct{}
	ticker    *time.Ticker
	running   bool
	runningMu sync.Mutex
}

// NewCoordinator builds a Coordinator. cfgFn is called on every tick
// rather than captured once, so a hot-reloaded config takes effect
// without restarting the loop.
func NewCoordinator(client *qbittorrent.Client, torrentService *TorrentService, cacheManager *cache.CacheManager, store *persistence.Store, notifier *notify.Notifier, reporter *report.Generator, cfgFn func() *config.Config) *Coordinator {
	co := &Coordinator{
		client:         client,
		torrentService: torrentService,
		cache:          cacheManager,
		store:          store,
		notifier:       notifier,
		reporter:       reporter,
		cfg:            cfgFn,
		logger:         logging.GetRateControlLogger(),
		precision:      ratecontrol.NewPrecisionTracker(),
		metrics:        NewMetrics(),
		states:         make(map[string]*ratecontrol.TorrentState),
	}
	co.metrics.SetSnapshotFn(co.Snapshot)
	return co
}

// Metrics exposes the coordinator's Prometheus collector set so the
// caller can start/stop the /metrics HTTP server alongside the loop.
func (co *Coordinator) Metrics() *Metrics {
	return co.metrics
}

// Start begins the background control loop.
func (co *Coordinator) Start(ctx context.Context) error {
	co.runningMu.Lock()
	defer co.runningMu.Unlock()

	if co.running {
		return fmt.Errorf("coordinator is already running")
	}

	co.startedAt = time.Now()
	co.loadPersistedState()

	interval := co.cfg().RateControl.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	co.ticker = time.NewTicker(interval)
	co.stopChan = make(chan struct{})
	co.running = true

	go co.loop(ctx)

	co.logger.WithField("tick_interval", interval).Info("Rate control coordinator started")
	return nil
}

// Stop halts the background loop and flushes state to disk.
func (co *Coordinator) Stop() error {
	co.runningMu.Lock()
	defer co.runningMu.Unlock()

	if !co.running {
		return nil
	}

	close(co.stopChan)
	co.ticker.Stop()
	co.running = false

	co.persistAll()
	co.logger.Info("Rate control coordinator stopped")
	return nil
}

func (co *Coordinator) loop(ctx context.Context) {
	for {
		select {
		case <-co.stopChan:
			return
		case <-ctx.Done():
			return
		case <-co.ticker.C:
			if err := co.Tick(ctx); err != nil {
				co.logger.WithError(err).Error("Rate control tick failed")
			}
		}
	}
}

// now returns seconds elapsed since the coordinator started — every
// ratecontrol type threads wall-clock time as a float64 of seconds
// since an arbitrary epoch, and "since process start" keeps the
// numbers small and readable in logs.
func (co *Coordinator) now() float64 {
	return time.Since(co.startedAt).Seconds()
}

// limitChange is one torrent's desired upload or download limit,
// collected during a tick's per-torrent pass so it can be applied in a
// batched client call grouped by distinct limit value (see
// flushUploadLimits and flushDownloadLimits).
type limitChange struct {
	hash   string
	name   string
	value  int64 // bytes/s passed to the client call
	kib    int64 // bookkeeping value for download limits (KiB/s); unused for upload
	reason string
}

// pendingLimits accumulates the upload/download limit changes decided
// during one Tick's per-torrent pass, deferring the actual client calls
// until the whole pass is done so torrents landing on the same limit
// share a single SetUploadLimit/SetDownloadLimit call.
type pendingLimits struct {
	upload   []limitChange
	download []limitChange
}

// groupByValue buckets limit changes by their distinct client-call
// value, the data the batching step described in the rate control
// coordinator module needs: one client call per distinct limit, not
// one per torrent.
func groupByValue(changes []limitChange) map[int64][]limitChange {
	byValue := make(map[int64][]limitChange, len(changes))
	for _, c := range changes {
		byValue[c.value] = append(byValue[c.value], c)
	}
	return byValue
}

// Tick runs one control-loop pass over every tracked torrent.
func (co *Coordinator) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { co.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	cfg := co.cfg()
	now := co.now()

	torrents, err := co.torrentService.GetTorrents(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list torrents: %w", err)
	}

	seen := make(map[string]bool, len(torrents))
	phaseCounts := make(map[string]int)
	pending := &pendingLimits{}

	for _, t := range torrents {
		if !cfg.MatchesTracker(t.Tracker) {
			continue
		}
		seen[t.Hash] = true
		co.tickTorrent(ctx, cfg, now, t, pending)
		co.mu.RLock()
		if s, ok := co.states[t.Hash]; ok {
			phaseCounts[string(s.CurrentPhase)]++
		}
		co.mu.RUnlock()
	}

	co.flushUploadLimits(ctx, pending.upload)
	co.flushDownloadLimits(ctx, pending.download)

	for phase, count := range phaseCounts {
		co.metrics.TorrentsByPhase.WithLabelValues(phase).Set(float64(count))
	}
	co.metrics.TrackedTorrents.Set(float64(len(seen)))
	co.metrics.PrecisionAdj.WithLabelValues("global").Set(co.precision.GlobalAdjustment())

	co.evictStale(seen)
	return nil
}

// flushUploadLimits issues one SetUploadLimit call per distinct limit
// value collected this tick, then records the per-torrent bookkeeping
// and metrics once the call has actually succeeded.
func (co *Coordinator) flushUploadLimits(ctx context.Context, changes []limitChange) {
	for limit, group := range groupByValue(changes) {
		hashes := make([]string, len(group))
		for i, c := range group {
			hashes[i] = c.hash
		}
		if err := co.client.SetUploadLimit(ctx, hashes, limit); err != nil {
			co.logger.WithError(err).WithField("limit", limit).Warn("Failed to set upload limit")
			continue
		}
		for _, c := range group {
			co.mu.RLock()
			state, ok := co.states[c.hash]
			co.mu.RUnlock()
			if ok {
				state.LastUpLimit = limit
				state.LastUpReason = c.reason
			}
			co.metrics.UploadLimitBytes.WithLabelValues(c.hash, c.name).Set(float64(limit))
		}
	}
}

// flushDownloadLimits issues one SetDownloadLimit call per distinct
// bytes/s value collected this tick.
func (co *Coordinator) flushDownloadLimits(ctx context.Context, changes []limitChange) {
	for bytesPerSec, group := range groupByValue(changes) {
		hashes := make([]string, len(group))
		for i, c := range group {
			hashes[i] = c.hash
		}
		if err := co.client.SetDownloadLimit(ctx, hashes, bytesPerSec); err != nil {
			co.logger.WithError(err).WithField("limit", bytesPerSec).Warn("Failed to set download limit")
			continue
		}
		for _, c := range group {
			co.mu.RLock()
			state, ok := co.states[c.hash]
			co.mu.RUnlock()
			if ok {
				state.LastDLLimit = c.kib
			}
			co.metrics.DownloadLimitKiB.WithLabelValues(c.hash, c.name).Set(float64(c.kib))
			if c.reason != "" {
				co.logger.WithFields(map[string]interface{}{
					"hash":   c.hash,
					"limit":  c.kib,
					"reason": c.reason,
				}).Debug("Download limit adjusted")
			}
		}
	}
}

func (co *Coordinator) tickTorrent(ctx context.Context, cfg *config.Config, now float64, t qbittorrent.Torrent, pending *pendingLimits) {
	state := co.stateFor(t.Hash, t.Name, now, t.Uploaded, t.Size)
	state.Controller.RecordSpeed(now, float64(t.Upspeed))
	state.SpeedTracker.Record(now, float64(t.Uploaded), float64(t.Downloaded), float64(t.Upspeed), float64(t.Dlspeed))

	// The cache TTL follows the phase computed on the previous tick (an
	// empty phase on a torrent's first tick gets the warmup TTL).
	tl, err := state.GetTL(now, state.CurrentPhase, func() (float64, error) {
		props, err := co.client.GetTorrentProperties(ctx, t.Hash)
		if err != nil {
			return 0, err
		}
		co.cache.SetProperties(t.Hash, props, ratecontrol.PropsCacheTTL(state.CurrentPhase))
		return float64(props.Reannounce), nil
	})
	if err != nil {
		co.logger.WithError(err).WithField("hash", t.Hash).Warn("Failed to read torrent properties, skipping tick")
		return
	}

	prevPhase := state.GetPhase(tl)
	prevUploadedInCycle := state.UploadedInCycle(t.Uploaded)
	prevElapsed := state.Elapsed(now)

	if state.ObserveTL(now, t.Uploaded, tl) {
		targetBytes := float64(cfg.RateControl.TargetBytes())
		ratio := safeDivLocal(float64(prevUploadedInCycle), targetBytes*prevElapsed)
		co.precision.Record(ratio, prevPhase)
		co.logger.WithFields(map[string]interface{}{
			"hash":  t.Hash,
			"phase": string(prevPhase),
			"ratio": ratio,
		}).Debug("Cycle closed")

		if co.store != nil {
			_ = co.store.AppendCycleStat(persistence.CycleStats{Hash: t.Hash, Phase: string(prevPhase), Ratio: ratio})
		}
		co.metrics.CycleClosedTotal.WithLabelValues(string(prevPhase)).Inc()
		co.checkPrecisionClamp(t.Hash, t.Name)

		if co.reporter != nil && !state.ReportSent {
			if err := co.reporter.Generate(report.TorrentSummary{Hash: t.Hash, Name: t.Name, Phase: string(prevPhase)}); err != nil {
				co.logger.WithError(err).WithField("hash", t.Hash).Warn("Failed to generate usage report")
			}
			state.ReportSent = true
		}
	}

	phase := state.GetPhase(tl)
	state.CurrentPhase = phase
	precisionAdj := co.precision.GetAdjustment(phase)
	targetBytes := float64(cfg.RateControl.TargetBytes())
	elapsed := state.Elapsed(now)
	uploadedInCycle := state.UploadedInCycle(t.Uploaded)

	limit, reason, _ := state.Controller.Calculate(targetBytes, uploadedInCycle, tl, elapsed, phase, now, precisionAdj)

	if maxPhysical := cfg.RateControl.MaxPhysicalBytes(); maxPhysical > 0 && (limit <= 0 || limit > maxPhysical) {
		limit = maxPhysical
		reason = "physical ceiling"
	}

	// Invariant: while waiting for the tracker to clearly observe an
	// optimized reannounce's speed drop, the upload limit IS the
	// reannounce-wait limit, overriding whatever the controller (or the
	// physical ceiling) just computed.
	if state.IsWaitingReannounce() {
		limit = ratecontrol.ReannounceWaitLimit
		reason = "waiting for announce"
	}

	if limit != state.LastUpLimit {
		pending.upload = append(pending.upload, limitChange{hash: t.Hash, name: t.Name, value: limit, reason: reason})
	} else {
		co.metrics.UploadLimitBytes.WithLabelValues(t.Hash, t.Name).Set(float64(state.LastUpLimit))
	}

	if cfg.RateControl.EnableDownloadLimit {
		co.applyDownloadLimit(state, t, now, pending)
	}

	if cfg.RateControl.EnableReannounceOptim {
		co.applyReannounce(ctx, state, t, now)
	}
}

func (co *Coordinator) applyDownloadLimit(state *ratecontrol.TorrentState, t qbittorrent.Torrent, now float64, pending *pendingLimits) {
	dlLimitKiB, reason := ratecontrol.CalcDownloadLimit(state, t.Uploaded, t.Completed, t.Size, t.Eta, float64(t.Upspeed), float64(t.Dlspeed), now)
	if dlLimitKiB == state.LastDLLimit {
		return
	}

	bytesPerSec := int64(-1)
	if dlLimitKiB > 0 {
		bytesPerSec = dlLimitKiB * 1024
	}

	pending.download = append(pending.download, limitChange{hash: t.Hash, name: t.Name, value: bytesPerSec, kib: dlLimitKiB, reason: reason})
}

func (co *Coordinator) applyReannounce(ctx context.Context, state *ratecontrol.TorrentState, t qbittorrent.Torrent, now float64) {
	if ok, reason := ratecontrol.CheckWaitingReannounce(state, t.Uploaded, now); ok {
		co.forceReannounce(ctx, state, t, now, reason)
		return
	}
	if ok, reason := ratecontrol.ShouldReannounce(state, t.Uploaded, t.Completed, t.Size, float64(t.Upspeed), float64(t.Dlspeed), now); ok {
		co.forceReannounce(ctx, state, t, now, reason)
	}
}

func (co *Coordinator) forceReannounce(ctx context.Context, state *ratecontrol.TorrentState, t qbittorrent.Torrent, now float64, reason string) {
	if err := co.client.Reannounce(ctx, []string{t.Hash}); err != nil {
		co.logger.WithError(err).WithField("hash", t.Hash).Warn("Failed to force reannounce")
		return
	}
	state.LastReannounce = now
	co.metrics.ReannouncesTotal.WithLabelValues(reason).Inc()
	co.logger.WithFields(map[string]interface{}{
		"hash":   t.Hash,
		"reason": reason,
	}).Info("Forced reannounce")
	if co.notifier != nil {
		co.notifier.ReannounceForced(t.Hash, t.Name, reason)
	}
}

func (co *Coordinator) checkPrecisionClamp(hash, name string) {
	global := co.precision.GlobalAdjustment()
	var bound float64
	switch {
	case global <= 0.95:
		bound = 0.95
	case global >= 1.05:
		bound = 1.05
	default:
		return
	}
	if co.notifier != nil {
		co.notifier.PrecisionClamped(hash, name, global, bound)
	}
}

func (co *Coordinator) stateFor(hash, name string, now float64, uploaded, size int64) *ratecontrol.TorrentState {
	co.mu.Lock()
	defer co.mu.Unlock()

	if s, ok := co.states[hash]; ok {
		return s
	}
	s := ratecontrol.NewTorrentState(hash, name, now, uploaded, size)
	co.states[hash] = s
	return s
}

func (co *Coordinator) evictStale(seen map[string]bool) {
	co.mu.Lock()
	defer co.mu.Unlock()

	for hash := range co.states {
		if !seen[hash] {
			delete(co.states, hash)
			if co.store != nil {
				_ = co.store.DeleteTorrentSnapshot(hash)
			}
			co.cache.DeleteProperties(hash)
		}
	}
}

// loadPersistedState rehydrates cycle bookkeeping from the last run so
// a restart mid-cycle doesn't reset every torrent's sync progress.
func (co *Coordinator) loadPersistedState() {
	if co.store == nil {
		return
	}
	snapshots, err := co.store.LoadTorrentSnapshots()
	if err != nil {
		co.logger.WithError(err).Warn("Failed to load persisted torrent snapshots")
		return
	}

	co.mu.Lock()
	defer co.mu.Unlock()
	for hash, snap := range snapshots {
		s := ratecontrol.NewTorrentState(hash, snap.Name, 0, snap.CycleStartUploaded, 0)
		s.CycleStart = snap.CycleStartTime
		s.CycleStartUploaded = snap.CycleStartUploaded
		s.CycleInterval = snap.CycleInterval
		s.CycleSynced = snap.CycleSynced
		s.JumpCount = snap.JumpCount
		s.LastReannounce = snap.LastReannounce
		co.states[hash] = s
	}
	co.logger.WithField("count", len(snapshots)).Info("Rehydrated torrent cycle state from disk")
}

// persistAll snapshots every tracked torrent's cycle state to disk.
func (co *Coordinator) persistAll() {
	if co.store == nil {
		return
	}
	co.mu.RLock()
	defer co.mu.RUnlock()

	for hash, s := range co.states {
		snap := persistence.TorrentSnapshot{
			Hash:               hash,
			Name:               s.Name,
			CycleStartTime:     s.CycleStart,
			CycleStartUploaded: s.CycleStartUploaded,
			CycleInterval:      s.CycleInterval,
			CycleSynced:        s.CycleSynced,
			JumpCount:          s.JumpCount,
			LastReannounce:     s.LastReannounce,
			GlobalAdjustment:   co.precision.GlobalAdjustment(),
		}
		if err := co.store.SaveTorrentSnapshot(snap); err != nil {
			co.logger.WithError(err).WithField("hash", hash).Warn("Failed to persist torrent snapshot")
		}
	}
}

// Status summarizes the coordinator's current view of a torrent, used
// by the CLI/TUI status surfaces. UpLimit and DLLimit are both in
// bytes per second (<= 0 meaning unlimited), even though the download
// limiter internally tracks KiB/s, so callers never need to know the
// unit difference between the two.
type Status struct {
	Hash        string `json:"hash"`
	Name        string `json:"name"`
	Phase       string `json:"phase"`
	UpLimit     int64  `json:"up_limit"`
	UpReason    string `json:"up_reason"`
	DLLimit     int64  `json:"dl_limit"`
	CycleSynced bool   `json:"cycle_synced"`
	CycleIndex  int    `json:"cycle_index"`
}

// dlLimitBytesPerSec converts a download limiter decision (in KiB/s,
// <= 0 meaning unlimited) to bytes per second for display.
func dlLimitBytesPerSec(kib int64) int64 {
	if kib <= 0 {
		return kib
	}
	return kib * 1024
}

// Snapshot returns a point-in-time status list across all tracked torrents.
func (co *Coordinator) Snapshot() []Status {
	co.mu.RLock()
	defer co.mu.RUnlock()

	out := make([]Status, 0, len(co.states))
	for hash, s := range co.states {
		out = append(out, Status{
			Hash:        hash,
			Name:        s.Name,
			Phase:       string(s.CurrentPhase),
			UpLimit:     s.LastUpLimit,
			UpReason:    s.LastUpReason,
			DLLimit:     dlLimitBytesPerSec(s.LastDLLimit),
			CycleSynced: s.CycleSynced,
			CycleIndex:  s.CycleIndex,
		})
	}
	return out
}

// PrecisionAdjustment exposes the shared precision tracker's global
// multiplier for the status dashboard.
func (co *Coordinator) PrecisionAdjustment() float64 {
	return co.precision.GlobalAdjustment()
}

func safeDivLocal(a, b float64) float64 {
	if b == 0 || (b < 1e-10 && b > -1e-10) {
		return 0
	}
	return a / b
}
