package ratecontrol

import "sync"

// TorrentState is the per-torrent state machine: it tracks cycle
// boundaries (one cycle per tracker announce interval), owns that
// torrent's Controller/PrecisionTracker inputs, and remembers the last
// decisions made about it so the coordinator can log deltas instead of
// re-deriving everything every tick.
type TorrentState struct {
	mu sync.RWMutex

	Hash string
	Name string

	TimeAdded      float64
	InitialUploaded int64
	TotalSizeStart  int64

	// Cycle bookkeeping. A "jump" is the seconds-to-announce countdown
	// rising by more than 30s between samples, which signals that an
	// announce just happened.
	CycleStart         float64
	CycleStartUploaded int64
	CycleSynced        bool
	CycleInterval      float64
	CycleIndex         int
	JumpCount          int
	LastJump           float64

	lastAnnounceTime float64
	cachedTL         float64
	cacheTS          float64
	cacheValid       bool
	prevTL           float64
	lastObservedTL   float64

	LastUpLimit  int64
	LastUpReason string
	LastDLLimit  int64

	DLLimitedThisCycle    bool
	LastReannounce        float64
	ReannouncedThisCycle  bool
	WaitingReannounce     bool

	LastPeerListCheck  float64
	PeerListUploaded   int64
	ReportSent         bool

	// CurrentPhase is the phase computed on the most recent tick, kept
	// for status reporting without re-reading a stale seconds-to-announce
	// value.
	CurrentPhase Phase

	Controller       *Controller
	SpeedTracker     *SessionSpeedTracker
}

// NewTorrentState returns a fresh state machine for a torrent first
// observed at `now` with `initialUploaded` bytes already uploaded.
func NewTorrentState(hash, name string, now float64, initialUploaded, totalSize int64) *TorrentState {
	return &TorrentState{
		Hash:               hash,
		Name:               name,
		TimeAdded:          now,
		InitialUploaded:    initialUploaded,
		TotalSizeStart:     totalSize,
		CycleStart:         now,
		CycleStartUploaded: initialUploaded,
		LastDLLimit:        -1,
		Controller:         NewController(),
		SpeedTracker:       NewSessionSpeedTracker(),
	}
}

// GetAnnounceInterval estimates the tracker's announce interval from
// how long this torrent has been tracked: newly added torrents are
// assumed to announce more frequently than long-lived seeds, since most
// trackers back off the interval for established peers.
func (s *TorrentState) GetAnnounceInterval(now float64) float64 {
	s.mu.RLock()
	added := s.TimeAdded
	s.mu.RUnlock()

	age := now - added
	switch {
	case age < 7*86400:
		return 1800
	case age < 30*86400:
		return 2700
	default:
		return 3600
	}
}

// GetTL returns the seconds remaining until the next announce, using a
// phase-keyed cached value when still fresh and otherwise invoking
// fetch to pull a current reading (e.g. the qBittorrent `reannounce`
// property) and re-caching it.
func (s *TorrentState) GetTL(now float64, phase Phase, fetch func() (float64, error)) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := PropsCacheTTL(phase).Seconds()
	if s.cacheValid && now-s.cacheTS < ttl {
		return s.cachedTL, nil
	}

	tl, err := fetch()
	if err != nil {
		if s.prevTL > 0 {
			return s.prevTL, nil
		}
		return 0, err
	}

	s.cachedTL = tl
	s.cacheTS = now
	s.cacheValid = true
	s.prevTL = tl
	return tl, nil
}

// GetPhase classifies this torrent's current operating phase from a
// freshly-observed seconds-to-announce value.
func (s *TorrentState) GetPhase(secondsToAnnounce float64) Phase {
	s.mu.RLock()
	synced := s.CycleSynced
	s.mu.RUnlock()
	return ClassifyPhase(secondsToAnnounce, synced)
}

// Elapsed returns the seconds elapsed in the current cycle.
func (s *TorrentState) Elapsed(now float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now - s.CycleStart
}

// UploadedInCycle returns the bytes uploaded since the current cycle
// started, given the torrent's current cumulative uploaded counter.
func (s *TorrentState) UploadedInCycle(currentUploaded int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up := currentUploaded - s.CycleStartUploaded
	if up < 0 {
		return 0
	}
	return up
}

// EstimateTotal projects the bytes that will have been uploaded by the
// end of the current cycle (tl seconds from now), from the Kalman
// filter's speed/acceleration trajectory plus what's already uploaded.
func (s *TorrentState) EstimateTotal(currentUploaded int64, tl float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(currentUploaded) + s.Controller.kalman.PredictUpload(tl)
}

// GetRealAvgSpeed returns the mean upload speed (bytes/s) achieved so
// far in the current cycle.
func (s *TorrentState) GetRealAvgSpeed(currentUploaded int64, now float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up := currentUploaded - s.CycleStartUploaded
	if up < 0 {
		up = 0
	}
	elapsed := now - s.CycleStart
	return safeDiv(float64(up), elapsed, 0)
}

// NewCycle rolls the state machine over to a new announce cycle.
// isJump signals that ObserveTL saw the seconds-to-announce countdown
// jump back up (i.e. an announce was detected). The cycle is considered
// synced with the tracker once a second jump has been observed, at
// which point the measured interval (time between the two jumps) is
// stored in CycleInterval for the mid-cycle back-dating below;
// GetAnnounceInterval keeps returning its age-based estimate.
func (s *TorrentState) NewCycle(now float64, uploaded int64, tl float64, isJump bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isJump {
		s.JumpCount++
		if s.JumpCount == 2 {
			s.CycleSynced = true
			s.CycleInterval = now - s.LastJump
		}
		s.LastJump = now
	}

	switch {
	case isJump:
		// Fresh announce boundary: start counting from exactly here.
		s.CycleStartUploaded = uploaded
	case !s.CycleSynced:
		// First cycle, before the tracker has confirmed an announce —
		// best guess is "whatever's uploaded right now".
		s.CycleStartUploaded = uploaded
	default:
		// Re-attaching mid-cycle (e.g. after a daemon restart): back-date
		// the cycle start using the Kalman speed estimate so the
		// mid-cycle gap isn't double-counted against the new target.
		elapsedGuess := s.CycleInterval - tl
		if elapsedGuess < 0 {
			elapsedGuess = 0
		}
		backdated := s.Controller.kalman.PredictUpload(elapsedGuess)
		s.CycleStartUploaded = uploaded - int64(backdated)
	}

	s.CycleStart = now
	s.CycleIndex++
	s.ReportSent = false
	s.DLLimitedThisCycle = false
	s.ReannouncedThisCycle = false
	s.WaitingReannounce = false
	s.LastDLLimit = -1
	s.Controller.Reset()
	s.SpeedTracker.Clear()
}

// ObserveTL feeds a freshly-read seconds-to-announce value into the
// cycle state machine's jump detector: a tracker announce has almost
// certainly just happened if the countdown has risen by more than 30s
// since the previous sample, whatever that sample was. When a jump is
// detected, it rolls the cycle over via NewCycle and reports true so
// the caller can record the closing cycle's achieved ratio.
func (s *TorrentState) ObserveTL(now float64, uploaded int64, tl float64) bool {
	s.mu.Lock()
	last := s.lastObservedTL
	s.lastObservedTL = tl
	s.mu.Unlock()

	jump := last > 0 && tl-last > 30
	if jump {
		s.NewCycle(now, uploaded, tl, true)
	} else if s.TimeAdded == now {
		// First observation ever: nothing to roll, cycle already
		// anchored at construction time.
		return false
	}
	return jump
}

// IsWaitingReannounce reports whether the reannounce optimizer is
// holding off an optimized announce, waiting for the tracker to
// clearly observe the torrent's upload speed drop. While true, the
// coordinator caps the upload limit at ReannounceWaitLimit instead of
// whatever the rate controller would otherwise compute.
func (s *TorrentState) IsWaitingReannounce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.WaitingReannounce
}

// ThisUp returns bytes uploaded in the current cycle, an alias kept for
// parity with the download-limiter/reannounce-optimizer helpers which
// read it directly.
func (s *TorrentState) ThisUp(currentUploaded int64) float64 {
	return float64(s.UploadedInCycle(currentUploaded))
}

// ThisTime returns seconds elapsed in the current cycle.
func (s *TorrentState) ThisTime(now float64) float64 {
	return s.Elapsed(now)
}
