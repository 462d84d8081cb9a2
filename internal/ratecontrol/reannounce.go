package ratecontrol

// ShouldReannounce decides whether to force an immediate tracker
// announce because the torrent has been running hot enough that it's
// worth reporting the overshoot now rather than waiting for the next
// natural announce — getting credit for the upload sooner, and letting
// the controller re-target against a fresh cycle. It enforces a cooldown
// (ReannounceMinInterval) between forced announces so this never turns
// into a hammering loop.
func ShouldReannounce(state *TorrentState, totalUploaded, totalDone, totalSize int64, upSpeed, dlSpeed, now float64) (bool, string) {
	if state.LastReannounce > 0 && now-state.LastReannounce < ReannounceMinInterval {
		return false, ""
	}

	thisUp := state.ThisUp(totalUploaded)
	thisTime := state.ThisTime(now)
	if thisTime < 30 {
		return false, ""
	}

	avgUp, avgDL := state.SpeedTracker.GetAvgSpeeds(now, ReannounceSpeedSamples)
	if avgUp <= SpeedLimitBytes || avgDL <= 0 {
		return false, ""
	}

	remaining := totalSize - totalDone
	if remaining <= 0 {
		return false, ""
	}

	announceInterval := state.GetAnnounceInterval(now)
	completeTime := float64(remaining)/avgDL + now
	perfectTime := completeTime - announceInterval*SpeedLimitBytes/avgUp

	var earliest float64
	if thisUp/thisTime > SpeedLimitBytes {
		earliest = (thisUp-SpeedLimitBytes*thisTime)/earliestRateBytes + now
	} else {
		earliest = now
	}

	if earliest-(now-thisTime) < ReannounceMinInterval {
		return false, ""
	}

	if earliest > perfectTime {
		if now >= earliest {
			if thisUp/thisTime > SpeedLimitBytes {
				return true, "optimized report"
			}
		} else if earliest < perfectTime+60 {
			state.mu.Lock()
			state.WaitingReannounce = true
			state.mu.Unlock()
			return false, "waiting to report"
		}
	}
	return false, ""
}

// CheckWaitingReannounce re-evaluates a torrent previously flagged by
// ShouldReannounce as "waiting to report": once the cycle has run for
// at least ReannounceMinInterval and its average speed has dropped
// below SpeedLimitBytes, it returns true with reason "average
// recovered", and the coordinator forces the announce.
func CheckWaitingReannounce(state *TorrentState, totalUploaded int64, now float64) (bool, string) {
	state.mu.RLock()
	waiting := state.WaitingReannounce
	state.mu.RUnlock()
	if !waiting {
		return false, ""
	}

	thisUp := state.ThisUp(totalUploaded)
	thisTime := state.ThisTime(now)
	if thisTime < ReannounceMinInterval {
		return false, ""
	}

	avgSpeed := thisUp / thisTime
	if avgSpeed < SpeedLimitBytes {
		return true, "average recovered"
	}
	return false, ""
}
