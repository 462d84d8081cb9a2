package ratecontrol

// CalcDownloadLimit decides whether this torrent's download speed needs
// an auxiliary cap so its own downloading doesn't starve the upload
// side when upload has been running hot (well above SpeedLimitBytes)
// for a sustained stretch. Returns a limit in KiB/s (-1 meaning
// "release any existing cap") and a short reason code.
//
// state.LastUpLimit/LastDLLimit are read, not written — the caller
// applies the returned limit and updates state itself.
func CalcDownloadLimit(state *TorrentState, totalUploaded, totalDone, totalSize int64, eta int64, upSpeed, dlSpeed float64, now float64) (int64, string) {
	thisUp := state.ThisUp(totalUploaded)
	thisTime := state.ThisTime(now)
	if thisTime < 2 {
		return -1, ""
	}

	avgSpeed := thisUp / thisTime
	if avgSpeed <= SpeedLimitBytes {
		if state.LastDLLimit > 0 {
			return -1, "average recovered"
		}
		return -1, ""
	}

	remaining := totalSize - totalDone
	if remaining <= 0 {
		return -1, ""
	}

	minTime := int64(DLLimitMinTime)
	if state.LastUpLimit > 0 {
		minTime *= 2
	}

	if state.LastDLLimit <= 0 {
		if eta > 0 && eta <= minTime {
			denominator := thisUp/SpeedLimitBytes - thisTime + DLLimitBuffer
			if denominator <= 0 {
				return DLLimitMin, "severely over-speed"
			}
			dlLimit := float64(remaining) / denominator / 1024
			limit := int64(dlLimit)
			if limit < DLLimitMin {
				limit = DLLimitMin
			}
			return limit, "average over limit"
		}
		return -1, ""
	}

	if avgSpeed >= SpeedLimitBytes {
		if dlSpeed/1024 < 2*float64(state.LastDLLimit) {
			denominator := thisUp/SpeedLimitBytes - thisTime + DLLimitAdjustBuffer
			if denominator <= 0 {
				return DLLimitMin, "severely over-speed"
			}
			newLimit := float64(remaining) / denominator / 1024
			if newLimit > DLLimitSpeedCap {
				newLimit = DLLimitSpeedCap
			}
			if newLimit > 1.5*float64(state.LastDLLimit) {
				newLimit = 1.5 * float64(state.LastDLLimit)
			} else if newLimit < float64(state.LastDLLimit) {
				newLimit = newLimit / 1.5
			}
			limit := int64(newLimit)
			if limit < DLLimitMin {
				limit = DLLimitMin
			}
			return limit, "adjusting"
		}
		return state.LastDLLimit, "holding"
	}

	return -1, "average recovered"
}
