package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/raainshe/ratemind/internal/logging"
)

var (
	bucketTorrentStates = []byte("torrent_states")
	bucketStats         = []byte("stats")
	bucketRuntimeConfig = []byte("runtime_config")
)

// TorrentSnapshot is the persisted form of a ratecontrol.TorrentState,
// enough to resume cycle/phase bookkeeping across a daemon restart
// without re-deriving it from a cold Kalman filter.
type TorrentSnapshot struct {
	Hash               string  `json:"hash"`
	Name               string  `json:"name"`
	CycleStartTime     float64 `json:"cycle_start_time"`
	CycleStartUploaded int64   `json:"cycle_start_uploaded"`
	CycleInterval      float64 `json:"cycle_interval"`
	CycleSynced        bool    `json:"cycle_synced"`
	JumpCount          int     `json:"jump_count"`
	LastReannounce     float64 `json:"last_reannounce"`
	GlobalAdjustment   float64 `json:"global_adjustment"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CycleStats is a per-torrent record of how close a completed cycle
// came to its upload target, read back by the report generator for its
// charts. The precision tracker is not seeded from these records and
// starts empty after a restart.
type CycleStats struct {
	Hash      string    `json:"hash"`
	Phase     string    `json:"phase"`
	Ratio     float64   `json:"ratio"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Store wraps a bbolt database holding torrent cycle state, historical
// precision-ratio stats, and runtime config overrides (the daemon's
// only state that must survive a restart — everything else is
// recomputed from qBittorrent's own counters on the next tick).
type Store struct {
	db     *bbolt.DB
	logger *logging.Logger
}

// Open opens (creating if absent) the bbolt database at path and
// ensures all required buckets exist.
func Open(path string) (*Store, error) {
	logger := logging.GetPersistenceLogger()

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketTorrentStates, bucketStats, bucketRuntimeConfig} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("State store opened")
	return &Store{db: db, logger: logger}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	s.logger.Info("Closing state store")
	return s.db.Close()
}

// SaveTorrentSnapshot upserts a torrent's cycle bookkeeping.
func (s *Store) SaveTorrentSnapshot(snap TorrentSnapshot) error {
	snap.UpdatedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal torrent snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTorrentStates).Put([]byte(snap.Hash), data)
	})
}

// LoadTorrentSnapshots returns every persisted torrent snapshot, keyed
// by hash, for the coordinator to rehydrate TorrentState on startup.
func (s *Store) LoadTorrentSnapshots() (map[string]TorrentSnapshot, error) {
	out := make(map[string]TorrentSnapshot)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTorrentStates).ForEach(func(k, v []byte) error {
			var snap TorrentSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				s.logger.WithError(err).WithField("hash", string(k)).Warn("Skipping corrupt torrent snapshot")
				return nil
			}
			out[snap.Hash] = snap
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load torrent snapshots: %w", err)
	}
	return out, nil
}

// DeleteTorrentSnapshot removes a snapshot, e.g. once a torrent is
// removed from qBittorrent entirely.
func (s *Store) DeleteTorrentSnapshot(hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTorrentStates).Delete([]byte(hash))
	})
}

// AppendCycleStat records a completed cycle's achieved ratio. Keys are
// hash + closing timestamp so history accumulates without collisions;
// callers are expected to periodically call PruneCycleStats.
func (s *Store) AppendCycleStat(stat CycleStats) error {
	stat.ClosedAt = time.Now()
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle stat: %w", err)
	}

	key := fmt.Sprintf("%s:%d", stat.Hash, stat.ClosedAt.UnixNano())
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStats).Put([]byte(key), data)
	})
}

// LoadCycleStats returns all persisted cycle stats for a hash, oldest
// first, used by the report generator's per-torrent ratio chart.
func (s *Store) LoadCycleStats(hash string) ([]CycleStats, error) {
	var out []CycleStats
	prefix := []byte(hash + ":")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketStats).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var stat CycleStats
			if err := json.Unmarshal(v, &stat); err != nil {
				continue
			}
			out = append(out, stat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle stats for %s: %w", hash, err)
	}
	return out, nil
}

// LoadAllCycleStats returns every recorded cycle stat across every
// torrent, used by the report generator's daemon-wide trend chart.
func (s *Store) LoadAllCycleStats() ([]CycleStats, error) {
	var out []CycleStats

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketStats).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var stat CycleStats
			if err := json.Unmarshal(v, &stat); err != nil {
				continue
			}
			out = append(out, stat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load all cycle stats: %w", err)
	}
	return out, nil
}

// PruneCycleStats removes stat entries older than maxAge, keeping the
// stats bucket from growing unbounded over long uptimes.
func (s *Store) PruneCycleStats(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStats)
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var stat CycleStats
			if err := json.Unmarshal(v, &stat); err != nil {
				continue
			}
			if stat.ClosedAt.Before(cutoff) {
				key := append([]byte(nil), k...)
				toDelete = append(toDelete, key)
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// SetRuntimeOverride persists a named runtime config override (e.g. a
// reload-triggered or CLI-triggered tuning change not yet written back
// to the config file).
func (s *Store) SetRuntimeOverride(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuntimeConfig).Put([]byte(key), value)
	})
}

// GetRuntimeOverride retrieves a previously persisted runtime override.
func (s *Store) GetRuntimeOverride(key string) ([]byte, bool) {
	var value []byte
	_ = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRuntimeConfig).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
