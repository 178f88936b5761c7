// Package state persists run history in a bbolt database so past
// syncs of a profile can be inspected with the history command.
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.dav-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database
	// lock. A watch-mode process holds it for its whole lifetime.
	stateOpenTimeout = 5 * time.Second

	// MaxRuns is how many runs are kept per profile. Older ones are
	// pruned on insert.
	MaxRuns = 100
)

var profilesBucket = []byte("profiles")

func runsBucket(profile string) []byte {
	return []byte("profile:" + profile + ":runs")
}

// ProfileKey identifies a sync profile. The password is never part of
// it.
func ProfileKey(url, user, localRoot, remoteBase string) string {
	return strings.Join([]string{url, user, localRoot, remoteBase}, "|")
}

// RunRecord is the persisted summary of one sync run.
type RunRecord struct {
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Policy   string         `json:"policy"`
	Planned  int            `json:"planned"`
	Applied  int            `json:"applied"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Ops      map[string]int `json:"ops,omitempty"`
	Aborted  bool           `json:"aborted"`
	DryRun   bool           `json:"dry_run"`
	Error    string         `json:"error,omitempty"`
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.dav-sync/state.db, creating it if
// it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// DefaultPath returns ~/.dav-sync/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".dav-sync", "state.db"), nil
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)

	return k
}

// RecordRun appends a run to the profile's history and prunes the
// oldest entries beyond MaxRuns.
func (s *State) RecordRun(profile string, rec RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(profilesBucket).Put([]byte(profile), []byte(rec.Started.UTC().Format(time.RFC3339))); err != nil {
			return err
		}

		b, err := tx.CreateBucketIfNotExists(runsBucket(profile))
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}

		// Deleting while iterating a cursor skips keys, so collect first.
		var keys [][]byte

		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		if len(keys) <= MaxRuns {
			return nil
		}

		for _, k := range keys[:len(keys)-MaxRuns] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

// Runs returns up to limit runs for a profile, newest first. A limit
// of zero or less returns all of them.
func (s *State) Runs(profile string, limit int) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket(profile))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			runs = append(runs, rec)
		}

		return nil
	})

	return runs, err
}

// LastRun returns the most recent run for a profile, or nil if none
// was recorded.
func (s *State) LastRun(profile string) (*RunRecord, error) {
	runs, err := s.Runs(profile, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}

	return &runs[0], nil
}

// Profiles returns every profile with recorded runs, mapped to the
// start time of its latest run.
func (s *State) Profiles() (map[string]time.Time, error) {
	result := make(map[string]time.Time)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(k, v []byte) error {
			ts, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return err
			}

			result[string(k)] = ts

			return nil
		})
	})

	return result, err
}

// DeleteProfile removes a profile and its run history.
func (s *State) DeleteProfile(profile string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(profilesBucket).Delete([]byte(profile)); err != nil {
			return err
		}

		if tx.Bucket(runsBucket(profile)) == nil {
			return nil
		}

		return tx.DeleteBucket(runsBucket(profile))
	})
}
