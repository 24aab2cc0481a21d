package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	bucketAudit        = []byte("audit")
)

// CheckpointMeta is the small, fast-to-scan record Store keeps per
// checkpoint, so the CLI's list/inspect/history commands don't need to
// reparse every artifact on disk just to show a summary.
type CheckpointMeta struct {
	ID           uuid.UUID
	Name         string
	Pid          int
	CreatedAt    time.Time
	ArtifactPath string
	TotalBytes   uint64
}

// AuditRecord is one append-only entry in the audit trail: a checkpoint or
// restore operation, its outcome, and when it happened. This is observer
// data for the operator, never consulted by the core's control flow.
type AuditRecord struct {
	Pid       int
	Operation string // "create" or "restore"
	Result    string // "success", "partial", "failed"
	Detail    string
	At        time.Time
}

// Store is a local, file-locked registry of checkpoint metadata and an
// audit trail, backed by an embedded bbolt database. Each Store method
// takes its own flock around the database file, so two procsnap
// invocations never interleave writes to the same registry.
type Store struct {
	dbPath   string
	lockPath string
}

// OpenStore returns a Store whose registry lives at dir/registry.db.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create store dir %s: %w", dir, err)
	}
	return &Store{
		dbPath:   filepath.Join(dir, "registry.db"),
		lockPath: filepath.Join(dir, "registry.db.lock"),
	}, nil
}

func (s *Store) withLock(fn func(db *bolt.DB) error) error {
	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("checkpoint: lock registry: %w", err)
	}
	defer lock.Unlock()

	db, err := bolt.Open(s.dbPath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: open registry: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// Record inserts or replaces meta's entry, keyed by its checkpoint ID.
func (s *Store) Record(meta CheckpointMeta) error {
	return s.withLock(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
			if err != nil {
				return err
			}
			val, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			return b.Put([]byte(meta.ID.String()), val)
		})
	})
}

// List returns every recorded checkpoint for pid, newest first. Passing
// pid <= 0 returns every recorded checkpoint regardless of source pid.
func (s *Store) List(pid int) ([]CheckpointMeta, error) {
	var out []CheckpointMeta
	err := s.withLock(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketCheckpoints)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				var m CheckpointMeta
				if err := json.Unmarshal(v, &m); err != nil {
					return nil // skip a corrupt record rather than failing the whole list
				}
				if pid <= 0 || m.Pid == pid {
					out = append(out, m)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	sortMetaNewestFirst(out)
	return out, nil
}

func sortMetaNewestFirst(metas []CheckpointMeta) {
	for i := 1; i < len(metas); i++ {
		for j := i; j > 0 && metas[j].CreatedAt.After(metas[j-1].CreatedAt); j-- {
			metas[j], metas[j-1] = metas[j-1], metas[j]
		}
	}
}

// Get returns the recorded metadata for id.
func (s *Store) Get(id uuid.UUID) (CheckpointMeta, bool, error) {
	var meta CheckpointMeta
	var found bool
	err := s.withLock(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketCheckpoints)
			if b == nil {
				return nil
			}
			v := b.Get([]byte(id.String()))
			if v == nil {
				return nil
			}
			found = true
			return json.Unmarshal(v, &meta)
		})
	})
	return meta, found, err
}

// Audit appends rec to the audit trail. Entries are keyed by
// pid + the bucket's zero-padded sequence number, so ForEach walks one
// pid's entries in insertion order.
func (s *Store) Audit(rec AuditRecord) error {
	return s.withLock(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bucketAudit)
			if err != nil {
				return err
			}
			val, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%d-%020d", rec.Pid, seq)
			return b.Put([]byte(key), val)
		})
	})
}

// AuditTrail returns every audit record for pid in insertion order.
// pid <= 0 returns every recorded audit entry.
func (s *Store) AuditTrail(pid int) ([]AuditRecord, error) {
	var out []AuditRecord
	err := s.withLock(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketAudit)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				var rec AuditRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return nil
				}
				if pid <= 0 || rec.Pid == pid {
					out = append(out, rec)
				}
				return nil
			})
		})
	})
	return out, err
}

// Prune drops the oldest recorded checkpoints for pid beyond keep, removing
// both their registry entry and their artifact file. It implements the
// watch mode's retention-count policy.
func (s *Store) Prune(pid int, keep int) error {
	metas, err := s.List(pid)
	if err != nil {
		return err
	}
	if keep < 0 || len(metas) <= keep {
		return nil
	}
	drop := metas[keep:]
	return s.withLock(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketCheckpoints)
			if b == nil {
				return nil
			}
			for _, m := range drop {
				if err := os.Remove(m.ArtifactPath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("checkpoint: prune artifact %s: %w", m.ArtifactPath, err)
				}
				if err := b.Delete([]byte(m.ID.String())); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// artifactPath is the conventional on-disk location for a checkpoint's
// binary artifact within dir.
func artifactPath(dir string, id uuid.UUID) string {
	return filepath.Join(dir, "checkpoint-"+id.String()+".bin")
}

// artifactPathForPid is a human-browsable alternative filename scheme,
// useful when an operator lists a directory directly instead of querying
// the registry. Not used by Store itself.
func artifactPathForPid(dir string, pid int, id uuid.UUID) string {
	return filepath.Join(dir, strconv.Itoa(pid)+"-"+id.String()+".bin")
}
