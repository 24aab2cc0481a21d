package checkpoint

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStoreRecordAndGet(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	meta := CheckpointMeta{ID: uuid.New(), Name: "c1", Pid: 111, CreatedAt: time.Unix(1000, 0).UTC(), ArtifactPath: "/tmp/c1.bin"}
	if err := store.Record(meta); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, found, err := store.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("expected record to be found")
	}
	if got.Name != meta.Name || got.Pid != meta.Pid {
		t.Fatalf("got %+v want %+v", got, meta)
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	_, found, err := store.Get(uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("expected no record to be found")
	}
}

func TestStoreListFiltersByPidAndOrdersNewestFirst(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	base := time.Unix(1000, 0).UTC()
	metas := []CheckpointMeta{
		{ID: uuid.New(), Pid: 111, CreatedAt: base},
		{ID: uuid.New(), Pid: 111, CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), Pid: 222, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, m := range metas {
		if err := store.Record(m); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(111)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for pid 111, got %d", len(got))
	}
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering, got %+v", got)
	}

	all, err := store.List(0)
	if err != nil {
		t.Fatalf("List(0): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected List(0) to return all entries, got %d", len(all))
	}
}

func TestStoreAuditTrail(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	recs := []AuditRecord{
		{Pid: 111, Operation: "create", Result: "success", At: time.Unix(1000, 0)},
		{Pid: 111, Operation: "restore", Result: "partial", At: time.Unix(2000, 0)},
		{Pid: 222, Operation: "create", Result: "success", At: time.Unix(1500, 0)},
	}
	for _, r := range recs {
		if err := store.Audit(r); err != nil {
			t.Fatalf("Audit: %v", err)
		}
	}

	got, err := store.AuditTrail(111)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 audit records for pid 111, got %d", len(got))
	}
	if got[0].Operation != "create" || got[1].Operation != "restore" {
		t.Fatalf("expected insertion order preserved, got %+v", got)
	}
}

func TestStorePruneRemovesOldestBeyondKeep(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	base := time.Unix(1000, 0).UTC()
	var metas []CheckpointMeta
	for i := 0; i < 3; i++ {
		m := CheckpointMeta{
			ID:           uuid.New(),
			Pid:          111,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
			ArtifactPath: dir + "/artifact-" + uuid.NewString() + ".bin",
		}
		if err := writeEmptyFile(m.ArtifactPath); err != nil {
			t.Fatalf("writeEmptyFile: %v", err)
		}
		metas = append(metas, m)
		if err := store.Record(m); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := store.Prune(111, 1); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	remaining, err := store.List(111)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining checkpoint, got %d", len(remaining))
	}
	if remaining[0].ID != metas[2].ID {
		t.Fatalf("expected the newest checkpoint to survive pruning, got %+v", remaining[0])
	}
}

func writeEmptyFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}
