package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ripwire-labs/procsnap/checkpoint"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

func runRestore(fs *flag.FlagSet, args []string) {
	idFlag := fs.String("checkpoint", "", "checkpoint id to restore (default: most recent for the pid)")
	stopped := fs.Bool("leave-stopped", false, "leave the target stopped after restore instead of resuming it")
	noStrict := fs.Bool("no-strict", false, "tolerate a missing live text region instead of failing on ASLR mismatch")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	pid, err := requirePid(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := openConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: config:", err)
		os.Exit(1)
	}
	lg, err := cfg.GetLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: logger:", err)
		os.Exit(1)
	}

	store, err := checkpoint.OpenStore(cfg.Checkpoint.Store_Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: store:", err)
		os.Exit(1)
	}

	meta, err := resolveCheckpoint(store, pid, *idFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap:", err)
		os.Exit(1)
	}

	cp, err := checkpoint.DecodeFile(meta.ArtifactPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: decode artifact:", err)
		os.Exit(1)
	}

	opts := checkpoint.DefaultRestoreOptions()
	opts.ContinueAfterRestore = !*stopped
	opts.Strict = !*noStrict

	cpr := checkpoint.New(lg)
	outcome, err := cpr.Restore(pid, cp, opts)
	result := "success"
	if err != nil || !outcome.Success {
		result = "failed"
	} else if outcome.RegionsFailed > 0 || outcome.FdsFailed > 0 {
		result = "partial"
	}
	_ = store.Audit(checkpoint.AuditRecord{
		Pid: pid, Operation: "restore", Result: result,
		Detail: fmt.Sprintf("checkpoint=%s shift=%d regions=%d/%d fds=%d/%d", meta.ID, outcome.AslrShift, outcome.RegionsRestored, outcome.RegionsRestored+outcome.RegionsFailed, outcome.FdsRestored, outcome.FdsRestored+outcome.FdsFailed),
	})
	if err != nil {
		lg.Error("checkpoint restore failed", gwlog.KV("pid", pid), gwlog.KVErr(err))
		fmt.Fprintln(os.Stderr, "procsnap: restore:", err)
		os.Exit(1)
	}

	fmt.Printf("checkpoint %s restored into pid %d (aslrShift=%d, regions=%d/%d, fds=%d/%d, success=%v)\n",
		meta.ID, pid, outcome.AslrShift, outcome.RegionsRestored, outcome.RegionsRestored+outcome.RegionsFailed,
		outcome.FdsRestored, outcome.FdsRestored+outcome.FdsFailed, outcome.Success)
	for _, w := range outcome.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

// resolveCheckpoint looks up idStr if given, otherwise the most recently
// recorded checkpoint for pid.
func resolveCheckpoint(store *checkpoint.Store, pid int, idStr string) (checkpoint.CheckpointMeta, error) {
	if idStr != `` {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return checkpoint.CheckpointMeta{}, fmt.Errorf("invalid -checkpoint id %q: %w", idStr, err)
		}
		meta, found, err := store.Get(id)
		if err != nil {
			return checkpoint.CheckpointMeta{}, err
		}
		if !found {
			return checkpoint.CheckpointMeta{}, fmt.Errorf("no checkpoint recorded with id %s", idStr)
		}
		return meta, nil
	}
	metas, err := store.List(pid)
	if err != nil {
		return checkpoint.CheckpointMeta{}, err
	}
	if len(metas) == 0 {
		return checkpoint.CheckpointMeta{}, fmt.Errorf("no checkpoints recorded for pid %d", pid)
	}
	return metas[0], nil // newest first
}
