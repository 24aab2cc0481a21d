package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ripwire-labs/procsnap/checkpoint"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

func runCreate(fs *flag.FlagSet, args []string) {
	name := fs.String("name", "", "human-readable name for the checkpoint")
	noFds := fs.Bool("no-fds", false, "skip capturing the fd table")
	stdio := fs.Bool("include-stdio", false, "include fds 0/1/2 in the captured table")
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

	outcome, meta, err := createCheckpoint(cfg, lg, pid, *name, !*noFds, *stdio)
	if err != nil {
		lg.Error("checkpoint create failed", gwlog.KV("pid", pid), gwlog.KVErr(err))
		fmt.Fprintln(os.Stderr, "procsnap: create:", err)
		os.Exit(1)
	}

	fmt.Printf("checkpoint %s created for pid %d (%d regions dumped, %d failed, %d fds captured, %d bytes)\n",
		meta.ID, pid, outcome.RegionsDumped, outcome.RegionsFailed, outcome.FdsCaptured, outcome.Checkpoint.TotalBytes)
	for _, w := range outcome.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

// createCheckpoint is the shared body behind the create and all subcommands:
// capture pid, write the artifact, record it in the store, and append an
// audit entry - regardless of which subcommand drove the call.
func createCheckpoint(cfg cfgType, lg *gwlog.Logger, pid int, name string, captureFds, includeStdio bool) (checkpoint.CheckpointOutcome, storeMeta, error) {
	cp := checkpoint.New(lg)
	opts := checkpoint.DefaultCheckpointOptions()
	opts.CaptureFds = captureFds
	opts.IncludeStdioFds = includeStdio
	opts.FdPolicy = cfg.FdPolicy()

	outcome, err := cp.Create(pid, name, opts)
	if err != nil {
		return outcome, storeMeta{}, err
	}

	store, err := checkpoint.OpenStore(cfg.Checkpoint.Store_Dir)
	if err != nil {
		return outcome, storeMeta{}, err
	}
	artifactPath := filepath.Join(cfg.Checkpoint.Store_Dir, "checkpoint-"+outcome.Checkpoint.ID.String()+".bin")
	if err := checkpoint.EncodeFile(artifactPath, outcome.Checkpoint); err != nil {
		return outcome, storeMeta{}, err
	}
	meta := checkpoint.CheckpointMeta{
		ID:           outcome.Checkpoint.ID,
		Name:         outcome.Checkpoint.Name,
		Pid:          pid,
		CreatedAt:    outcome.Checkpoint.CreatedAt,
		ArtifactPath: artifactPath,
		TotalBytes:   outcome.Checkpoint.TotalBytes,
	}
	if err := store.Record(meta); err != nil {
		return outcome, storeMeta{}, err
	}
	result := "success"
	if outcome.RegionsFailed > 0 {
		result = "partial"
	}
	_ = store.Audit(checkpoint.AuditRecord{
		Pid: pid, Operation: "create", Result: result,
		Detail: fmt.Sprintf("regions=%d failed=%d fds=%d", outcome.RegionsDumped, outcome.RegionsFailed, outcome.FdsCaptured),
		At:     outcome.Checkpoint.CreatedAt,
	})
	return outcome, meta, nil
}

type storeMeta = checkpoint.CheckpointMeta

// requirePid parses fs's first positional argument as a pid.
func requirePid(fs *flag.FlagSet) (int, error) {
	if fs.NArg() < 1 {
		return 0, fmt.Errorf("missing required <pid> argument")
	}
	pid, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q: %w", fs.Arg(0), err)
	}
	return pid, nil
}
