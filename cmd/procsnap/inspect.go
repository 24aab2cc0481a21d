package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ripwire-labs/procsnap/checkpoint"
)

func runInspect(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "procsnap: inspect requires a <checkpoint-id> argument")
		os.Exit(2)
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: invalid checkpoint id:", err)
		os.Exit(2)
	}

	cfg, err := openConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: config:", err)
		os.Exit(1)
	}
	store, err := checkpoint.OpenStore(cfg.Checkpoint.Store_Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: store:", err)
		os.Exit(1)
	}
	meta, found, err := store.Get(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: lookup:", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "procsnap: no checkpoint recorded with id %s\n", id)
		os.Exit(1)
	}

	cp, err := checkpoint.DecodeFile(meta.ArtifactPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "procsnap: decode artifact:", err)
		os.Exit(1)
	}

	fmt.Printf("id:          %s\n", cp.ID)
	fmt.Printf("name:        %s\n", cp.Name)
	fmt.Printf("created:     %s\n", cp.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("pid:         %d\n", cp.Pid)
	fmt.Printf("aslr policy: %s\n", cp.Aslr)
	fmt.Printf("rip:         %#x\n", cp.Registers.Rip)
	fmt.Printf("regions:     %d\n", len(cp.Regions))
	validDumps, invalidDumps := 0, 0
	for _, d := range cp.Dumps {
		if d.Valid {
			validDumps++
		} else {
			invalidDumps++
		}
	}
	fmt.Printf("dumps:       %d valid, %d invalid\n", validDumps, invalidDumps)
	restorableFds := 0
	for _, e := range cp.Fds {
		if e.Restorable {
			restorableFds++
		}
	}
	fmt.Printf("fds:         %d captured, %d restorable\n", len(cp.Fds), restorableFds)
	fmt.Printf("total bytes: %d\n", cp.TotalBytes)
}
