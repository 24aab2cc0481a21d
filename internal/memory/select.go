package memory

import "github.com/ripwire-labs/procsnap/internal/procfs"

// kernelOwned names the kernel-owned synthetic mappings that can never be
// written from userspace and are always excluded regardless of options.
var kernelOwned = map[string]bool{
	"[vvar]":     true,
	"[vdso]":     true,
	"[vsyscall]": true,
}

// Select applies the CheckpointOptions selection rules (spec.md 4.D) to
// regions, returning the ordered subset that should be dumped.
func Select(regions []procfs.MemoryRegion, opts SelectionOptions) []procfs.MemoryRegion {
	var out []procfs.MemoryRegion
	for _, r := range regions {
		if kernelOwned[r.Pathname] {
			continue
		}
		if !r.Private {
			// Shared regions may be observed by other processes; writing
			// them back at restore would affect those processes too.
			continue
		}
		if opts.SkipReadOnly && !r.Writable {
			continue
		}
		if !selected(r, opts) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func selected(r procfs.MemoryRegion, opts SelectionOptions) bool {
	switch {
	case r.Named("[heap]"):
		return opts.DumpHeap
	case r.Named("[stack]"):
		return opts.DumpStack
	case r.Pathname == "":
		return opts.DumpAnonymous
	default:
		return opts.IncludeFileBacked
	}
}
