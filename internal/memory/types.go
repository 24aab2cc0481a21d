// Package memory classifies a target's VMAs and, using a trace.Controller
// as its oracle into the stopped target, reads them into MemoryDumps at
// checkpoint time and writes them back at restore time.
package memory

import (
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/time/rate"
)

// MemoryDump is a captured region: the region metadata plus an optional
// opaque byte buffer. Valid is set only after a successful read; when
// Valid is true len(Bytes) always equals Region.Size().
type MemoryDump struct {
	Region procfs.MemoryRegion
	Bytes  []byte
	Valid  bool
}

// SelectionOptions mirrors the CheckpointOptions flags that govern which
// regions the Memory Manager dumps. SkipReadOnly defaults to true at the
// checkpoint package layer; this package takes whatever is given.
type SelectionOptions struct {
	DumpHeap          bool
	DumpStack         bool
	DumpAnonymous     bool
	IncludeFileBacked bool
	SkipReadOnly      bool
}

// ProgressFunc reports (stageName, fraction-complete) during a dump or
// restore pass. Implementations must not themselves call back into the
// Target Controller for the same pid.
type ProgressFunc func(stage string, frac float64)

// reporter throttles calls to a ProgressFunc via a token-bucket rate
// limiter so a caller wiring progress into a terminal UI isn't flooded by
// a large region count. The final call for a stage (frac == 1.0) always
// goes through regardless of the limiter.
type reporter struct {
	cb      ProgressFunc
	limiter *rate.Limiter
}

func newReporter(cb ProgressFunc, limiter *rate.Limiter) *reporter {
	return &reporter{cb: cb, limiter: limiter}
}

func (r *reporter) report(stage string, frac float64) {
	if r == nil || r.cb == nil {
		return
	}
	if frac >= 1.0 || r.limiter == nil || r.limiter.Allow() {
		r.cb(stage, frac)
	}
}
