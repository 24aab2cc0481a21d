package memory

import (
	"fmt"

	"github.com/ripwire-labs/procsnap/internal/errkind"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/time/rate"
)

// RestoreResult aggregates the per-region outcome of a WriteBack call,
// feeding directly into the Checkpointer's RestoreOutcome.
type RestoreResult struct {
	Restored int
	Failed   int
	Skipped  int
	Warnings []string
}

// Writer is the subset of trace.Controller this package writes memory
// through; see Reader for why this is an interface rather than a
// concrete *trace.Controller parameter.
type Writer interface {
	WriteMemory(addr uint64, data []byte) error
}

// WriteBack writes each valid dump back into the stopped target behind
// ctrl, relocated by shift (capturedAddr + shift = liveAddr, see
// internal/aslr.Shift). liveRegions is the restore target's current map;
// a dump whose shifted range is not fully contained by some live region is
// skipped with a warning rather than attempted, because this system never
// mmaps new regions into the target (spec.md 4.D). If ignoreErrors is
// false, the first region write failure aborts the remainder and is
// returned as err; otherwise failures are collected into the result and
// writing continues.
func WriteBack(ctrl Writer, dumps []MemoryDump, shift int64, liveRegions []procfs.MemoryRegion, ignoreErrors bool, progress ProgressFunc, limiter *rate.Limiter, lg *gwlog.Logger) (RestoreResult, error) {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	rep := newReporter(progress, limiter)

	var total uint64
	for _, d := range dumps {
		if d.Valid {
			total += d.Region.Size()
		}
	}

	var result RestoreResult
	var done uint64

	for _, d := range dumps {
		if !d.Valid {
			result.Skipped++
			continue
		}
		liveStart := uint64(int64(d.Region.Start) + shift)
		liveEnd := uint64(int64(d.Region.End) + shift)
		if !containsRange(liveRegions, liveStart, liveEnd) {
			msg := fmt.Sprintf("region %#x-%#x has no matching live mapping at %#x-%#x, skipped", d.Region.Start, d.Region.End, liveStart, liveEnd)
			result.Warnings = append(result.Warnings, msg)
			result.Skipped++
			lg.Warn("restore region has no live mapping", gwlog.KV("liveStart", liveStart), gwlog.KV("liveEnd", liveEnd))
			continue
		}

		var writeErr error
		for off := uint64(0); off < uint64(len(d.Bytes)); off += chunkSize {
			end := off + chunkSize
			if end > uint64(len(d.Bytes)) {
				end = uint64(len(d.Bytes))
			}
			chunk := d.Bytes[off:end]
			if err := ctrl.WriteMemory(liveStart+off, chunk); err != nil {
				writeErr = err
				break
			}
			done += uint64(len(chunk))
			if total > 0 {
				rep.report("restore", float64(done)/float64(total))
			}
		}
		if writeErr != nil {
			result.Failed++
			msg := fmt.Sprintf("region %#x-%#x: %v", liveStart, liveEnd, writeErr)
			result.Warnings = append(result.Warnings, msg)
			lg.Warn("memory restore region failed", gwlog.KV("liveStart", liveStart), gwlog.KVErr(writeErr))
			if !ignoreErrors {
				rep.report("restore", 1.0)
				return result, errkind.MemoryWriteFailed(liveStart, d.Region.Size(), writeErr)
			}
			continue
		}
		result.Restored++
	}
	rep.report("restore", 1.0)
	return result, nil
}

// containsRange reports whether some region in live fully contains [start, end).
func containsRange(live []procfs.MemoryRegion, start, end uint64) bool {
	for _, r := range live {
		if r.Start <= start && end <= r.End {
			return true
		}
	}
	return false
}
