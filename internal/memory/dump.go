package memory

import (
	"fmt"

	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"golang.org/x/time/rate"
)

// chunkSize bounds how much is read from the target in one ReadMemory
// call, so a single huge region doesn't require one giant allocation and
// so progress can be reported mid-region.
const chunkSize = 1 << 20 // 1 MiB

// Reader is the subset of trace.Controller this package reads memory
// through. Accepting an interface (rather than *trace.Controller
// concretely) lets tests exercise the selection/chunking/warning logic
// here against a fake target without a real kernel or a real ptrace stop.
type Reader interface {
	ReadMemory(addr uint64, n int) ([]byte, error)
}

// Dump reads regions (already filtered by Select) from the stopped target
// behind ctrl, in map order, producing one MemoryDump per region. A region
// whose read fails partway still gets a dump entry (Valid=false) so its
// metadata survives into the artifact; reading continues with the next
// region rather than aborting, matching spec.md 4.D. warnings carries one
// message per failed region.
func Dump(ctrl Reader, regions []procfs.MemoryRegion, progress ProgressFunc, limiter *rate.Limiter, lg *gwlog.Logger) ([]MemoryDump, []string) {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	rep := newReporter(progress, limiter)

	var total uint64
	for _, r := range regions {
		total += r.Size()
	}

	dumps := make([]MemoryDump, 0, len(regions))
	var warnings []string
	var done uint64

	for _, region := range regions {
		buf := make([]byte, 0, region.Size())
		var failErr error
		for off := uint64(0); off < region.Size(); off += chunkSize {
			n := chunkSize
			if remaining := region.Size() - off; remaining < chunkSize {
				n = int(remaining)
			}
			chunk, err := ctrl.ReadMemory(region.Start+off, n)
			buf = append(buf, chunk...)
			done += uint64(len(chunk))
			if total > 0 {
				rep.report("dump", float64(done)/float64(total))
			}
			if err != nil {
				failErr = err
				break
			}
		}
		if failErr != nil {
			msg := fmt.Sprintf("region %#x-%#x (%s): %v", region.Start, region.End, region.Pathname, failErr)
			warnings = append(warnings, msg)
			lg.Warn("memory dump region failed", gwlog.KV("start", region.Start), gwlog.KV("end", region.End), gwlog.KVErr(failErr))
			dumps = append(dumps, MemoryDump{Region: region, Valid: false})
			continue
		}
		dumps = append(dumps, MemoryDump{Region: region, Bytes: buf, Valid: true})
	}
	rep.report("dump", 1.0)
	return dumps, warnings
}
