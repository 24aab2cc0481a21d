package fdtable

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
)

// CaptureOptions governs which of a target's fds are recorded.
type CaptureOptions struct {
	// IncludeStdio captures fds 0, 1, and 2; off by default since these are
	// almost always inherited terminal/pipe endpoints that make no sense to
	// reopen independently of the parent that set them up.
	IncludeStdio bool
	Policy       Policy
}

// Capture classifies raw procfs entries into Entry values, marking each
// restorable or not per opts.Policy. It never touches the target beyond the
// already-gathered fds slice: no injection happens here.
func Capture(fds []procfs.FileDescriptorEntry, opts CaptureOptions, lg *gwlog.Logger) []Entry {
	if lg == nil {
		lg = gwlog.NewDiscardLogger()
	}
	out := make([]Entry, 0, len(fds))
	for _, fd := range fds {
		if !opts.IncludeStdio && fd.Fd <= 2 {
			continue
		}
		e := Entry{FileDescriptorEntry: fd}
		e.Restorable, e.Reason = classify(fd, opts.Policy)
		if !e.Restorable {
			lg.Warn("fd not restorable", gwlog.KV("fd", fd.Fd), gwlog.KV("path", fd.Path), gwlog.KV("reason", e.Reason))
		}
		out = append(out, e)
	}
	return out
}

func classify(fd procfs.FileDescriptorEntry, policy Policy) (bool, string) {
	if fd.Type != procfs.FdRegular {
		return false, fmt.Sprintf("fd type %s is not restorable", fd.Type)
	}
	for _, pat := range policy.Deny {
		if matched, _ := doublestar.Match(pat, fd.Path); matched {
			return false, fmt.Sprintf("path denied by policy pattern %q", pat)
		}
	}
	if len(policy.Allow) > 0 {
		allowed := false
		for _, pat := range policy.Allow {
			if matched, _ := doublestar.Match(pat, fd.Path); matched {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "path not matched by any allow pattern"
		}
	}
	return true, ""
}
