// Package fdtable captures a target's open file descriptors at checkpoint
// time and, for the subset the operator's policy marks restorable, reopens
// them in a live target at restore time by injecting openat/dup2/close/
// lseek syscalls through a trace.Controller.
package fdtable

import "github.com/ripwire-labs/procsnap/internal/procfs"

// Entry is one captured file descriptor, carrying both the raw procfs data
// and the restorability verdict computed at capture time.
type Entry struct {
	procfs.FileDescriptorEntry
	Restorable bool
	Reason     string // why Restorable is false; empty when true
}

// Policy controls which captured fds are eligible for reinjection at
// restore time. Only FdRegular entries are ever restorable regardless of
// policy; Policy further narrows that set by path.
type Policy struct {
	// Allow, if non-empty, is a doublestar glob list; a path must match at
	// least one pattern to be restorable. Empty means "allow everything not
	// denied".
	Allow []string
	// Deny is a doublestar glob list checked before Allow; a path matching
	// any pattern here is never restorable. Defaults to DefaultDeny when
	// nil (see NewPolicy).
	Deny []string
}

// DefaultDeny excludes paths that are virtually always wrong to reopen
// blind: synthetic procfs/sysfs/devfs entries whose reopened fd would not
// behave like the one actually captured.
var DefaultDeny = []string{
	"/proc/**",
	"/sys/**",
	"/dev/**",
}

// NewPolicy returns a Policy with DefaultDeny applied when deny is nil.
func NewPolicy(allow, deny []string) Policy {
	if deny == nil {
		deny = DefaultDeny
	}
	return Policy{Allow: allow, Deny: deny}
}

// RestoreResult aggregates the per-fd outcome of a Restore call.
type RestoreResult struct {
	Restored int
	Skipped  int
	Failed   int
	Warnings []string
}
