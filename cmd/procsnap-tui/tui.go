package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/ripwire-labs/procsnap/checkpoint"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
	"github.com/ripwire-labs/procsnap/internal/procfs"
	"github.com/shirou/gopsutil/v4/process"
)

// tui is the application state behind procsnap-tui: a process picker on the
// left, a live region/fd detail pane on the right, and a help footer - the
// same grid/menu/detail shape the teacher's migrate tool uses.
type tui struct {
	app    *tview.Application
	picker *tview.List
	detail *tview.TextView
	help   *tview.TextView
	grid   *tview.Grid

	cfg    cfgType
	lg     *gwlog.Logger
	reader *procfs.Reader

	selectedPid int
}

func newTUI(cfg cfgType, lg *gwlog.Logger, reader *procfs.Reader) *tui {
	return &tui{cfg: cfg, lg: lg, reader: reader}
}

func (t *tui) run() error {
	t.app = tview.NewApplication()
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			t.app.Stop()
			return nil
		case tcell.KeyCtrlR:
			t.refreshPicker()
			return nil
		case tcell.KeyCtrlS:
			t.checkpointSelected()
			return nil
		}
		return event
	})

	t.picker = tview.NewList()
	t.picker.SetBorder(true).SetTitle("Processes")

	t.detail = tview.NewTextView().SetChangedFunc(func() { t.app.Draw() })
	t.detail.SetBorder(true).SetTitle("Detail")
	t.detail.SetDynamicColors(false)

	t.help = tview.NewTextView().SetChangedFunc(func() { t.app.Draw() })
	t.help.SetBorder(true).SetTitle("Help")
	t.help.Write([]byte("Ctrl-R: refresh process list   Ctrl-S: checkpoint selected pid   Ctrl-C: quit"))

	t.grid = tview.NewGrid().
		SetRows(0, 4).
		SetColumns(30, 0).
		AddItem(t.picker, 0, 0, 1, 1, 0, 0, true).
		AddItem(t.detail, 0, 1, 1, 1, 0, 0, false).
		AddItem(t.help, 1, 0, 1, 2, 0, 0, false)

	t.refreshPicker()

	return t.app.SetRoot(t.grid, true).SetFocus(t.picker).Run()
}

// refreshPicker repopulates the process list from gopsutil, the same
// CLI-only supplementary discovery path the list subcommand uses.
func (t *tui) refreshPicker() {
	t.picker.Clear()
	procs, err := process.Processes()
	if err != nil {
		t.detail.SetText(fmt.Sprintf("failed to list processes: %v", err))
		return
	}
	type row struct {
		pid     int32
		cmdline string
	}
	rows := make([]row, 0, len(procs))
	for _, p := range procs {
		cmdline, _ := p.Cmdline()
		if cmdline == `` {
			name, _ := p.Name()
			cmdline = name
		}
		rows = append(rows, row{pid: p.Pid, cmdline: cmdline})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pid < rows[j].pid })
	for _, r := range rows {
		pid := r.pid
		t.picker.AddItem(fmt.Sprintf("%d", pid), r.cmdline, 0, func() {
			t.selectedPid = int(pid)
			t.showDetail(int(pid))
		})
	}
}

// showDetail renders the live memory regions and fd table for pid, read
// directly from /proc - the TUI never ptrace-attaches just to browse.
func (t *tui) showDetail(pid int) {
	regions, err := t.reader.Maps(pid)
	if err != nil {
		t.detail.SetText(fmt.Sprintf("pid %d: maps: %v", pid, err))
		return
	}
	fds, err := t.reader.Fds(pid)
	if err != nil {
		t.detail.SetText(fmt.Sprintf("pid %d: fds: %v", pid, err))
		return
	}

	out := fmt.Sprintf("pid %d\n\nregions (%d):\n", pid, len(regions))
	for _, r := range regions {
		out += fmt.Sprintf("  %012x-%012x %s%s%s%s %s\n",
			r.Start, r.End,
			permChar(r.Readable, 'r'), permChar(r.Writable, 'w'), permChar(r.Executable, 'x'), permChar(r.Private, 'p'),
			r.Pathname)
	}
	out += fmt.Sprintf("\nfds (%d):\n", len(fds))
	for _, fd := range fds {
		out += fmt.Sprintf("  %3d %-9s %s\n", fd.Fd, fd.Type, fd.Path)
	}
	t.detail.SetText(out)
}

func permChar(set bool, c byte) string {
	if set {
		return string(c)
	}
	return "-"
}

// checkpointSelected captures the pid last selected (Enter) in the picker,
// reusing the same Checkpointer/Store the CLI's create subcommand
// does, so a checkpoint taken here shows up in `procsnap history`.
func (t *tui) checkpointSelected() {
	if t.selectedPid == 0 {
		return
	}
	pid := t.selectedPid

	store, err := checkpoint.OpenStore(t.cfg.Checkpoint.Store_Dir)
	if err != nil {
		t.detail.SetText(fmt.Sprintf("pid %d: open store: %v", pid, err))
		return
	}

	cp := checkpoint.New(t.lg)
	opts := checkpoint.DefaultCheckpointOptions()
	outcome, err := cp.Create(pid, "tui-checkpoint", opts)
	if err != nil {
		t.detail.SetText(fmt.Sprintf("pid %d: checkpoint failed: %v", pid, err))
		return
	}

	artifactPath := fmt.Sprintf("%s/checkpoint-%s.bin", t.cfg.Checkpoint.Store_Dir, outcome.Checkpoint.ID)
	if err := checkpoint.EncodeFile(artifactPath, outcome.Checkpoint); err != nil {
		t.detail.SetText(fmt.Sprintf("pid %d: encode artifact: %v", pid, err))
		return
	}
	_ = store.Record(checkpoint.CheckpointMeta{
		ID: outcome.Checkpoint.ID, Name: outcome.Checkpoint.Name, Pid: pid,
		CreatedAt: outcome.Checkpoint.CreatedAt, ArtifactPath: artifactPath, TotalBytes: outcome.Checkpoint.TotalBytes,
	})
	_ = store.Audit(checkpoint.AuditRecord{Pid: pid, Operation: "create", Result: "success", At: time.Now(), Detail: "via tui"})

	t.detail.SetText(fmt.Sprintf("pid %d: checkpoint %s captured (%d regions, %d failed)",
		pid, outcome.Checkpoint.ID, outcome.RegionsDumped, outcome.RegionsFailed))
}
