// Package snapshot implements Component A: a one-pass, fail-soft capture of
// the running process census that every probe in a scan shares read-only.
package snapshot

import (
	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// Capture enumerates PIDs via the platform's BSD process list
// (kern.proc.all) and, for each PID, resolves its executable path and
// parent PID in a tight loop with no inter-dependency between PIDs.
// Unreadable fields fail soft to "" / 0 rather than aborting the capture —
// a handful of unreadable processes must never block the whole scan.
func Capture() *model.ProcessSnapshot {
	procs := adapters.EnumerateBSDProcesses()

	snap := &model.ProcessSnapshot{
		PIDs:    make([]int, 0, len(procs)),
		Paths:   make(map[int]string, len(procs)),
		Parents: make(map[int]int, len(procs)),
	}
	for _, p := range procs {
		pid := int(p.PID)
		snap.PIDs = append(snap.PIDs, pid)
		snap.Parents[pid] = int(p.PPID)
		snap.Paths[pid] = adapters.ExecPath(p.PID)
	}
	return snap
}
