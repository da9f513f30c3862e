//go:build darwin

package adapters

/*
#include <mach/mach.h>

// collect_tasks walks every processor set's task list and writes each
// task's pid into out, up to cap entries, returning the count written (or
// -1 on failure). This is the Mach-side enumeration source: it never
// touches /proc-equivalents or libproc, so a process hidden from those but
// still scheduled shows up here (§4.B, §4.J census contradiction).
static int collect_tasks(pid_t *out, int cap) {
	processor_set_name_array_t psets;
	mach_msg_type_number_t pset_count;
	host_t host = mach_host_self();

	kern_return_t kr = host_processor_sets(host, &psets, &pset_count);
	if (kr != KERN_SUCCESS) {
		return -1;
	}

	int n = 0;
	for (mach_msg_type_number_t i = 0; i < pset_count && n < cap; i++) {
		processor_set_t pset;
		if (host_processor_set_priv(host, psets[i], &pset) != KERN_SUCCESS) {
			continue;
		}
		task_array_t tasks;
		mach_msg_type_number_t task_count;
		if (processor_set_tasks(pset, &tasks, &task_count) != KERN_SUCCESS) {
			mach_port_deallocate(mach_task_self(), pset);
			continue;
		}
		for (mach_msg_type_number_t j = 0; j < task_count && n < cap; j++) {
			pid_t pid;
			if (pid_for_task(tasks[j], &pid) == KERN_SUCCESS) {
				out[n++] = pid;
			}
			mach_port_deallocate(mach_task_self(), tasks[j]);
		}
		vm_deallocate(mach_task_self(), (vm_address_t)tasks, task_count * sizeof(task_t));
		mach_port_deallocate(mach_task_self(), pset);
	}
	vm_deallocate(mach_task_self(), (vm_address_t)psets, pset_count * sizeof(processor_set_t));
	return n;
}
*/
import "C"

// MachTaskEntry is one row of MachTaskEnumerate's output.
type MachTaskEntry struct {
	PID int32
}

const machTaskEnumerateCap = 16384

// MachTaskEnumerate walks the Mach processor-set task list, a PID
// enumeration source independent of both the BSD process list
// (EnumerateBSDProcesses) and libproc. Requires host-priv access; returns
// nil rather than a partial list when that access is unavailable.
func MachTaskEnumerate() []MachTaskEntry {
	buf := make([]C.pid_t, machTaskEnumerateCap)
	n := C.collect_tasks(&buf[0], C.int(machTaskEnumerateCap))
	if n < 0 {
		return nil
	}
	out := make([]MachTaskEntry, 0, n)
	seen := make(map[int32]bool, n)
	for i := 0; i < int(n); i++ {
		pid := int32(buf[i])
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, MachTaskEntry{PID: pid})
	}
	return out
}
