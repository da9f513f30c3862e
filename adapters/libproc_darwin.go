//go:build darwin

package adapters

/*
#include <libproc.h>
#include <stdlib.h>

static int list_all_pids(pid_t *out, int cap) {
	int n = proc_listallpids(out, cap * sizeof(pid_t));
	if (n < 0) {
		return -1;
	}
	if (n > cap) {
		n = cap;
	}
	return n;
}

static int pid_path(pid_t pid, char *buf, int buflen) {
	return proc_pidpath(pid, buf, (uint32_t)buflen);
}
*/
import "C"

const libprocMaxPIDs = 16384

// LibprocListAllPIDs lists every PID visible to proc_listallpids — the
// second of the three enumeration sources the census contradiction probe
// compares, independent of both the BSD kern.proc.all sysctl and the Mach
// processor-set task walk (§4.B, §4.J).
func LibprocListAllPIDs() []int32 {
	buf := make([]C.pid_t, libprocMaxPIDs)
	n := C.list_all_pids(&buf[0], C.int(libprocMaxPIDs))
	if n < 0 {
		return nil
	}
	out := make([]int32, n)
	for i := 0; i < int(n); i++ {
		out[i] = int32(buf[i])
	}
	return out
}

// LibprocPath resolves pid's executable path via proc_pidpath. "" on
// failure (already-exited process, insufficient privilege).
func LibprocPath(pid int32) string {
	buf := make([]C.char, 4096)
	n := C.pid_path(C.pid_t(pid), &buf[0], C.int(len(buf)))
	if n <= 0 {
		return ""
	}
	return C.GoStringN(&buf[0], n)
}
