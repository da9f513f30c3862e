//go:build darwin

package adapters

import "golang.org/x/sys/unix"

// Sysctl reads a named sysctl string value, returning "" on any failure.
func Sysctl(name string) string {
	v, err := unix.Sysctl(name)
	if err != nil {
		return ""
	}
	return v
}

// SysctlUint32 reads a named sysctl integer value, returning 0 on failure.
func SysctlUint32(name string) uint32 {
	v, err := unix.SysctlUint32(name)
	if err != nil {
		return 0
	}
	return v
}

// AmfiEnabled reports the kernel's AMFI enforcement state.
func AmfiEnabled() bool {
	return SysctlUint32("security.mac.amfi.enabled") != 0
}

// BootArgs returns the raw nvram-backed kernel boot-args string.
func BootArgs() string {
	return Sysctl("kern.bootargs")
}

// IsVM reports whether the kernel believes it is running under a hypervisor.
func IsVM() bool {
	return SysctlUint32("kern.hv_vmm_present") != 0
}

// SecureKernel reports whether the kernel reports a UAMDM/secure-boot chain.
func SecureKernel() bool {
	return SysctlUint32("kern.secure_kernel") != 0
}

// KinfoProcEntry is one row of the BSD-style process list, read via
// kern.proc.all — independent of both libproc and the Mach task walk, the
// first of the three enumeration sources the census contradiction probe
// compares (§4.J).
type KinfoProcEntry struct {
	PID  int32
	PPID int32
	Comm string
}

// EnumerateBSDProcesses lists every process visible to kern.proc.all. Empty
// on failure rather than a partial or stale list.
func EnumerateBSDProcesses() []KinfoProcEntry {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil
	}
	out := make([]KinfoProcEntry, 0, len(procs))
	for _, p := range procs {
		out = append(out, KinfoProcEntry{
			PID:  p.Proc.P_pid,
			PPID: p.Eproc.Ppid,
			Comm: commString(p.Proc.P_comm[:]),
		})
	}
	return out
}

func commString(b []byte) string {
	n := indexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}
