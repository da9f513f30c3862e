//go:build darwin

package adapters

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// procArgsRaw returns the raw KERN_PROCARGS2 buffer for pid: a 4-byte argc
// followed by the NUL-terminated exec path, padding, argv, then envp, all
// NUL-separated. Empty on any failure — unreadable for sandboxed or
// already-exited processes.
func procArgsRaw(pid int32) []byte {
	mib := []int32{unix.CTL_KERN, unix.KERN_PROCARGS2, pid}

	var size uintptr
	if err := sysctlRaw(mib, nil, &size); err != nil || size == 0 {
		return nil
	}
	buf := make([]byte, size)
	if err := sysctlRaw(mib, &buf[0], &size); err != nil {
		return nil
	}
	return buf[:size]
}

// sysctlRaw wraps the raw __sysctl(2) syscall for a numeric mib, mirroring
// what golang.org/x/sys/unix does internally for named sysctls but for
// KERN_PROCARGS2, which has no sysctlbyname() equivalent.
func sysctlRaw(mib []int32, oldp *byte, oldlenp *uintptr) error {
	_, _, errno := unix.Syscall6(
		unix.SYS___SYSCTL,
		uintptr(unsafe.Pointer(&mib[0])),
		uintptr(len(mib)),
		uintptr(unsafe.Pointer(oldp)),
		uintptr(unsafe.Pointer(oldlenp)),
		0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// ProcessArgs returns the argv of pid, tolerating truncation (§4.B).
func ProcessArgs(pid int32) []string {
	args, _ := parseProcArgs2(procArgsRaw(pid))
	return args
}

// ProcessEnv returns the environment of pid as ordered key/value pairs,
// parsed from the same raw buffer immediately following argv.
func ProcessEnv(pid int32) []KV {
	_, env := parseProcArgs2(procArgsRaw(pid))
	return env
}

// KV is an ordered environment entry; order is preserved from the kernel
// buffer, duplicates are not collapsed.
type KV struct {
	Key   string
	Value string
}

// parseProcArgs2 decodes the KERN_PROCARGS2 wire format:
//
//	[argc int32][exec_path\0][padding \0...][argv[0]\0]...[argv[argc-1]\0][\0...][env[0]\0]...
func parseProcArgs2(buf []byte) ([]string, []KV) {
	if len(buf) < 4 {
		return nil, nil
	}
	argc := int(binary.LittleEndian.Uint32(buf[:4]))
	if argc < 0 || argc > 1<<16 {
		return nil, nil
	}
	rest := buf[4:]

	// Skip the exec_path, then skip NUL padding up to the first argv.
	i := indexByte(rest, 0)
	if i < 0 {
		return nil, nil
	}
	rest = rest[i:]
	for len(rest) > 0 && rest[0] == 0 {
		rest = rest[1:]
	}

	var args []string
	for n := 0; n < argc && len(rest) > 0; n++ {
		end := indexByte(rest, 0)
		if end < 0 {
			args = append(args, string(rest))
			return args, nil
		}
		args = append(args, string(rest[:end]))
		rest = rest[end+1:]
	}

	for len(rest) > 0 && rest[0] == 0 {
		rest = rest[1:]
	}

	var env []KV
	for len(rest) > 0 {
		end := indexByte(rest, 0)
		var entry string
		if end < 0 {
			entry = string(rest)
			rest = nil
		} else {
			entry = string(rest[:end])
			rest = rest[end+1:]
		}
		if entry == "" {
			continue
		}
		k, v := splitKV(entry)
		env = append(env, KV{Key: k, Value: v})
	}
	return args, env
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func splitKV(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// ExecPath returns the executable path embedded at the front of the
// KERN_PROCARGS2 buffer, used by the process snapshot to resolve a PID's
// path without a second adapter call.
func ExecPath(pid int32) string {
	buf := procArgsRaw(pid)
	if len(buf) < 4 {
		return ""
	}
	rest := buf[4:]
	i := indexByte(rest, 0)
	if i < 0 {
		return ""
	}
	return string(rest[:i])
}
