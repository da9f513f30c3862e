//go:build darwin

package adapters

/*
#include <sys/codesign.h>
#include <unistd.h>

static int csops_status(pid_t pid, uint32_t *flags) {
	return csops(pid, CS_OPS_STATUS, flags, sizeof(*flags));
}

static int csops_entitlements(pid_t pid, void *buf, size_t bufsize) {
	return csops(pid, CS_OPS_ENTITLEMENTS_BLOB, buf, bufsize);
}
*/
import "C"

import (
	"encoding/binary"
	"unsafe"
)

// CodeSignKernel queries the kernel's live code-signing flags and
// entitlements for pid via csops(2), independent of re-reading and
// re-validating the on-disk signature (§4.B). Zero value when the process
// has exited or csops fails.
func CodeSignKernel(pid int32) CodeSignKernelInfo {
	var flags C.uint32_t
	if rc := C.csops_status(C.pid_t(pid), &flags); rc != 0 {
		return CodeSignKernelInfo{}
	}
	f := uint32(flags)
	return CodeSignKernelInfo{
		IsValid:         f&csValid != 0,
		IsDebugged:      f&csDebugged != 0,
		FlagBits:        f,
		EntitlementKeys: runtimeEntitlementKeys(pid),
	}
}

// csEntitlementBlobMaxSize bounds the buffer csops(2) writes the runtime
// entitlements blob into; entitlement plists are small, flat key lists so
// this comfortably covers any real binary.
const csEntitlementBlobMaxSize = 64 * 1024

// csMagicEntitlement is CSMAGIC_ENTITLEMENT from cs_blobs.h: the 4-byte
// big-endian magic that opens a CS_GenericBlob holding the entitlements
// plist.
const csMagicEntitlement uint32 = 0xfade7171

// runtimeEntitlementKeys reads the live CS_OPS_ENTITLEMENTS_BLOB for pid —
// the entitlements the kernel is actually enforcing against the running
// process — as opposed to entitlementKeys in codesign.go, which reads the
// on-disk signature's embedded plist. A process with a runtime-injected
// entitlement absent from disk shows up only here.
func runtimeEntitlementKeys(pid int32) []string {
	buf := make([]byte, csEntitlementBlobMaxSize)
	if rc := C.csops_entitlements(C.pid_t(pid), unsafe.Pointer(&buf[0]), C.size_t(len(buf))); rc != 0 {
		return nil
	}
	if len(buf) < 8 {
		return nil
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	length := binary.BigEndian.Uint32(buf[4:8])
	if magic != csMagicEntitlement || int(length) > len(buf) || int(length) < 8 {
		return nil
	}
	plist := buf[8:length]
	var keys []string
	for _, m := range entitlementKeyRE.FindAllSubmatch(plist, -1) {
		keys = append(keys, string(m[1]))
	}
	return keys
}

// CS_VALID and CS_DEBUGGED from <sys/codesign.h>.
const (
	csValid    uint32 = 0x00000001
	csDebugged uint32 = 0x10000000
)
