//go:build darwin

package adapters

/*
#include <stdint.h>

typedef uint32_t csr_config_t;

extern int csr_get_active_config(csr_config_t *config);
extern int csr_check(csr_config_t mask);
*/
import "C"

// CSRFlag is one bit of System Integrity Protection's active-config word,
// queryable independently via both csr_get_active_config and csr_check.
type CSRFlag uint32

// CSR flag bits, as defined in <sys/csr.h>.
const (
	CSRAllowUntrustedKexts       CSRFlag = 0x1
	CSRAllowUnrestrictedFS       CSRFlag = 0x2
	CSRAllowTaskForPID           CSRFlag = 0x4
	CSRAllowKernelDebugger       CSRFlag = 0x8
	CSRAllowAppleInternal        CSRFlag = 0x10
	CSRAllowUnrestrictedDtrace   CSRFlag = 0x20
	CSRAllowUnrestrictedNVRAM    CSRFlag = 0x40
	CSRAllowDeviceConfiguration  CSRFlag = 0x80
	CSRAllowAnyRecoveryOS        CSRFlag = 0x100
	CSRAllowUnapprovedKexts      CSRFlag = 0x200
	CSRAllowExecutablePolicyOverride CSRFlag = 0x400
	CSRAllowUnauthenticatedRoot  CSRFlag = 0x800
)

// AllCSRFlags lists every flag bit SIPContradiction cross-checks against
// CSRCheck.
var AllCSRFlags = []CSRFlag{
	CSRAllowUntrustedKexts, CSRAllowUnrestrictedFS, CSRAllowTaskForPID,
	CSRAllowKernelDebugger, CSRAllowAppleInternal, CSRAllowUnrestrictedDtrace,
	CSRAllowUnrestrictedNVRAM, CSRAllowDeviceConfiguration, CSRAllowAnyRecoveryOS,
	CSRAllowUnapprovedKexts, CSRAllowExecutablePolicyOverride, CSRAllowUnauthenticatedRoot,
}

// CSRActiveConfig returns the kernel's SIP active-config word, or 0 with ok
// false on any failure (e.g. running on non-Apple-Silicon without the call).
func CSRActiveConfig() (config uint32, ok bool) {
	var c C.csr_config_t
	if C.csr_get_active_config(&c) != 0 {
		return 0, false
	}
	return uint32(c), true
}

// CSRCheck reports whether flag's corresponding restriction is lifted,
// queried independently of the stored active-config word via csr_check(3).
// csr_check returns 0 when the bit is set (the restriction is bypassed).
func CSRCheck(flag CSRFlag) bool {
	return C.csr_check(C.csr_config_t(flag)) == 0
}
