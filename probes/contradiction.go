// Package probes' contradiction family (§4.J) is the engine's
// differentiator: each probe compares two or more independent views of the
// same kernel fact and treats disagreement itself as the finding.
package probes

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// ProcessCensus unions the BSD process list, libproc's enumeration, and the
// Mach processor-set task walk. A PID missing from the Mach view but
// visible elsewhere is a DKOM-style hide; missing from any other source is
// a softer process-hiding signal.
func ProcessCensus(ctx *model.ScanContext) []model.Finding {
	bsd := make(map[int]bool, len(ctx.Snapshot.PIDs))
	for _, pid := range ctx.Snapshot.PIDs {
		bsd[pid] = true
	}
	libproc := make(map[int]bool)
	for _, pid := range adapters.LibprocListAllPIDs() {
		libproc[int(pid)] = true
	}
	mach := make(map[int]bool)
	for _, t := range adapters.MachTaskEnumerate() {
		mach[int(t.PID)] = true
	}
	if len(libproc) == 0 || len(mach) == 0 {
		// An independent source was unavailable (the Mach walk needs
		// host-priv access); comparing against an empty view would flag
		// every PID, so there is nothing to contradict against.
		return nil
	}
	return censusFindings(bsd, libproc, mach, ctx.Snapshot.Paths, ctx.Now)
}

// censusFindings is ProcessCensus's pure comparison core, split out from
// the live adapter calls so the union/disagreement logic can be exercised
// directly: a PID missing only from the Mach view is a DKOM-style hide
// (critical); missing from any other single source is a softer hiding
// signal (high).
func censusFindings(bsd, libproc, mach map[int]bool, paths map[int]string, now time.Time) []model.Finding {
	union := make(map[int]bool, len(bsd))
	for pid := range bsd {
		union[pid] = true
	}
	for pid := range libproc {
		union[pid] = true
	}
	for pid := range mach {
		union[pid] = true
	}

	var findings []model.Finding
	for pid := range union {
		inBSD, inLibproc, inMach := bsd[pid], libproc[pid], mach[pid]
		if inBSD && inLibproc && inMach {
			continue
		}
		var present, absent []string
		note := func(name string, in bool) {
			if in {
				present = append(present, name)
			} else {
				absent = append(absent, name)
			}
		}
		note("bsd", inBSD)
		note("libproc", inLibproc)
		note("mach", inMach)

		technique, sev := "Process Hiding", model.SeverityHigh
		if !inMach && (inBSD || inLibproc) {
			technique, sev = "DKOM Hidden Process", model.SeverityCritical
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ProcessPath: paths[pid],
			Technique:   technique,
			Description: "process enumeration sources disagree on PID " + itoa(pid),
			Severity:    sev,
			MitreID:     "T1014",
			ScannerID:   "process-census",
			Evidence: []string{
				"pid=" + itoa(pid),
				"present_in=" + strings.Join(present, ","),
				"absent_from=" + strings.Join(absent, ","),
			},
			Timestamp: now,
		})
	}
	return findings
}

// systemDaemonAllowlist is the closed set of Apple daemons allowed to hold
// sockets the flow collector never attributes (it observes user-space
// traffic through a network extension that some system paths bypass).
var systemDaemonAllowlist = map[string]bool{
	"mDNSResponder": true, "identityservicesd": true, "apsd": true, "nsurlsessiond": true,
}

// NetworkGhost compares live per-PID socket enumeration against the PID
// set the external flow collector attributed traffic to, and checks every
// socket-owning PID for liveness.
func NetworkGhost(ctx *model.ScanContext) []model.Finding {
	collectorPIDs := make(map[int]bool, len(ctx.Connections))
	for _, c := range ctx.Connections {
		collectorPIDs[c.PID] = true
	}

	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		sockets := adapters.SocketEnumerate(int32(pid))
		if len(sockets) == 0 {
			continue
		}
		procName := filepath.Base(ctx.Snapshot.Paths[pid])

		hasActiveNonLoopback := false
		for _, s := range sockets {
			if s.State == "LISTEN" || s.RemoteAddr == "" || s.RemoteAddr == "127.0.0.1" || s.RemoteAddr == "::1" {
				continue
			}
			hasActiveNonLoopback = true
		}
		if hasActiveNonLoopback && !collectorPIDs[pid] && !systemDaemonAllowlist[procName] {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindNetwork,
				PID:         pid,
				ProcessName: procName,
				ProcessPath: ctx.Snapshot.Paths[pid],
				Technique:   "Proxy-Invisible Network Activity",
				Description: "process holds active non-loopback sockets the flow collector never attributed to it",
				Severity:    model.SeverityHigh,
				MitreID:     "T1205",
				ScannerID:   "network-ghost",
				Evidence:    []string{"path=" + ctx.Snapshot.Paths[pid], "pid=" + itoa(pid)},
				Timestamp:   ctx.Now,
			})
		}

		if !adapters.ProcessAlive(int32(pid)) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindNetwork,
				PID:         pid,
				ProcessName: procName,
				ProcessPath: ctx.Snapshot.Paths[pid],
				Technique:   "Orphaned Network Socket",
				Description: "socket's owning PID fails a liveness probe (process no longer exists)",
				Severity:    model.SeverityCritical,
				MitreID:     "T1205",
				ScannerID:   "network-ghost",
				Evidence:    []string{"path=" + ctx.Snapshot.Paths[pid], "pid=" + itoa(pid)},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

// sipProtectedTestPath is the location SIPContradiction's behavioral probe
// attempts to write to and remove; /System itself is SIP-protected on any
// stock install.
const sipProtectedTestPath = "/System/.hostwarden-sip-probe"

// csrEnabledValue is the NVRAM csr-active-config word SIP ships as enabled
// (all restrictions in force) on a stock install.
const csrEnabledValue = 0

// SIPContradiction cross-checks the kernel's CSR active-config word, a
// behavioral write probe against a SIP-protected path, the NVRAM mirror of
// the same config word, and per-flag csr_check results against the config
// word's own bits.
func SIPContradiction(ctx *model.ScanContext) []model.Finding {
	kernelConfig, haveKernel := adapters.CSRActiveConfig()
	if !haveKernel {
		return nil
	}
	kernelSIPEnabled := kernelConfig == csrEnabledValue

	writeErr := attemptProtectedWrite(sipProtectedTestPath)
	writeSucceeded := writeErr == nil
	writeDeniedByPermission := os.IsPermission(writeErr)

	var findings []model.Finding
	if kernelSIPEnabled && writeSucceeded {
		findings = append(findings, sipFinding(ctx, "SIP Integrity Violation", model.SeverityCritical,
			"kernel reports SIP enabled but a write to a SIP-protected path succeeded"))
	}
	if !kernelSIPEnabled && writeDeniedByPermission {
		findings = append(findings, sipFinding(ctx, "SIP Report Inconsistency", model.SeverityHigh,
			"kernel reports SIP disabled but a write to the same path was denied by permission"))
	}

	nvramRaw := adapters.NVRAMRead("csr-active-config")
	if nvramConfig, ok := parseNVRAMCSR(nvramRaw); ok {
		if f, mismatched := nvramMismatchFinding(kernelConfig, nvramConfig, ctx.Now); mismatched {
			findings = append(findings, f)
		}
	}

	for _, flag := range adapters.AllCSRFlags {
		configBitSet := kernelConfig&uint32(flag) != 0
		checkResult := adapters.CSRCheck(flag)
		if configBitSet != checkResult {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindProcess,
				Technique:   "CSR Flag Inconsistency",
				Description: "csr_check disagrees with the stored active-config bit for one SIP flag",
				Severity:    model.SeverityCritical,
				MitreID:     "T1542.003",
				ScannerID:   "sip-contradiction",
				Evidence: []string{
					"path=csr-flag-" + fmt.Sprintf("0x%x", uint32(flag)),
					"flag=" + fmt.Sprintf("0x%x", uint32(flag)),
					"config_bit=" + strconv.FormatBool(configBitSet),
					"csr_check=" + strconv.FormatBool(checkResult),
				},
				Timestamp: ctx.Now,
			})
		}
	}
	return findings
}

func sipFinding(ctx *model.ScanContext, technique string, sev model.Severity, desc string) model.Finding {
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindProcess,
		Technique:   technique,
		Description: desc,
		Severity:    sev,
		MitreID:     "T1542.003",
		ScannerID:   "sip-contradiction",
		Evidence:    []string{"path=" + sipProtectedTestPath},
		Timestamp:   ctx.Now,
	}
}

func attemptProtectedWrite(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	f.Close()
	os.Remove(path)
	return nil
}

// nvramMismatchFinding is the pure comparison behind "SIP NVRAM Mismatch":
// the kernel's live CSR word must agree with the NVRAM variable it mirrors.
func nvramMismatchFinding(kernelConfig, nvramConfig uint32, now time.Time) (model.Finding, bool) {
	if nvramConfig == kernelConfig {
		return model.Finding{}, false
	}
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindProcess,
		Technique:   "SIP NVRAM Mismatch",
		Description: "kernel CSR active-config word disagrees with the NVRAM csr-active-config variable",
		Severity:    model.SeverityCritical,
		MitreID:     "T1542.003",
		ScannerID:   "sip-contradiction",
		Evidence: []string{
			"path=" + sipProtectedTestPath,
			"kernel_csr=" + fmt.Sprintf("0x%08x", kernelConfig),
			"nvram_csr=" + fmt.Sprintf("0x%08x", nvramConfig),
		},
		Timestamp: now,
	}, true
}

func parseNVRAMCSR(raw string) (uint32, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "%")
	raw = strings.TrimPrefix(raw, "0x")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// EntitlementContradiction diffs each non-system process's on-disk
// entitlement keys against the entitlement keys the kernel reports for its
// live code-sign status, flagging any dangerous key present at runtime but
// absent on disk.
func EntitlementContradiction(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || isSystemPath(path) {
			continue
		}
		disk := adapters.CodeSignValidate(path)
		runtime := adapters.CodeSignKernel(int32(pid))
		if !runtime.IsValid {
			continue
		}

		injected := injectedEntitlements(disk.DangerousEntitlements, runtime.EntitlementKeys)
		if len(injected) == 0 {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ProcessPath: path,
			Technique:   "Runtime Entitlement Injection",
			Description: "process exercises a dangerous entitlement absent from its on-disk code signature",
			Severity:    model.SeverityCritical,
			MitreID:     "T1574",
			ScannerID:   "entitlement-contradiction",
			Evidence:    []string{"path=" + path, "pid=" + itoa(pid), "injected=" + strings.Join(injected, ",")},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// injectedEntitlements is EntitlementContradiction's pure diff core: every
// dangerous entitlement the runtime entitlement blob reports that the
// on-disk signature does not list.
func injectedEntitlements(diskDangerous []string, runtimeKeys []string) []string {
	diskKeys := make(map[string]bool, len(diskDangerous))
	for _, k := range diskDangerous {
		diskKeys[k] = true
	}

	var injected []string
	for _, key := range runtimeKeys {
		if adapters.DangerousEntitlements[key] && !diskKeys[key] {
			injected = append(injected, key)
		}
	}
	return injected
}

// AVMonitor cross-checks the camera/mic "in use" indicator against the set
// of running processes that can plausibly account for it: device active
// with no attributable app claiming it is itself the finding.
func AVMonitor(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, device := range []string{"microphone", "camera"} {
		inUse := deviceIndicatorActive(device)
		if !inUse {
			continue
		}
		if len(attributableApps(ctx, device)) > 0 {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			Technique:   "AV Monitor",
			Description: device + " indicator is active but no running process claims it",
			Severity:    model.SeverityHigh,
			MitreID:     "T1125",
			ScannerID:   "av-monitor",
			Evidence:    []string{"path=" + device, "device=" + device},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// deviceIndicatorActive reads the system's camera/mic "in use" indicator.
// Left unimplemented pending a concrete IOKit/CoreMediaIO adapter; returns
// false so AVMonitor degrades silently rather than fabricating a verdict.
func deviceIndicatorActive(device string) bool {
	return false
}

func attributableApps(ctx *model.ScanContext, device string) []int {
	return nil
}
