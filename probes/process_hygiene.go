// Package probes implements Component C (the probe library) and Component D
// (the probe registry) — each detection idea from the process, code
// integrity, persistence, credential, boot, filesystem, network, and
// supply-chain categories, plus the contradiction probes.
package probes

import (
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// lolBins is the closed table of living-off-the-land binaries whose
// presence and invocation context is worth scrutinizing.
var lolBins = map[string]bool{
	"curl": true, "osascript": true, "python3": true, "perl": true,
	"sqlite3": true, "security": true, "xattr": true, "nc": true,
	"bash": true, "zsh": true, "ditto": true, "openssl": true,
}

var suspiciousExecDirs = []string{
	"/tmp", "/var/tmp", "/Users/Shared", "/Library/Caches", "/dev/shm",
}

// LOLBinAbuse flags processes named after a living-off-the-land binary that
// are also executing from a suspicious location, missing their on-disk
// binary, or whose argv shows quarantine-stripping / credential-store
// access (§4.C Process & execution hygiene).
func LOLBinAbuse(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		name := ctx.Snapshot.Name(pid)
		if !lolBins[name] {
			continue
		}
		path := ctx.Snapshot.Paths[pid]
		var evidence []string
		severity := model.SeverityLow

		if inSuspiciousDir(path) {
			evidence = append(evidence, "exec_dir="+dirOf(path))
			severity = model.Max(severity, model.SeverityMedium)
		}
		if path != "" && !pathExists(path) {
			evidence = append(evidence, "fileless=true")
			severity = model.SeverityHigh
		}

		args := adapters.ProcessArgs(int32(pid))
		joined := strings.Join(args, " ")
		if strings.Contains(joined, "com.apple.quarantine") && strings.Contains(joined, "-d") {
			evidence = append(evidence, "quarantine_strip_argv="+joined)
			severity = model.SeverityHigh
		}
		if name == "sqlite3" && (strings.Contains(joined, "TCC.db") || strings.Contains(joined, "Login Data") || strings.Contains(joined, "key4.db")) {
			evidence = append(evidence, "credential_db_access_argv="+joined)
			severity = model.SeverityCritical
		}
		if name == "security" && (strings.Contains(joined, "dump-keychain") || strings.Contains(joined, "find-generic-password") || strings.Contains(joined, "find-internet-password")) {
			evidence = append(evidence, "keychain_dump_argv="+joined)
			severity = model.SeverityCritical
		}

		if len(evidence) == 0 {
			continue
		}
		evidence = append([]string{"path=" + path}, evidence...)
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ParentPID:   ctx.Snapshot.Parents[pid],
			ProcessName: name,
			ProcessPath: path,
			Technique:   "LOLBin Abuse",
			Description: "living-off-the-land binary executed in a suspicious context",
			Severity:    severity,
			MitreID:     "T1218",
			ScannerID:   "lolbin-abuse",
			Evidence:    evidence,
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// appleBinaryPrefixes maps a well-known Apple process name to the path
// prefixes its real binary is allowed to run from.
var appleBinaryPrefixes = map[string][]string{
	"WindowServer":  {"/System/Library/PrivateFrameworks/"},
	"launchd":       {"/sbin/"},
	"mdworker":      {"/System/Library/Frameworks/", "/usr/libexec/"},
	"coreaudiod":    {"/usr/sbin/"},
	"cfprefsd":      {"/usr/sbin/"},
	"kernel_task":   {""},
	"softwareupdated": {"/usr/libexec/"},
}

// Masquerade flags a process whose name matches a well-known Apple binary
// but whose resolved executable path does not start with any of that
// binary's allowed prefixes.
func Masquerade(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		name := ctx.Snapshot.Name(pid)
		prefixes, known := appleBinaryPrefixes[name]
		if !known {
			continue
		}
		path := ctx.Snapshot.Paths[pid]
		if path == "" {
			continue
		}
		if hasAnyPrefix(path, prefixes) {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ParentPID:   ctx.Snapshot.Parents[pid],
			ProcessName: name,
			ProcessPath: path,
			Technique:   "Masquerade",
			Description: "process name matches a known Apple binary but runs from an unexpected path",
			Severity:    model.SeverityCritical,
			MitreID:     "T1036.005",
			ScannerID:   "masquerade",
			Evidence:    []string{"path=" + path, "expected_name=" + name},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

const (
	threadCountLowBound   = 64
	threadCountExtreme    = 512
)

var utilityProcessNames = map[string]bool{
	"cfprefsd": true, "mdworker": true, "distnoted": true, "UserEventAgent": true,
}

// ThreadAnomaly flags a simple-utility process whose count exceeds a low
// bound, or any process above an extreme bound. Thread counts are not read:
// the count compared against the bounds is the number of Mach VM regions,
// a proxy for address-space complexity.
func ThreadAnomaly(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		name := ctx.Snapshot.Name(pid)
		regions := adapters.MachVMRegions(int32(pid))
		n := len(regions)
		bound := threadCountExtreme
		if utilityProcessNames[name] {
			bound = threadCountLowBound
		}
		if n <= bound {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ProcessName: name,
			ProcessPath: ctx.Snapshot.Paths[pid],
			Technique:   "Thread Anomaly",
			Description: "process address space is anomalously complex for its role",
			Severity:    model.SeverityMedium,
			ScannerID:   "thread-anomaly",
			Evidence:    []string{"path=" + ctx.Snapshot.Paths[pid], "region_count=" + itoa(n)},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func inSuspiciousDir(path string) bool {
	return hasAnyPrefix(path, suspiciousExecDirs) || isDotPrefixedDir(path)
}

func isDotPrefixedDir(path string) bool {
	dir := dirOf(path)
	for _, seg := range strings.Split(dir, "/") {
		if strings.HasPrefix(seg, ".") && seg != "" {
			return true
		}
	}
	return false
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
