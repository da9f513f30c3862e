package probes

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

const (
	vmProtRead    = 0x1
	vmProtWrite   = 0x2
	vmProtExecute = 0x4
)

var systemPathPrefixes = []string{"/System/", "/usr/", "/sbin/", "/bin/"}

func isSystemPath(path string) bool {
	return hasAnyPrefix(path, systemPathPrefixes)
}

// BinaryIntegrity consults the code-sign adapter for each unique
// non-system executable path in the snapshot, emitting on unsigned,
// ad-hoc, or invalid signatures, and enumerating dangerous entitlements.
func BinaryIntegrity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	seen := make(map[string]bool)
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || isSystemPath(path) || seen[path] {
			continue
		}
		seen[path] = true

		info := adapters.CodeSignValidate(path)
		if info.IsSigned && info.IsValid && !info.IsAdhoc && len(info.DangerousEntitlements) == 0 {
			continue
		}

		severity := model.SeverityMedium
		var evidence []string
		switch {
		case !info.IsSigned:
			evidence = append(evidence, "unsigned=true")
			severity = model.SeverityHigh
		case !info.IsValid:
			evidence = append(evidence, "invalid_signature=true")
			severity = model.SeverityHigh
		case info.IsAdhoc:
			evidence = append(evidence, "adhoc_signature=true")
		}
		for _, ent := range info.DangerousEntitlements {
			evidence = append(evidence, "entitlement="+ent)
			if strings.Contains(ent, "task_for_pid") || strings.Contains(ent, "rootless") {
				severity = model.SeverityCritical
			}
		}
		if len(evidence) == 0 {
			continue
		}
		evidence = append([]string{"path=" + path}, evidence...)
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			ProcessPath: path,
			Technique:   "Binary Integrity",
			Description: "executable fails code-signing validation or carries dangerous entitlements",
			Severity:    severity,
			MitreID:     "T1553.002",
			ScannerID:   "binary-integrity",
			Evidence:    evidence,
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

var applicationsDirs = []string{"/Applications", os.Getenv("HOME") + "/Applications"}

// ApplicationAuditor walks /Applications and $HOME/Applications, flagging
// unsigned/ad-hoc bundles and same-named bundles present in both locations
// (a masquerade pattern).
func ApplicationAuditor(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	seenNames := make(map[string][]string)

	for _, dir := range applicationsDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || !strings.HasSuffix(e.Name(), ".app") {
				continue
			}
			bundlePath := filepath.Join(dir, e.Name())
			seenNames[e.Name()] = append(seenNames[e.Name()], bundlePath)

			exec := guessBundleExecutable(bundlePath)
			if exec == "" {
				continue
			}
			info := adapters.CodeSignValidate(exec)
			if !info.IsSigned || info.IsAdhoc {
				findings = append(findings, model.Finding{
					ID:          model.NewFindingID(),
					Kind:        model.KindFilesystem,
					ProcessPath: exec,
					Technique:   "Application Auditor",
					Description: "application bundle is unsigned or ad-hoc signed",
					Severity:    model.SeverityMedium,
					ScannerID:   "application-auditor",
					Evidence:    []string{"path=" + bundlePath, "signed=" + boolStr(info.IsSigned)},
					Timestamp:   ctx.Now,
				})
			}
		}
	}

	for name, paths := range seenNames {
		if len(paths) < 2 {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			ProcessPath: paths[0],
			Technique:   "Application Auditor",
			Description: "same-named application bundle present in both system and user Applications (masquerade)",
			Severity:    model.SeverityHigh,
			MitreID:     "T1036.005",
			ScannerID:   "application-auditor",
			Evidence:    append([]string{"path=" + paths[0]}, pathList(name, paths)...),
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func guessBundleExecutable(bundlePath string) string {
	name := strings.TrimSuffix(filepath.Base(bundlePath), ".app")
	candidate := filepath.Join(bundlePath, "Contents", "MacOS", name)
	if pathExists(candidate) {
		return candidate
	}
	return ""
}

func pathList(name string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = "duplicate_" + name + "=" + p
	}
	return out
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// DylibHijack parses each running executable's load commands, resolving
// @rpath/ dylibs through each rpath, flagging active hijacks (≥2 resolving
// copies), planting opportunities (weak dylibs or rpath dylibs that
// resolve nowhere), and re-export proxies.
func DylibHijack(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	seen := make(map[string]bool)
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		info := adapters.MachOParse(path)
		for _, dylib := range info.LoadDylibs {
			if !strings.HasPrefix(dylib, "@rpath/") {
				continue
			}
			rel := strings.TrimPrefix(dylib, "@rpath/")
			var resolved []string
			for _, rp := range info.Rpaths {
				candidate := filepath.Join(expandLoaderPath(rp, path), rel)
				if pathExists(candidate) {
					resolved = append(resolved, candidate)
				}
			}
			switch {
			case len(resolved) >= 2:
				findings = append(findings, dylibFinding(ctx, path, "Dylib Hijack", "@rpath dylib resolves to more than one copy (active hijack)", model.SeverityCritical, dylib, resolved...))
			case len(resolved) == 0:
				findings = append(findings, dylibFinding(ctx, path, "Dylib Hijack", "@rpath dylib does not resolve anywhere (planting-vulnerable)", model.SeverityMedium, dylib))
			}
		}
		for _, weak := range info.WeakDylibs {
			if !pathExists(weak) {
				findings = append(findings, dylibFinding(ctx, path, "Dylib Hijack", "weak dylib does not resolve (planting-vulnerable)", model.SeverityMedium, weak))
			}
		}
		for _, re := range info.ReexportDylibs {
			findings = append(findings, dylibFinding(ctx, path, "Dylib Hijack", "re-exported dylib (proxy suspect)", model.SeverityLow, re))
		}
	}
	return findings
}

func expandLoaderPath(rpath, execPath string) string {
	rpath = strings.ReplaceAll(rpath, "@loader_path", filepath.Dir(execPath))
	rpath = strings.ReplaceAll(rpath, "@executable_path", filepath.Dir(execPath))
	return rpath
}

func dylibFinding(ctx *model.ScanContext, path, technique, desc string, sev model.Severity, dylib string, extra ...string) model.Finding {
	evidence := append([]string{"path=" + path, "dylib=" + dylib}, extra...)
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindProcess,
		ProcessPath: path,
		Technique:   technique,
		Description: desc,
		Severity:    sev,
		MitreID:     "T1574.006",
		ScannerID:   "dylib-hijack",
		Evidence:    evidence,
		Timestamp:   ctx.Now,
	}
}

var stagingDirPrefixes = []string{"/tmp/", "/var/tmp/", "/Users/Shared/"}

// PhantomDylib flags loaded images under a staging directory (critical), a
// system-reserved leaf name loaded from a non-system prefix (critical), and
// a dylib under $HOME outside a .app bundle (medium).
func PhantomDylib(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	home := os.Getenv("HOME")
	seen := make(map[string]bool)
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" {
			continue
		}
		info := adapters.MachOParse(path)
		for _, dylib := range info.LoadDylibs {
			key := path + "|" + dylib
			if seen[key] {
				continue
			}
			seen[key] = true

			base := filepath.Base(dylib)
			switch {
			case hasAnyPrefix(dylib, stagingDirPrefixes):
				findings = append(findings, dylibFinding(ctx, path, "Phantom Dylib", "loaded image resolves under a staging directory", model.SeverityCritical, dylib))
			case (base == "libSystem.B.dylib" || base == "libobjc.A.dylib") && !isSystemPath(dylib):
				findings = append(findings, dylibFinding(ctx, path, "Phantom Dylib", "system-reserved library name loaded from a non-system path", model.SeverityCritical, dylib))
			case home != "" && strings.HasPrefix(dylib, home) && !strings.Contains(dylib, ".app/"):
				findings = append(findings, dylibFinding(ctx, path, "Phantom Dylib", "dylib loaded from user home outside any .app bundle", model.SeverityMedium, dylib))
			}
		}
	}
	return findings
}

// ProcessIntegrity queries kernel code-sign status for each PID, emitting
// on CS_DEBUGGED or !CS_VALID. Declared and loaded dylibs are not compared,
// and hardened-runtime flags are not checked.
func ProcessIntegrity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" {
			continue
		}
		kernel := adapters.CodeSignKernel(int32(pid))
		if !kernel.IsValid || kernel.IsDebugged {
			var evidence []string
			if kernel.IsDebugged {
				evidence = append(evidence, "cs_debugged=true")
			}
			if !kernel.IsValid {
				evidence = append(evidence, "cs_valid=false")
			}
			evidence = append([]string{"path=" + path}, evidence...)
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindProcess,
				PID:         pid,
				ProcessName: ctx.Snapshot.Name(pid),
				ProcessPath: path,
				Technique:   "Process Integrity",
				Description: "kernel code-sign status reports a debugged or invalid process",
				Severity:    model.SeverityCritical,
				MitreID:     "T1055",
				ScannerID:   "process-integrity",
				Evidence:    evidence,
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

// firstTextRegion returns the first non-anonymous (file-backed), readable,
// executable, non-writable VM region, used as a stand-in for the process's
// mapped __TEXT segment. The loader's ASLR slide means the live region's
// address does not equal the on-disk segment's vmaddr, so this walks
// regions by protection/backing shape rather than computing the slide.
func firstTextRegion(regions []adapters.VMRegion) (adapters.VMRegion, bool) {
	for _, r := range regions {
		if r.Anonymous {
			continue
		}
		if r.CurProt&(vmProtRead|vmProtExecute) == (vmProtRead|vmProtExecute) && r.CurProt&vmProtWrite == 0 {
			return r, true
		}
	}
	return adapters.VMRegion{}, false
}

// TextIntegrity rehashes the live mapped __TEXT region of each non-system
// process and compares it against the same byte range of the on-disk
// binary: a mismatch means the code actually executing differs from what
// was signed and shipped, the signature of an in-memory patch or hooked
// function.
func TextIntegrity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || isSystemPath(path) {
			continue
		}
		info := adapters.MachOParse(path)
		if info.TextFileSize == 0 {
			continue
		}
		region, ok := firstTextRegion(adapters.MachVMRegions(int32(pid)))
		if !ok {
			continue
		}
		size := region.Size
		if info.TextFileSize < size {
			size = info.TextFileSize
		}
		if size == 0 {
			continue
		}

		live := adapters.ReadProcessMemory(int32(pid), region.Addr, size)
		if live == nil {
			continue
		}
		onDiskHash := adapters.SHA256Range(path, info.TextFileOffset, size)
		if onDiskHash == "" {
			continue
		}
		liveHash := adapters.SHA256Bytes(live)
		if liveHash == onDiskHash {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ProcessName: ctx.Snapshot.Name(pid),
			ProcessPath: path,
			Technique:   "Text Integrity",
			Description: "mapped __TEXT region hash does not match the on-disk binary",
			Severity:    model.SeverityCritical,
			MitreID:     "T1055.002",
			ScannerID:   "text-integrity",
			Evidence:    []string{"path=" + path, "live_sha256=" + liveHash, "disk_sha256=" + onDiskHash},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// machOMagics are the byte patterns (native and byte-swapped, thin and fat)
// that mark the start of a Mach-O image.
var machOMagics = []uint32{0xfeedface, 0xfeedfacf, 0xcefaedfe, 0xcffaedfe, 0xcafebabe, 0xbebafeca}

func hasMachOMagic(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	v := binary.BigEndian.Uint32(b[:4])
	for _, m := range machOMagics {
		if v == m {
			return true
		}
	}
	return false
}

// reflectiveLoadWindow bounds how much of each anonymous executable region
// is read looking for an embedded Mach-O header; a reflectively loaded
// image's header sits at the start of its mapping.
const reflectiveLoadWindow = 4096

// MemoryScan walks VM regions of every non-system process, flagging
// writable+executable (and maximally-RWX) regions as evidence of a
// reflective loader or JIT-spray technique, and separately checking each
// anonymous executable region's leading bytes for a Mach-O header — an
// image with no backing file is itself the signature of a reflective load.
func MemoryScan(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || isSystemPath(path) {
			continue
		}
		regions := adapters.MachVMRegions(int32(pid))
		rwxCount, maxRwxCount := 0, 0
		var reflective []string
		for _, r := range regions {
			if r.CurProt&(vmProtWrite|vmProtExecute) == (vmProtWrite | vmProtExecute) {
				rwxCount++
			}
			if r.MaxProt&(vmProtWrite|vmProtExecute) == (vmProtWrite | vmProtExecute) {
				maxRwxCount++
			}
			if r.Anonymous && r.CurProt&vmProtExecute != 0 {
				window := r.Size
				if window > reflectiveLoadWindow {
					window = reflectiveLoadWindow
				}
				if b := adapters.ReadProcessMemory(int32(pid), r.Addr, window); hasMachOMagic(b) {
					reflective = append(reflective, "addr=0x"+hexitoa(r.Addr))
				}
			}
		}
		if len(reflective) > 0 {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindProcess,
				PID:         pid,
				ProcessName: ctx.Snapshot.Name(pid),
				ProcessPath: path,
				Technique:   "Memory Scan",
				Description: "anonymous executable region begins with a Mach-O header (reflective load)",
				Severity:    model.SeverityCritical,
				MitreID:     "T1055.002",
				ScannerID:   "memory-scan",
				Evidence:    append([]string{"path=" + path}, reflective...),
				Timestamp:   ctx.Now,
			})
		}
		if rwxCount == 0 && maxRwxCount == 0 {
			continue
		}
		sev := model.SeverityMedium
		if rwxCount > 3 || maxRwxCount > 3 {
			sev = model.SeverityHigh
		}
		if rwxCount > 0 {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindProcess,
				PID:         pid,
				ProcessName: ctx.Snapshot.Name(pid),
				ProcessPath: path,
				Technique:   "Memory Scan",
				Description: "process holds writable+executable memory regions",
				Severity:    sev,
				MitreID:     "T1055.002",
				ScannerID:   "memory-scan",
				Evidence:    []string{"path=" + path, "rwx_region_count=" + itoa(rwxCount)},
				Timestamp:   ctx.Now,
			})
		}
		if maxRwxCount > 0 {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindProcess,
				PID:         pid,
				ProcessName: ctx.Snapshot.Name(pid),
				ProcessPath: path,
				Technique:   "Memory Scan",
				Description: "process holds regions that can be remapped writable+executable (maximally-RWX)",
				Severity:    sev,
				MitreID:     "T1055.002",
				ScannerID:   "memory-scan",
				Evidence:    []string{"path=" + path, "max_rwx_region_count=" + itoa(maxRwxCount)},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}
