package probes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// knownHomebrewTaps is the closed set of taps Homebrew ships by default;
// anything else is "non-standard" for HomebrewAuditor's purposes.
var knownHomebrewTaps = map[string]bool{
	"homebrew/core":  true,
	"homebrew/cask":  true,
	"homebrew/bundle": true,
}

// HomebrewAuditor flags non-standard taps and a dirty git status in the
// Homebrew prefix (the prefix is itself a git checkout; local modifications
// there are a tamper signal, not a maintenance state).
func HomebrewAuditor(ctx *model.ScanContext) []model.Finding {
	prefix := adapters.RunBounded("brew", "--prefix")
	if prefix == "" {
		return nil
	}
	var findings []model.Finding

	tapList := adapters.RunBounded("brew", "tap")
	for _, tap := range strings.Split(tapList, "\n") {
		tap = strings.TrimSpace(tap)
		if tap == "" || knownHomebrewTaps[strings.ToLower(tap)] {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Homebrew Auditor",
			Description: "non-standard Homebrew tap is enabled",
			Severity:    model.SeverityLow,
			ScannerID:   "homebrew-auditor",
			Evidence:    []string{"path=" + tap, "tap=" + tap},
			Timestamp:   ctx.Now,
		})
	}

	status := adapters.RunBounded("git", "-C", prefix, "status", "--porcelain")
	if strings.TrimSpace(status) != "" {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Homebrew Auditor",
			Description: "Homebrew prefix git checkout has local modifications",
			Severity:    model.SeverityMedium,
			ScannerID:   "homebrew-auditor",
			Evidence:    []string{"path=" + prefix},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

type npmPackageEntry struct {
	Scripts map[string]string `json:"scripts"`
}

type npmListOutput struct {
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

// NpmGlobalAuditor flags globally installed npm packages carrying
// pre/postinstall lifecycle scripts, a common supply-chain payload vector.
func NpmGlobalAuditor(ctx *model.ScanContext) []model.Finding {
	out := adapters.RunBounded("npm", "ls", "-g", "--depth=0", "--json")
	if out == "" {
		return nil
	}
	var list npmListOutput
	if json.Unmarshal([]byte(out), &list) != nil {
		return nil
	}

	root := adapters.RunBounded("npm", "root", "-g")
	var findings []model.Finding
	for name := range list.Dependencies {
		pkgJSON := filepath.Join(root, name, "package.json")
		data, err := os.ReadFile(pkgJSON)
		if err != nil {
			continue
		}
		var pkg npmPackageEntry
		if json.Unmarshal(data, &pkg) != nil {
			continue
		}
		for _, hook := range []string{"preinstall", "postinstall"} {
			script, ok := pkg.Scripts[hook]
			if !ok || script == "" {
				continue
			}
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "npm Global Auditor",
				Description: "globally installed npm package runs a " + hook + " lifecycle script",
				Severity:    model.SeverityMedium,
				ScannerID:   "npm-global-auditor",
				Evidence:    []string{"path=" + pkgJSON, "package=" + name, "hook=" + hook},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

// typosquatPrefixes/Suffixes are patterns attackers commonly graft onto a
// legitimate package name when squatting the PyPI namespace.
var typosquatPrefixes = []string{"python-", "py-"}
var typosquatSuffixes = []string{"-utils", "-helper", "-cli", "2"}

// popularPyPIPackages is a representative sample of heavily-depended-on
// packages worth checking for typosquat variants among what's installed.
var popularPyPIPackages = []string{"requests", "numpy", "django", "flask", "boto3", "urllib3"}

// PipAuditor lists installed packages and flags any whose name looks like a
// typosquat of a popular package: a known prefix/suffix grafted onto it.
func PipAuditor(ctx *model.ScanContext) []model.Finding {
	out := adapters.RunBounded("pip3", "list", "--format=json")
	if out == "" {
		return nil
	}
	var packages []struct {
		Name string `json:"name"`
	}
	if json.Unmarshal([]byte(out), &packages) != nil {
		return nil
	}

	var findings []model.Finding
	for _, p := range packages {
		lowerName := strings.ToLower(p.Name)
		for _, popular := range popularPyPIPackages {
			if lowerName == popular {
				continue
			}
			if !looksLikeTyposquat(lowerName, popular) {
				continue
			}
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "pip Auditor",
				Description: "installed package name resembles a typosquat of a popular package",
				Severity:    model.SeverityMedium,
				ScannerID:   "pip-auditor",
				Evidence:    []string{"path=" + p.Name, "package=" + p.Name, "resembles=" + popular},
				Timestamp:   ctx.Now,
			})
			break
		}
	}
	return findings
}

func looksLikeTyposquat(name, popular string) bool {
	for _, prefix := range typosquatPrefixes {
		if name == prefix+popular {
			return true
		}
	}
	for _, suffix := range typosquatSuffixes {
		if name == popular+suffix {
			return true
		}
	}
	return false
}

// xcodeCustomTemplateDirs and nonAppleToolchainDirs are the locations a
// tampered or third-party Xcode add-on would land under.
var xcodeCustomTemplateDirs = []string{
	os.Getenv("HOME") + "/Library/Developer/Xcode/Templates",
	os.Getenv("HOME") + "/Library/Developer/Xcode/Plug-ins",
}
var nonAppleToolchainsDir = "/Library/Developer/Toolchains"

// XcodeAuditor flags legacy .xcplugin bundles, custom project/file
// templates, and non-Apple toolchains — all historical code-injection
// vectors into builds run through Xcode.
func XcodeAuditor(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding

	for _, dir := range xcodeCustomTemplateDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			sev := model.SeverityMedium
			if strings.HasSuffix(e.Name(), ".xcplugin") {
				sev = model.SeverityHigh
			}
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Xcode Auditor",
				Description: "custom Xcode template or legacy plugin is installed",
				Severity:    sev,
				ScannerID:   "xcode-auditor",
				Evidence:    []string{"path=" + full},
				Timestamp:   ctx.Now,
			})
		}
	}

	entries, err := os.ReadDir(nonAppleToolchainsDir)
	if err == nil {
		for _, e := range entries {
			full := filepath.Join(nonAppleToolchainsDir, e.Name())
			info := adapters.CodeSignValidate(full)
			if info.IsApple {
				continue
			}
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Xcode Auditor",
				Description: "non-Apple compiler toolchain is installed",
				Severity:    model.SeverityMedium,
				ScannerID:   "xcode-auditor",
				Evidence:    []string{"path=" + full},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}
