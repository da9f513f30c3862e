// Package correlation implements the post-pass declarative rule engine
// from §4.G: each rule matches a condition over the findings from one scan
// and, when satisfied, emits a composite finding whose severity is the max
// of its participants unless the rule specifies higher.
package correlation

import (
	"strings"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

// Rule matches a condition over one scan's findings and returns zero or
// more composite Correlations.
type Rule func(findings []model.Finding, now time.Time) []model.Correlation

// Engine runs every registered rule over a scan's full finding set.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine with the four minimum required rules from
// §4.G wired in.
func NewEngine() *Engine {
	return &Engine{rules: []Rule{
		injectionChainRule,
		bootWeakeningRule,
		persistenceMasqueradeRule,
		credentialTheftStagingRule,
	}}
}

// Add registers an additional rule.
func (e *Engine) Add(r Rule) {
	e.rules = append(e.rules, r)
}

// Run flattens every scanner result's findings and evaluates each rule
// against the combined set, returning every composite produced.
func (e *Engine) Run(results []model.ScannerResult) []model.Correlation {
	var findings []model.Finding
	for _, r := range results {
		findings = append(findings, r.Findings...)
	}
	if len(findings) == 0 {
		return nil
	}

	now := time.Now()
	var composites []model.Correlation
	for _, rule := range e.rules {
		composites = append(composites, rule(findings, now)...)
	}
	return composites
}

// injectionChainRule: same PID has both a Dylib Hijack finding and a
// RWX-memory-region finding (Memory Scan) -> critical composite.
func injectionChainRule(findings []model.Finding, now time.Time) []model.Correlation {
	byPIDHijack := make(map[int]model.Finding)
	byPIDRWX := make(map[int]model.Finding)
	for _, f := range findings {
		switch f.ScannerID {
		case "dylib-hijack":
			byPIDHijack[f.PID] = f
		case "memory-scan":
			byPIDRWX[f.PID] = f
		}
	}

	var out []model.Correlation
	for pid, hijack := range byPIDHijack {
		rwx, ok := byPIDRWX[pid]
		if !ok {
			continue
		}
		out = append(out, model.Correlation{
			ID:                    model.NewFindingID(),
			Rule:                  "injection chain",
			ParticipatingFindings: []model.Finding{hijack, rwx},
			Severity:              model.SeverityCritical,
			Description:           "process has both a dylib hijack finding and RWX memory regions",
			Timestamp:             now,
		})
	}
	return out
}

// bootWeakeningRule: AMFI disabled or a dangerous boot-arg, combined with a
// non-production trust cache signal, -> critical composite.
func bootWeakeningRule(findings []model.Finding, now time.Time) []model.Correlation {
	var amfiOrBootArg, trustCache *model.Finding
	for i := range findings {
		f := &findings[i]
		if f.ScannerID != "system-integrity" && f.ScannerID != "boot-security" {
			continue
		}
		switch {
		case strings.Contains(f.Description, "AMFI") || strings.Contains(f.Description, "boot-arg"):
			amfiOrBootArg = f
		case strings.Contains(f.Description, "trust cache") || strings.Contains(f.Description, "Non-Production"):
			trustCache = f
		}
	}
	if amfiOrBootArg == nil || trustCache == nil {
		return nil
	}
	return []model.Correlation{{
		ID:                    model.NewFindingID(),
		Rule:                  "boot weakening",
		ParticipatingFindings: []model.Finding{*amfiOrBootArg, *trustCache},
		Severity:              model.SeverityCritical,
		Description:           "AMFI/boot-arg weakening combined with a non-production trust cache",
		Timestamp:             now,
	}}
}

// persistenceMasqueradeRule: a persistence-scanner finding whose binary
// path also appears as the subject of a masquerade finding -> critical.
func persistenceMasqueradeRule(findings []model.Finding, now time.Time) []model.Correlation {
	masqueradePaths := make(map[string]model.Finding)
	for _, f := range findings {
		if f.ScannerID == "masquerade" {
			masqueradePaths[f.ProcessPath] = f
		}
	}

	var out []model.Correlation
	for _, f := range findings {
		if f.ScannerID != "persistence-scanner" {
			continue
		}
		path := f.ProcessPath
		if path == "" {
			continue
		}
		masq, ok := masqueradePaths[path]
		if !ok {
			continue
		}
		out = append(out, model.Correlation{
			ID:                    model.NewFindingID(),
			Rule:                  "persistence + masquerade",
			ParticipatingFindings: []model.Finding{f, masq},
			Severity:              model.SeverityCritical,
			Description:           "persistence item's binary also masquerades as an Apple executable",
			Timestamp:             now,
		})
	}
	return out
}

func evidenceContains(f *model.Finding, substr string) bool {
	for _, e := range f.Evidence {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// credentialTheftStagingRule: a Full Disk Access TCC grant in the same scan
// as a sqlite3 LOLBin touching TCC.db -> critical composite.
func credentialTheftStagingRule(findings []model.Finding, now time.Time) []model.Correlation {
	var fdaGrant, sqliteTouch *model.Finding
	for i := range findings {
		f := &findings[i]
		if f.ScannerID == "tcc-monitor" && evidenceContains(f, "SystemPolicyAllFiles") {
			fdaGrant = f
		}
		if f.ScannerID == "lolbin-abuse" && evidenceContains(f, "TCC.db") {
			sqliteTouch = f
		}
	}
	if fdaGrant == nil || sqliteTouch == nil {
		return nil
	}
	return []model.Correlation{{
		ID:                    model.NewFindingID(),
		Rule:                  "credential theft staging",
		ParticipatingFindings: []model.Finding{*fdaGrant, *sqliteTouch},
		Severity:              model.SeverityCritical,
		Description:           "Full Disk Access grant observed alongside a sqlite3 LOLBin touching TCC.db",
		Timestamp:             now,
	}}
}
