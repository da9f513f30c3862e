package probes

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

var (
	userTCCDB   = os.ExpandEnv("$HOME/Library/Application Support/com.apple.TCC/TCC.db")
	systemTCCDB = "/Library/Application Support/com.apple.TCC/TCC.db"
)

var tccQuery = `SELECT service, client, auth_value, auth_reason FROM access`

// TCCMonitor is the stateful (across-scans) TCC baseline comparator: it
// reads both user and system TCC databases, baselines on first run, and on
// later scans diffs by (service, client), confined behind Check so every
// caller observes it atomically (§4.C, §5).
type TCCMonitor struct {
	mu       sync.Mutex
	baseline *model.TCCBaseline
}

// NewTCCMonitor returns a monitor seeded with a previously persisted
// baseline (as written by runBaselineTCC in cmd/root.go), or nil to
// bootstrap on first Check.
func NewTCCMonitor(initial *model.TCCBaseline) *TCCMonitor {
	return &TCCMonitor{baseline: initial}
}

// TakeTCCBaseline reads the current TCC grant state and returns it as a
// baseline snapshot, for runBaselineTCC in cmd/root.go (the -baseline-tcc
// mode) to persist to disk.
func TakeTCCBaseline(now time.Time) model.TCCBaseline {
	current := readTCCEntries(userTCCDB)
	for k, v := range readTCCEntries(systemTCCDB) {
		current[k] = v
	}
	return model.TCCBaseline{Timestamp: now, Entries: current}
}

// Check runs the TCC diff as a probe. It is a method rather than a bare
// RunFunc because the comparator carries state across scans.
func (m *TCCMonitor) Check(ctx *model.ScanContext) []model.Finding {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := readTCCEntries(userTCCDB)
	for k, v := range readTCCEntries(systemTCCDB) {
		current[k] = v
	}
	if m.baseline == nil {
		m.baseline = &model.TCCBaseline{Timestamp: ctx.Now, Entries: current}
		return nil
	}

	var findings []model.Finding
	for key, entry := range current {
		prev, existed := m.baseline.Entries[key]
		switch {
		case !existed && entry.Allowed:
			findings = append(findings, tccFinding(ctx, entry, "new_grant"))
		case existed && !prev.Allowed && entry.Allowed:
			findings = append(findings, tccFinding(ctx, entry, "modified"))
		}
	}
	m.baseline.Entries = current
	m.baseline.Timestamp = ctx.Now
	return findings
}

func tccFinding(ctx *model.ScanContext, e model.TCCEntry, kind string) model.Finding {
	sev := model.SeverityMedium
	if model.HighRiskTCCServices[e.Service] {
		sev = model.SeverityHigh
	}
	var evidence []string
	if !pathExists("/Applications/" + e.Client + ".app") {
		evidence = append(evidence, "client_bundle_not_found=true")
		sev = model.SeverityCritical
	}
	if e.AuthReason != "user" && e.AuthReason != "user-set" {
		evidence = append(evidence, "auth_reason="+e.AuthReason)
	}
	if !e.HasCSReq {
		evidence = append(evidence, "no_code_signing_requirement=true")
	}
	evidence = append([]string{"path=" + e.Client, "service=" + e.Service, "diff=" + kind}, evidence...)
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindFilesystem,
		Technique:   "TCC Monitor",
		Description: "TCC grant " + kind + " for a privacy-sensitive service",
		Severity:    sev,
		MitreID:     "T1548",
		ScannerID:   "tcc-monitor",
		Evidence:    evidence,
		Timestamp:   ctx.Now,
	}
}

func readTCCEntries(dbPath string) map[string]model.TCCEntry {
	rows := adapters.SQLiteRead(dbPath, tccQuery)
	out := make(map[string]model.TCCEntry, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		e := model.TCCEntry{
			Service:    row[0].String,
			Client:     row[1].String,
			Allowed:    row[2].String == "1" || row[2].String == "2",
			AuthReason: row[3].String,
			LastMod:    time.Now(),
		}
		out[e.Key()] = e
	}
	return out
}

// interceptionVendors is the closed set of known interception-proxy
// certificate issuer substrings.
var interceptionVendors = []string{
	"Fiddler", "Charles Proxy", "mitmproxy", "Zscaler", "NetSkope", "Burp Suite",
}

const userRootCertThreshold = 3

// CertificateAuditor reads user-domain keychain certificates (via
// security(1), the only supported read path for trust settings) and flags
// issuers matching a known interception-proxy vendor, plus an
// accumulation of user-added roots above a threshold.
func CertificateAuditor(ctx *model.ScanContext) []model.Finding {
	out := adapters.RunBounded("security", "find-certificate", "-a", "-c", "", "-Z", os.ExpandEnv("$HOME/Library/Keychains/login.keychain-db"))
	if out == "" {
		return nil
	}

	var findings []model.Finding
	rootCount := 0
	for _, vendor := range interceptionVendors {
		if containsSubstring(out, vendor) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Certificate Auditor",
				Description: "keychain contains a certificate from a known interception-proxy vendor",
				Severity:    model.SeverityHigh,
				MitreID:     "T1553.004",
				ScannerID:   "certificate-auditor",
				Evidence:    []string{"path=" + os.ExpandEnv("$HOME/Library/Keychains/login.keychain-db"), "issuer=" + vendor},
				Timestamp:   ctx.Now,
			})
		}
	}
	rootCount = countSubstring(out, "\"labl\"")
	if rootCount > userRootCertThreshold {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Certificate Auditor",
			Description: "accumulation of user-modified trust roots above threshold",
			Severity:    model.SeverityMedium,
			ScannerID:   "certificate-auditor",
			Evidence:    []string{"path=login.keychain-db", "root_count=" + itoa(rootCount)},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func containsSubstring(s, sub string) bool {
	return strings.Contains(s, sub)
}

func countSubstring(s, sub string) int {
	return strings.Count(s, sub)
}
