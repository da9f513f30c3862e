package model

import "time"

// ScannerResult is one probe's outcome within a scan cycle.
type ScannerResult struct {
	ProbeID     string        `json:"probe_id"`
	DisplayName string        `json:"display_name"`
	Tier        Tier          `json:"tier"`
	Findings    []Finding     `json:"findings"`
	Duration    time.Duration `json:"duration_ns"`
	Timestamp   time.Time     `json:"timestamp"`
	Incomplete  bool          `json:"incomplete,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
}

// Progress is emitted by the orchestrator as each probe completes, giving
// the UI a "quick answers first" feed within a tier.
type Progress struct {
	Completed    int
	Total        int
	LatestResult ScannerResult
}

// ThreatScanResult is the assembled outcome of one full scan cycle: every
// probe's ScannerResult, the correlation engine's composite findings, and
// summary counts used by the Assessment Store and diagnostics snapshot.
type ThreatScanResult struct {
	Timestamp        time.Time       `json:"timestamp"`
	ProcessCount      int             `json:"process_count"`
	ConnectionCount   int             `json:"connection_count"`
	ScannerResults    []ScannerResult `json:"scanner_results"`
	Correlations      []Correlation   `json:"correlations"`
	SuppressedCount   int             `json:"suppressed_count"`
	Duration          time.Duration   `json:"duration_ns"`
}

// Anomalies returns every finding across every scanner result plus every
// correlation, sorted by severity descending — the canonical "anomalies"
// list surfaced to diagnostics and the assessment store.
func (r *ThreatScanResult) Anomalies() []Finding {
	var all []Finding
	for _, sr := range r.ScannerResults {
		all = append(all, sr.Findings...)
	}
	for _, c := range r.Correlations {
		all = append(all, c.AsFinding())
	}
	sortFindingsBySeverityDesc(all)
	return all
}

// CountsBySeverity returns the number of anomalies whose severity is exactly
// critical and exactly high, used to populate the diagnostics snapshot.
func (r *ThreatScanResult) CountsBySeverity() (critical, high int) {
	for _, f := range r.Anomalies() {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		}
	}
	return
}

func sortFindingsBySeverityDesc(fs []Finding) {
	// Insertion sort: finding counts per scan are small (tens, not millions)
	// and this keeps equal-severity findings in their original (completion)
	// order, matching the commutative-within-tier guarantee of §5.
	for i := 1; i < len(fs); i++ {
		for j := i; j > 0 && fs[j].Severity > fs[j-1].Severity; j-- {
			fs[j], fs[j-1] = fs[j-1], fs[j]
		}
	}
}
