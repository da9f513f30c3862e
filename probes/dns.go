package probes

import (
	"strings"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

const (
	dnsWindowDuration     = 60 * time.Second
	dnsReservoirCap       = 50
	dnsHighQueryPerMin    = 100
	dnsHighTXTPerMin      = 20
	dnsMinSamplesForMean  = 5
	dnsEntropyThreshold   = 3.5
	dnsLengthThreshold    = 15
	dnsFastPathLabelChars = 30
)

type dnsWindow struct {
	start      time.Time
	total      int
	txt        int
	subdomains []string // reservoir of ≤50 labels
}

// DNSTunnelingDetector maintains 60-second per-base-domain windows of
// query counts and a bounded reservoir of subdomain labels, confined
// behind Record/Analyze (§4.C, §5).
type DNSTunnelingDetector struct {
	mu      sync.Mutex
	windows map[string]*dnsWindow
}

// NewDNSTunnelingDetector returns an empty detector.
func NewDNSTunnelingDetector() *DNSTunnelingDetector {
	return &DNSTunnelingDetector{windows: make(map[string]*dnsWindow)}
}

// Record accounts one query for baseDomain (the domain minus its leftmost
// label) at time t, resetting the window if dnsWindowDuration has elapsed
// since it opened.
func (d *DNSTunnelingDetector) Record(baseDomain, fullQuery string, isTXT bool, t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[baseDomain]
	if !ok || t.Sub(w.start) > dnsWindowDuration {
		w = &dnsWindow{start: t}
		d.windows[baseDomain] = w
	}
	w.total++
	if isTXT {
		w.txt++
	}
	label := leftmostLabel(fullQuery)
	if len(w.subdomains) < dnsReservoirCap {
		w.subdomains = append(w.subdomains, label)
	}
}

// FastPathSuspicious runs the per-query fast path independent of any
// window state: a label over 30 characters, or one with high entropy and
// length, is suspicious on its own.
func FastPathSuspicious(fullQuery string) bool {
	label := leftmostLabel(fullQuery)
	if len(label) > dnsFastPathLabelChars {
		return true
	}
	return shannonEntropy([]byte(label)) > dnsEntropyThreshold && len(label) > dnsLengthThreshold
}

func leftmostLabel(query string) string {
	if i := strings.IndexByte(query, '.'); i >= 0 {
		return query[:i]
	}
	return query
}

// Analyze evaluates every open window against the volume and entropy
// rules, returning one finding per base domain that trips a rule. Windows
// older than dnsWindowDuration at the time of the call contribute zero
// counters, matching the "window reset" invariant.
func (d *DNSTunnelingDetector) Analyze(now time.Time) []model.Finding {
	d.mu.Lock()
	defer d.mu.Unlock()

	var findings []model.Finding
	for base, w := range d.windows {
		if now.Sub(w.start) > dnsWindowDuration {
			continue
		}
		elapsedMin := now.Sub(w.start).Minutes()
		if elapsedMin <= 0 {
			elapsedMin = dnsWindowDuration.Minutes()
		}
		perMin := float64(w.total) / elapsedMin
		txtPerMin := float64(w.txt) / elapsedMin

		if perMin > dnsHighQueryPerMin {
			findings = append(findings, dnsFinding(base, "query volume exceeds 100/min", model.SeverityHigh, now))
		}
		if txtPerMin > dnsHighTXTPerMin {
			findings = append(findings, dnsFinding(base, "TXT query volume exceeds 20/min", model.SeverityHigh, now))
		}
		if len(w.subdomains) >= dnsMinSamplesForMean {
			meanEntropy, meanLen := subdomainStats(w.subdomains)
			if meanEntropy > dnsEntropyThreshold && meanLen > dnsLengthThreshold {
				findings = append(findings, dnsFinding(base, "subdomain labels show high mean entropy and length", model.SeverityCritical, now))
			}
		}
	}
	return findings
}

func subdomainStats(labels []string) (meanEntropy, meanLen float64) {
	var sumEnt, sumLen float64
	for _, l := range labels {
		sumEnt += shannonEntropy([]byte(l))
		sumLen += float64(len(l))
	}
	n := float64(len(labels))
	return sumEnt / n, sumLen / n
}

func dnsFinding(baseDomain, desc string, sev model.Severity, now time.Time) model.Finding {
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindNetwork,
		Technique:   "DNS Tunneling Detector",
		Description: desc,
		Severity:    sev,
		MitreID:     "T1071.004",
		ScannerID:   "dns-tunneling-detector",
		Evidence:    []string{"path=" + baseDomain, "base_domain=" + baseDomain},
		Timestamp:   now,
	}
}
