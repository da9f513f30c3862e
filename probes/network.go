package probes

import (
	"net"
	"os"
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// c2Ports is the closed set of TCP/UDP ports commonly associated with
// command-and-control frameworks.
var c2Ports = map[int]bool{
	4444: true, 5555: true, 6666: true, 6667: true, 7777: true, 8888: true,
	9999: true, 1337: true, 31337: true, 12345: true, 54321: true,
}

// NetworkConfigAndC2 covers the single-scan (stateless) connection findings:
// raw-IP destinations and known-C2 ports. /etc/hosts and /etc/resolver
// anomalies are NetworkConfigAuditor's concern; the beaconing and
// DNS-tunneling detectors, which need rolling windows across scans, live in
// beaconing.go and dns.go.
func NetworkConfigAndC2(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, conn := range ctx.Connections {
		if conn.RemoteAddr == "" {
			continue
		}
		ip := net.ParseIP(conn.RemoteAddr)
		isRawIP := ip != nil
		isPrivate := isRawIP && isPrivateIP(ip)

		if isRawIP && !isPrivate && conn.RemotePort > 1024 {
			findings = append(findings, netFinding(ctx, conn, "network-anomaly-detector", "Network Anomaly Detector",
				"connection to a raw IP literal on a non-privileged high port", model.SeverityMedium))
		}
		if c2Ports[conn.RemotePort] {
			findings = append(findings, netFinding(ctx, conn, "network-anomaly-detector", "Network Anomaly Detector",
				"connection to a port commonly associated with C2 frameworks", model.SeverityHigh,
				"port="+itoa(conn.RemotePort)))
		}
	}
	return findings
}

func netFinding(ctx *model.ScanContext, conn model.NetworkConnection, scannerID, technique, desc string, sev model.Severity, extra ...string) model.Finding {
	evidence := append([]string{"path=" + conn.ProcessPath, "remote=" + conn.RemoteAddr}, extra...)
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindNetwork,
		PID:         conn.PID,
		ProcessName: conn.ProcessName,
		ProcessPath: conn.ProcessPath,
		Technique:   technique,
		Description: desc,
		Severity:    sev,
		MitreID:     "T1071",
		ScannerID:   scannerID,
		Evidence:    evidence,
		Timestamp:   ctx.Now,
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8"} {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var appleUpdateHosts = []string{"gs.apple.com", "ocsp.apple.com", "mesu.apple.com", "swscan.apple.com"}

const hostsEntryCountThreshold = 20

// NetworkConfigAuditor flags /etc/hosts and /etc/resolver anomalies: a
// null-routed Apple update/OCSP host, an unusually large custom entry
// count, or a custom DNS resolver configuration.
func NetworkConfigAuditor(ctx *model.ScanContext) []model.Finding {
	data, err := os.ReadFile("/etc/hosts")
	if err != nil {
		return nil
	}
	var findings []model.Finding
	customCount := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip, host := fields[0], fields[1]
		customCount++
		if (ip == "0.0.0.0" || ip == "127.0.0.1") && hasAnySuffixOf(host, appleUpdateHosts) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindNetwork,
				Technique:   "Network Config Auditor",
				Description: "/etc/hosts redirects an Apple update/OCSP host to a null route",
				Severity:    model.SeverityHigh,
				ScannerID:   "network-config-auditor",
				Evidence:    []string{"path=/etc/hosts", "host=" + host, "ip=" + ip},
				Timestamp:   ctx.Now,
			})
		}
	}
	if customCount > hostsEntryCountThreshold {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindNetwork,
			Technique:   "Network Config Auditor",
			Description: "unusually large number of custom /etc/hosts entries",
			Severity:    model.SeverityMedium,
			ScannerID:   "network-config-auditor",
			Evidence:    []string{"path=/etc/hosts", "entry_count=" + itoa(customCount)},
			Timestamp:   ctx.Now,
		})
	}
	if entries, err := os.ReadDir("/etc/resolver"); err == nil && len(entries) > 0 {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindNetwork,
			Technique:   "Network Config Auditor",
			Description: "custom DNS resolver configuration present under /etc/resolver",
			Severity:    model.SeverityMedium,
			ScannerID:   "network-config-auditor",
			Evidence:    []string{"path=/etc/resolver", "count=" + itoa(len(entries))},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func hasAnySuffixOf(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// Firewall flags Application Layer Firewall disablement and suspicious
// packet-filter rules.
func Firewall(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	state := adapters.RunBounded("defaults", "read", "/Library/Preferences/com.apple.alf", "globalstate")
	if state == "0" {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindNetwork,
			Technique:   "Firewall/Routing",
			Description: "Application Layer Firewall is disabled",
			Severity:    model.SeverityMedium,
			ScannerID:   "firewall-routing",
			Evidence:    []string{"path=/Library/Preferences/com.apple.alf", "globalstate=0"},
			Timestamp:   ctx.Now,
		})
	}

	rules := adapters.RunBounded("pfctl", "-sr")
	for _, line := range strings.Split(rules, "\n") {
		if strings.Contains(line, "pass all") || strings.Contains(line, "rdr") || strings.Contains(line, "nat") {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindNetwork,
				Technique:   "Firewall/Routing",
				Description: "packet-filter ruleset contains a redirect/NAT/pass-all rule",
				Severity:    model.SeverityMedium,
				ScannerID:   "firewall-routing",
				Evidence:    []string{"path=pfctl:rules", "rule=" + strings.TrimSpace(line)},
				Timestamp:   ctx.Now,
			})
		}
	}
	return findings
}

// cloudStorageAPIHosts and deadDropResolverHosts are closed tables used by
// the cloud C2 detector to classify a connection's remote hostname suffix.
var cloudStorageAPIHosts = []string{"s3.amazonaws.com", "storage.googleapis.com", "blob.core.windows.net"}
var deadDropResolverHosts = []string{"ngrok.io", "pastebin.com", "transfer.sh"}

// CloudC2Detector maps each connection's remote hostname suffix against the
// closed cloud-storage and dead-drop tables; a matching browser signing ID
// downgrades but never suppresses severity.
func CloudC2Detector(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, conn := range ctx.Connections {
		if conn.RemoteHostname == "" {
			continue
		}
		isBrowser := conn.SigningID != "" && strings.Contains(strings.ToLower(conn.SigningID), "browser")

		if hasAnySuffixOf(conn.RemoteHostname, deadDropResolverHosts) {
			sev := model.SeverityHigh
			if isBrowser {
				sev = model.SeverityMedium
			}
			findings = append(findings, netFinding(ctx, conn, "cloud-c2-detector", "Cloud C2 Detector",
				"connection to a known dead-drop resolver host", sev, "host="+conn.RemoteHostname))
		} else if hasAnySuffixOf(conn.RemoteHostname, cloudStorageAPIHosts) {
			sev := model.SeverityLow
			findings = append(findings, netFinding(ctx, conn, "cloud-c2-detector", "Cloud C2 Detector",
				"connection to a cloud-storage API host (benign in isolation, notable in aggregate)", sev, "host="+conn.RemoteHostname))
		}
	}
	return findings
}

// englishBigrams is a representative sample of common English letter
// bigrams used by the DGA classifier's bigram_ratio feature.
var englishBigrams = buildBigramSet(
	"th he an in er on re nd at on nt ha es st en of te ed or ti hi as to",
)

func buildBigramSet(samples string) map[string]bool {
	set := make(map[string]bool)
	for _, bg := range strings.Fields(samples) {
		set[bg] = true
	}
	return set
}

// IsDGA implements the feature-based classifier from §4.C: a second-level
// domain label of at least 8 characters is scored on entropy, consonant
// ratio, digit ratio, and the fraction of its letter bigrams that are
// common English bigrams. The result depends only on that label, so a
// caller may prepend any prefix without changing the verdict.
func IsDGA(domain string) bool {
	label := secondLevelLabel(domain)
	if len(label) < 8 {
		return false
	}
	entropy := shannonEntropy([]byte(label))
	consonantRatio := ratioOf(label, isConsonant)
	digitRatio := ratioOf(label, isDigitRune)
	bigramRatio := bigramMatchRatio(label)

	score := entropy * (1 - bigramRatio) * consonantRatio
	return score > 1.8 || (digitRatio > 0.3 && entropy > 3.0)
}

func secondLevelLabel(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return domain
	}
	return parts[len(parts)-2]
}

func ratioOf(s string, pred func(byte) bool) float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if pred(s[i]) {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

func isConsonant(b byte) bool {
	b = lower(b)
	return b >= 'a' && b <= 'z' && !strings.ContainsRune("aeiou", rune(b))
}

func isDigitRune(b byte) bool {
	return b >= '0' && b <= '9'
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func bigramMatchRatio(label string) float64 {
	if len(label) < 2 {
		return 0
	}
	total := len(label) - 1
	matches := 0
	for i := 0; i < total; i++ {
		bg := strings.ToLower(label[i : i+2])
		if englishBigrams[bg] {
			matches++
		}
	}
	return float64(matches) / float64(total)
}

// DGADetector runs IsDGA over every connection's remote hostname.
func DGADetector(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, conn := range ctx.Connections {
		if conn.RemoteHostname == "" || !IsDGA(conn.RemoteHostname) {
			continue
		}
		findings = append(findings, netFinding(ctx, conn, "dga-detector", "DGA Detector",
			"remote hostname's second-level label scores as algorithmically generated", model.SeverityHigh,
			"host="+conn.RemoteHostname))
	}
	return findings
}
