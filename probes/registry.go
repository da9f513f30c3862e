package probes

import (
	"github.com/ftahirops/hostwarden/model"
)

// Registry is the static probe catalog (§4.D): the orchestrator reads it
// and nothing else mutates it mid-scan. It also owns the handful of
// stateful probes (beaconing, DNS tunneling, ransomware, TCC monitor) whose
// rolling state must survive across scan cycles, confined behind the
// Record/Check/Analyze methods each one exposes.
type Registry struct {
	entries []model.ProbeEntry

	beaconing    *BeaconingDetector
	dnsTunneling *DNSTunnelingDetector
	ransomware   *RansomwareDetector
	tcc          *TCCMonitor
}

// NewRegistry builds the registry with every probe wired in, grouped into
// the fast/medium/slow tiers §4.F schedules in order. Cheap, local checks
// (syscalls, sysctl, a single short command) are fast; code-signing and filesystem walks
// are medium; anything that shells out repeatedly, walks large directory
// trees, or samples raw disk is slow.
func NewRegistry(persistenceLabels *model.PersistenceLabels, tccBaseline *model.TCCBaseline) *Registry {
	r := &Registry{
		beaconing:    NewBeaconingDetector(),
		dnsTunneling: NewDNSTunnelingDetector(),
		ransomware:   NewRansomwareDetector(),
		tcc:          NewTCCMonitor(tccBaseline),
	}

	persistence := func(ctx *model.ScanContext) []model.Finding {
		return PersistenceScanner(ctx, persistenceLabels)
	}

	r.entries = []model.ProbeEntry{
		// fast: in-memory snapshot checks, sysctl and Mach reads, and at most
		// a single short command (sysctl, nvram); no directory walks.
		{ID: "lolbin-abuse", DisplayName: "LOLBin Abuse", Tier: model.TierFast, Run: LOLBinAbuse},
		{ID: "masquerade", DisplayName: "Masquerade", Tier: model.TierFast, Run: Masquerade},
		{ID: "thread-anomaly", DisplayName: "Thread Anomaly", Tier: model.TierFast, Run: ThreadAnomaly},
		{ID: "process-integrity", DisplayName: "Process Integrity", Tier: model.TierFast, Run: ProcessIntegrity},
		{ID: "text-integrity", DisplayName: "Text Integrity", Tier: model.TierFast, Run: TextIntegrity},
		{ID: "memory-scan", DisplayName: "Memory Scan", Tier: model.TierFast, Run: MemoryScan},
		{ID: "system-integrity", DisplayName: "System Integrity", Tier: model.TierFast, Run: SystemIntegrity},
		{ID: "boot-security", DisplayName: "Boot Security", Tier: model.TierFast, Run: BootSecurity},
		{ID: "kernel-integrity", DisplayName: "Kernel Integrity", Tier: model.TierFast, Run: KernelIntegrity},
		{ID: "network-anomaly-detector", DisplayName: "Network Config & C2", Tier: model.TierFast, Run: NetworkConfigAndC2},
		{ID: "network-config-auditor", DisplayName: "Network Config Auditor", Tier: model.TierFast, Run: NetworkConfigAuditor},
		{ID: "dga-detector", DisplayName: "DGA Detector", Tier: model.TierFast, Run: DGADetector},
		{ID: "network-anomaly-beaconing", DisplayName: "Network Beaconing", Tier: model.TierFast,
			Run: func(ctx *model.ScanContext) []model.Finding {
				for _, c := range ctx.Connections {
					if c.RemoteAddr != "" {
						r.beaconing.Record(c.ProcessPath, c.RemoteAddr, ctx.Now)
					}
				}
				return r.beaconing.Analyze(ctx.Now)
			}},
		{ID: "dns-tunneling-detector", DisplayName: "DNS Tunneling Detector", Tier: model.TierFast,
			Run: func(ctx *model.ScanContext) []model.Finding {
				return r.dnsTunneling.Analyze(ctx.Now)
			}},
		{ID: "ransomware-behavior-detector", DisplayName: "Ransomware Behavior Detector", Tier: model.TierFast,
			Run: func(ctx *model.ScanContext) []model.Finding {
				return r.ransomware.Analyze(ctx.Now)
			}},
		{ID: "process-census", DisplayName: "Process Census", Tier: model.TierFast, Run: ProcessCensus},
		{ID: "sip-contradiction", DisplayName: "SIP Contradiction", Tier: model.TierFast, Run: SIPContradiction},
		{ID: "av-monitor", DisplayName: "AV Monitor", Tier: model.TierFast, Run: AVMonitor},

		// medium: one code-sign/xattr/plist read or small directory walk
		// per entity in the snapshot.
		{ID: "binary-integrity", DisplayName: "Binary Integrity", Tier: model.TierMedium, Run: BinaryIntegrity},
		{ID: "dylib-hijack", DisplayName: "Dylib Hijack", Tier: model.TierMedium, Run: DylibHijack},
		{ID: "phantom-dylib", DisplayName: "Phantom Dylib", Tier: model.TierMedium, Run: PhantomDylib},
		{ID: "memory-carve", DisplayName: "Memory Carve", Tier: model.TierMedium, Run: MemoryCarve},
		{ID: "persistence-scanner", DisplayName: "Persistence Scanner", Tier: model.TierMedium, Run: persistence},
		{ID: "stealth", DisplayName: "Stealth", Tier: model.TierMedium, Run: Stealth},
		{ID: "authorization-db", DisplayName: "Authorization DB", Tier: model.TierMedium, Run: AuthorizationDB},
		{ID: "login-xpc-services", DisplayName: "Login/XPC Services", Tier: model.TierMedium, Run: LoginXPCServices},
		{ID: "tcc-monitor", DisplayName: "TCC Monitor", Tier: model.TierMedium, Run: r.tcc.Check},
		{ID: "certificate-auditor", DisplayName: "Certificate Auditor", Tier: model.TierMedium, Run: CertificateAuditor},
		{ID: "usb-device-scanner", DisplayName: "USB Device Scanner", Tier: model.TierMedium, Run: USBDeviceScanner},
		{ID: "download-provenance", DisplayName: "Download Provenance", Tier: model.TierMedium, Run: DownloadProvenance},
		{ID: "hidden-files", DisplayName: "Hidden Files", Tier: model.TierMedium, Run: HiddenFiles},
		{ID: "xattr-abuse", DisplayName: "Xattr Abuse", Tier: model.TierMedium, Run: XattrAbuse},
		{ID: "firewall-routing", DisplayName: "Firewall/Routing", Tier: model.TierMedium, Run: Firewall},
		{ID: "cloud-c2-detector", DisplayName: "Cloud C2 Detector", Tier: model.TierMedium, Run: CloudC2Detector},
		{ID: "network-ghost", DisplayName: "Network Ghost", Tier: model.TierMedium, Run: NetworkGhost},
		{ID: "entitlement-contradiction", DisplayName: "Entitlement Contradiction", Tier: model.TierMedium, Run: EntitlementContradiction},

		// slow: application-directory walks, disk-wide scans, raw block
		// sampling, or multiple external-command invocations.
		{ID: "application-auditor", DisplayName: "Application Auditor", Tier: model.TierSlow, Run: ApplicationAuditor},
		{ID: "staging-detector", DisplayName: "Staging Detector", Tier: model.TierSlow, Run: StagingDetector},
		{ID: "timestomp", DisplayName: "Timestomp", Tier: model.TierSlow, Run: Timestomp},
		{ID: "disk-entropy", DisplayName: "Disk Entropy", Tier: model.TierSlow, Run: DiskEntropy},
		{ID: "homebrew-auditor", DisplayName: "Homebrew Auditor", Tier: model.TierSlow, Run: HomebrewAuditor},
		{ID: "npm-global-auditor", DisplayName: "npm Global Auditor", Tier: model.TierSlow, Run: NpmGlobalAuditor},
		{ID: "pip-auditor", DisplayName: "pip Auditor", Tier: model.TierSlow, Run: PipAuditor},
		{ID: "xcode-auditor", DisplayName: "Xcode Auditor", Tier: model.TierSlow, Run: XcodeAuditor},
	}
	return r
}

// Entries returns the full probe catalog. The returned slice is owned by
// the registry and must not be mutated by callers.
func (r *Registry) Entries() []model.ProbeEntry {
	return r.entries
}
