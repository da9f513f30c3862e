package probes

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

var watchedDownloadDirs = func() []string {
	home := os.Getenv("HOME")
	return []string{
		filepath.Join(home, "Downloads"),
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Documents"),
		"/tmp",
	}
}()

var executableExts = []string{".sh", ".command", ".app", ".pkg", ".scpt", ".dmg"}

var deadDropHostPatterns = []string{"pastebin.com/raw", "transfer.sh", "file.io", "anonfiles.com"}

// DownloadProvenance flags executable-extension files modified in the last
// 30 days that are missing the quarantine xattr, or whose quarantine
// source URL matches a known dead-drop host pattern.
func DownloadProvenance(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	cutoff := ctx.Now.AddDate(0, 0, -30)

	for _, dir := range watchedDownloadDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if !hasAnySuffix(p, executableExts) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				continue
			}

			quarantine := adapters.XattrGet(p, "com.apple.quarantine")
			if len(quarantine) == 0 {
				findings = append(findings, fsFinding(ctx, p, "Download Provenance",
					"executable modified in the last 30 days is missing its quarantine attribute",
					model.SeverityMedium, "missing_quarantine=true"))
				continue
			}
			qs := string(quarantine)
			for _, host := range deadDropHostPatterns {
				if strings.Contains(qs, host) {
					findings = append(findings, fsFinding(ctx, p, "Download Provenance",
						"quarantine source URL matches a known dead-drop host",
						model.SeverityHigh, "quarantine_source="+host))
				}
			}
		}
	}
	return findings
}

func fsFinding(ctx *model.ScanContext, path, technique, desc string, sev model.Severity, extra ...string) model.Finding {
	evidence := append([]string{"path=" + path}, extra...)
	return model.Finding{
		ID:          model.NewFindingID(),
		Kind:        model.KindFilesystem,
		ProcessPath: path,
		Technique:   technique,
		Description: desc,
		Severity:    sev,
		ScannerID:   strings.ToLower(strings.ReplaceAll(technique, " ", "-")),
		Evidence:    evidence,
		Timestamp:   ctx.Now,
	}
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

var dangerousDoubleExtensions = []string{
	".pdf.app", ".doc.app", ".jpg.app", ".txt.scpt", ".pdf.command",
}

// HiddenFiles flags dangerous double-extension filenames, filenames
// containing the right-to-left override character or a NUL, and
// document-extension files whose first bytes are a Mach-O magic.
func HiddenFiles(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, dir := range watchedDownloadDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			p := filepath.Join(dir, name)

			if hasAnySuffix(name, dangerousDoubleExtensions) {
				findings = append(findings, fsFinding(ctx, p, "Hidden Files", "filename uses a dangerous double extension", model.SeverityHigh))
			}
			if strings.ContainsRune(name, '‮') || strings.ContainsRune(name, 0) {
				findings = append(findings, fsFinding(ctx, p, "Hidden Files", "filename contains a right-to-left override or NUL character", model.SeverityCritical))
			}
			if hasDocumentExtension(name) && fileHasMachOMagic(p) {
				findings = append(findings, fsFinding(ctx, p, "Hidden Files", "document-extension file begins with a Mach-O magic number", model.SeverityCritical))
			}
		}
	}
	return findings
}

func hasDocumentExtension(name string) bool {
	for _, ext := range []string{".pdf", ".doc", ".docx", ".txt", ".rtf"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// fileHasMachOMagic reports whether the file at path begins with one of the
// Mach-O magic numbers hasMachOMagic recognizes.
func fileHasMachOMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 4)
	if n, err := f.Read(buf); err != nil || n < 4 {
		return false
	}
	return hasMachOMagic(buf)
}

var stagingDirNamePatterns = []string{".local-", ".gp", ".cache_"}

// StagingDetector flags archives in temp directories (severity scales with
// size) and hidden staging directories under $HOME matching known
// Cuckoo-sandbox-style naming patterns.
func StagingDetector(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	home := os.Getenv("HOME")

	for _, dir := range []string{"/tmp", "/var/tmp"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !hasAnySuffix(e.Name(), []string{".zip", ".tar.gz", ".tgz", ".7z", ".rar"}) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			sev := model.SeverityLow
			if info.Size() > 50*1024*1024 {
				sev = model.SeverityHigh
			} else if info.Size() > 5*1024*1024 {
				sev = model.SeverityMedium
			}
			findings = append(findings, fsFinding(ctx, filepath.Join(dir, e.Name()), "Staging Detector",
				"archive staged in a temporary directory", sev, "size_bytes="+itoa(int(info.Size()))))
		}
	}

	homeEntries, _ := os.ReadDir(home)
	for _, e := range homeEntries {
		if !e.IsDir() {
			continue
		}
		for _, pattern := range stagingDirNamePatterns {
			if strings.HasPrefix(e.Name(), pattern) {
				findings = append(findings, fsFinding(ctx, filepath.Join(home, e.Name()), "Staging Detector",
					"hidden directory under home matches a known staging-directory naming pattern", model.SeverityHigh))
			}
		}
	}
	return findings
}

// XattrAbuse flags non-com.apple.* extended attributes larger than 100
// bytes on an application bundle.
func XattrAbuse(ctx *model.ScanContext) []model.Finding {
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
			p := filepath.Join(dir, e.Name())
			for _, name := range adapters.XattrList(p) {
				if strings.HasPrefix(name, "com.apple.") {
					continue
				}
				val := adapters.XattrGet(p, name)
				if len(val) > 100 {
					findings = append(findings, fsFinding(ctx, p, "Xattr Abuse",
						"application bundle carries an oversized non-Apple extended attribute",
						model.SeverityMedium, "xattr="+name, "size_bytes="+itoa(len(val))))
				}
			}
		}
	}
	return findings
}

// Timestomp flags filesystem-timestamp manipulation patterns: executables in
// /tmp with an mtime over 30 days old, and five or more files in one
// directory sharing an hour-bucketed mtime. Birth time is not compared with
// mtime.
func Timestomp(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, dir := range append(append([]string{}, watchedDownloadDirs...), "/tmp") {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		hourBuckets := make(map[int64][]string)
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				continue
			}
			bucket := info.ModTime().Truncate(time.Hour).Unix()
			hourBuckets[bucket] = append(hourBuckets[bucket], p)

			if dir == "/tmp" && hasExecutableExtension(p) && ctx.Now.Sub(info.ModTime()) > 30*24*time.Hour {
				findings = append(findings, fsFinding(ctx, p, "Timestomp", "executable in a temp directory with an mtime over 30 days old", model.SeverityMedium))
			}
		}
		for _, paths := range hourBuckets {
			if len(paths) >= 5 {
				findings = append(findings, fsFinding(ctx, paths[0], "Timestomp",
					"five or more files in one directory share the same hour-bucketed mtime (bulk timestomping)",
					model.SeverityHigh, "count="+itoa(len(paths))))
			}
		}
	}
	return findings
}

const diskEntropyThreshold = 7.0
const diskEntropySampleSize = 512

// DiskEntropy parses the GPT of the boot device and samples unallocated
// gaps between partitions for high-entropy blocks, a signal of hidden or
// encrypted staged data outside any filesystem's visibility.
func DiskEntropy(ctx *model.ScanContext) []model.Finding {
	const device = "/dev/rdisk0"
	entries := adapters.GPTParse(device)
	if len(entries) == 0 {
		return nil
	}

	var findings []model.Finding
	for i := 0; i+1 < len(entries); i++ {
		gapStart := entries[i].LastLBA + 1
		gapEnd := entries[i+1].FirstLBA
		if gapEnd <= gapStart {
			continue
		}
		hits := 0
		for s := 0; s < 8; s++ {
			lba := gapStart + uint64(s)*(gapEnd-gapStart)/8
			block := adapters.RawBlockRead(device, int64(lba)*512, diskEntropySampleSize)
			if len(block) == 0 || isAllZero(block) {
				continue
			}
			if shannonEntropy(block) > diskEntropyThreshold {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		sev := model.SeverityMedium
		if hits > 2 {
			sev = model.SeverityCritical
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Disk Entropy Probe",
			Description: "unallocated GPT gap contains high-entropy blocks consistent with hidden or encrypted data",
			Severity:    sev,
			ScannerID:   "disk-entropy",
			Evidence:    []string{"path=" + device, "gap_lba_start=" + itoa(int(gapStart)), "high_entropy_blocks=" + itoa(hits)},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
