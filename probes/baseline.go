package probes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// CriticalPaths is the fixed list of paths hashed by a filesystem baseline,
// plus the user persistence locations a scan already knows about.
var CriticalPaths = []string{
	"/System/Library/LaunchDaemons",
	"/Library/LaunchDaemons",
	"/Library/LaunchAgents",
	"/etc/hosts",
	"/etc/sudoers",
	"/etc/pam.d",
	"/usr/bin",
	"/usr/sbin",
	os.Getenv("HOME") + "/Library/LaunchAgents",
}

const baselineHashFanIn = 8
const baselineMaxFileSize = 50 * 1024 * 1024

// TakeBaseline hashes every file under CriticalPaths (plus extra paths
// supplied by the caller, e.g. user persistence locations discovered by
// PersistenceScanner), skipping files over 50 MB, fanning the hashing out
// across 8 workers.
func TakeBaseline(extra []string, now time.Time) model.Baseline {
	var files []string
	for _, root := range append(append([]string{}, CriticalPaths...), extra...) {
		files = append(files, walkFiles(root)...)
	}

	entries := make(map[string]model.FileEntry, len(files))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, baselineHashFanIn)

	for _, path := range files {
		path := path
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			entry, ok := hashFileEntry(path)
			if !ok {
				return
			}
			mu.Lock()
			entries[path] = entry
			mu.Unlock()
		}()
	}
	wg.Wait()

	return model.Baseline{Timestamp: now, Entries: entries}
}

func walkFiles(root string) []string {
	var files []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

func hashFileEntry(path string) (model.FileEntry, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > baselineMaxFileSize {
		return model.FileEntry{}, false
	}
	hash := adapters.SHA256(path)
	if hash == "" {
		return model.FileEntry{}, false
	}
	perms := uint32(info.Mode().Perm())
	if info.Mode()&os.ModeSetuid != 0 {
		perms |= 0o4000
	}
	if info.Mode()&os.ModeSetgid != 0 {
		perms |= 0o2000
	}
	return model.FileEntry{
		Hash:         hash,
		Size:         info.Size(),
		Perms:        perms,
		ModifiedTime: info.ModTime(),
		IsExecutable: info.Mode()&0111 != 0,
	}, true
}

// DiffBaseline compares cur against prev, classifying every changed,
// created, or deleted path. BaselineDiffSeverity then assigns each diff a
// path-based severity: /System or /usr/bin paths are critical, /etc and
// LaunchDaemons/Agents are high, everything else is medium, and any
// setuid-bit change is always critical regardless of path.
func DiffBaseline(prev, cur model.Baseline) []model.BaselineDiff {
	var diffs []model.BaselineDiff
	for path, curEntry := range cur.Entries {
		prevEntry, existed := prev.Entries[path]
		switch {
		case !existed:
			diffs = append(diffs, model.BaselineDiff{Path: path, Kind: model.DiffCreated, Cur: curEntry})
		case prevEntry.Perms != curEntry.Perms:
			kind := model.DiffPermissionsChanged
			diffs = append(diffs, model.BaselineDiff{Path: path, Kind: kind, Prev: prevEntry, Cur: curEntry})
		case prevEntry.Hash != curEntry.Hash:
			diffs = append(diffs, model.BaselineDiff{Path: path, Kind: model.DiffModified, Prev: prevEntry, Cur: curEntry})
		}
	}
	for path, prevEntry := range prev.Entries {
		if _, ok := cur.Entries[path]; !ok {
			diffs = append(diffs, model.BaselineDiff{Path: path, Kind: model.DiffDeleted, Prev: prevEntry})
		}
	}
	return diffs
}

// BaselineDiffSeverity implements the path-based severity ladder from §4.C.
func BaselineDiffSeverity(d model.BaselineDiff) model.Severity {
	const setuidBit = 0o4000 | 0o2000
	if (d.Prev.Perms&setuidBit) != (d.Cur.Perms & setuidBit) {
		return model.SeverityCritical
	}
	switch {
	case hasAnyPrefix(d.Path, []string{"/System/", "/usr/bin/"}):
		return model.SeverityCritical
	case hasAnyPrefix(d.Path, []string{"/etc/", "/Library/LaunchDaemons/", "/Library/LaunchAgents/"}):
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// FindingsFromBaselineDiff converts baseline diffs into findings for the FS
// baseline probe.
func FindingsFromBaselineDiff(diffs []model.BaselineDiff, now time.Time) []model.Finding {
	var findings []model.Finding
	for _, d := range diffs {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			ProcessPath: d.Path,
			Technique:   "FS Baseline",
			Description: "critical path changed since the last filesystem baseline: " + d.Kind.String(),
			Severity:    BaselineDiffSeverity(d),
			ScannerID:   "fs-baseline",
			Evidence:    []string{"path=" + d.Path, "diff=" + d.Kind.String()},
			Timestamp:   now,
		})
	}
	return findings
}

// SaveBaseline atomically writes b to path as pretty-printed JSON
// (temp file + rename, never a partial write).
func SaveBaseline(path string, b model.Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadBaseline reads a baseline file, returning a zero Baseline (not an
// error) when the file does not yet exist.
func LoadBaseline(path string) model.Baseline {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Baseline{}
	}
	var b model.Baseline
	if json.Unmarshal(data, &b) != nil {
		return model.Baseline{}
	}
	return b
}
