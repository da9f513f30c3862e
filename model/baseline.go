package model

import "time"

// FileEntry is the recorded state of one path in a filesystem Baseline.
type FileEntry struct {
	Hash         string    `json:"hash"`
	Size         int64     `json:"size"`
	Perms        uint32    `json:"permissions"`
	ModifiedTime time.Time `json:"modificationDate"`
	IsExecutable bool      `json:"isExecutable"`
}

// Baseline is an immutable prior capture of a fixed set of critical paths.
type Baseline struct {
	Timestamp time.Time            `json:"timestamp"`
	Entries   map[string]FileEntry `json:"entries"`
}

// BaselineDiffKind classifies a change detected against a Baseline.
type BaselineDiffKind int

const (
	DiffCreated BaselineDiffKind = iota
	DiffModified
	DiffDeleted
	DiffPermissionsChanged
)

func (k BaselineDiffKind) String() string {
	switch k {
	case DiffCreated:
		return "created"
	case DiffModified:
		return "modified"
	case DiffDeleted:
		return "deleted"
	case DiffPermissionsChanged:
		return "permissions_changed"
	}
	return "unknown"
}

// BaselineDiff is one detected change between a stored Baseline and the
// current on-disk state of a path.
type BaselineDiff struct {
	Path string
	Kind BaselineDiffKind
	Prev FileEntry
	Cur  FileEntry
}

// PersistenceLabels is the JSON shape of the stock-OS baseline used only to
// tag persistence items as known-benign, never to grant passes (§4.C).
type PersistenceLabels struct {
	LaunchDaemonLabels []string `json:"launchDaemonLabels"`
	LaunchAgentLabels  []string `json:"launchAgentLabels"`
	KextBundleIDs      []string `json:"kextBundleIDs"`
	AuthPlugins        []string `json:"authPlugins"`
	PeriodicScripts    []string `json:"periodicScripts"`
	ShellConfigs       []string `json:"shellConfigs"`
}

// Contains reports whether s is present in set, one of p's label lists.
func (p *PersistenceLabels) Contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
