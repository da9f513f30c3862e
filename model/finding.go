package model

import (
	"time"

	"github.com/google/uuid"
)

// Finding is the universal result record emitted by every probe.
type Finding struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	PID         int       `json:"pid,omitempty"`
	ParentPID   int       `json:"parent_pid,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
	ProcessPath string    `json:"process_path,omitempty"`
	ParentName  string    `json:"parent_name,omitempty"`
	Technique   string    `json:"technique"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	MitreID     string    `json:"mitre_id,omitempty"`
	ScannerID   string    `json:"scanner_id"`
	EnumMethod  string    `json:"enum_method,omitempty"`
	Evidence    []string  `json:"evidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewFindingID returns an opaque unique token for Finding.ID.
func NewFindingID() string {
	return uuid.NewString()
}

// CanonicalKey returns the allowlist match key for this finding: the value
// of the first evidence line starting "path=" or "hash=", by convention.
// Empty when no such line exists.
func (f Finding) CanonicalKey() string {
	for _, e := range f.Evidence {
		if len(e) > 5 && e[:5] == "path=" {
			return e[5:]
		}
		if len(e) > 5 && e[:5] == "hash=" {
			return e[5:]
		}
	}
	return ""
}

// Valid reports whether the finding satisfies the invariants of §8:
// non-empty scanner_id, non-empty technique, at least one evidence line,
// and a legal severity ordinal.
func (f Finding) Valid() bool {
	if f.ScannerID == "" || f.Technique == "" || len(f.Evidence) == 0 {
		return false
	}
	return f.Severity >= SeverityInfo && f.Severity <= SeverityCritical
}
