package model

import "time"

// TCCEntry is one row read from a TCC.db "access" table (user or system
// domain). Fields are nullable in the underlying database; zero values here
// mean "absent", not "false"/"".
type TCCEntry struct {
	Service    string
	Client     string
	Allowed    bool
	AuthReason string
	LastMod    time.Time
	HasCSReq   bool
}

// Key returns the (service, client) pair used to diff against a TCCBaseline.
func (e TCCEntry) Key() string {
	return e.Service + "|" + e.Client
}

// TCCBaseline is the first-run capture of TCC rows, used to detect later
// new_grant / modified diffs.
type TCCBaseline struct {
	Timestamp time.Time
	Entries   map[string]TCCEntry // keyed by TCCEntry.Key()
}

// HighRiskTCCServices is the closed set of TCC services whose grants raise
// severity on diff (§4.C TCC monitor).
var HighRiskTCCServices = map[string]bool{
	"kTCCServiceSystemPolicyAllFiles": true, // Full Disk Access
	"kTCCServiceScreenCapture":        true,
	"kTCCServiceAccessibility":        true,
	"kTCCServiceListenEvent":          true,
	"kTCCServicePostEvent":            true,
	"kTCCServiceAppleEvents":          true,
}
