package model

// RunFunc is the signature every probe implements: a pure function from a
// read-only scan context to a list of findings. Probes are stateless between
// scans (aside from the handful of explicitly stateful probes documented in
// §5, which confine their state behind this same signature) and must be
// safe to run concurrently with every other probe.
type RunFunc func(ctx *ScanContext) []Finding

// ProbeEntry is one row of the probe registry (§4.D).
type ProbeEntry struct {
	ID          string
	DisplayName string
	Tier        Tier
	Run         RunFunc
}
