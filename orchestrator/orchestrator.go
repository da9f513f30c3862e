// Package orchestrator drives the tiered, parallel scan described in §4.F:
// capture the snapshot once, run every registered probe tier by tier, and
// assemble the result the correlation engine and diagnostics reporter
// consume.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ftahirops/hostwarden/allowlist"
	"github.com/ftahirops/hostwarden/correlation"
	"github.com/ftahirops/hostwarden/model"
	"github.com/ftahirops/hostwarden/snapshot"
)

// ConnectionSource reads the current network connections from whatever
// external flow collector the host offers. The orchestrator calls it
// exactly once per scan, with no retry; a failing source returns nil.
type ConnectionSource func() []model.NetworkConnection

// ProgressFunc is invoked as each probe in a tier completes, giving the UI
// a "quick answers first" feed (§4.F.3.b). It must not block.
type ProgressFunc func(model.Progress)

// Options configures one scan run.
type Options struct {
	Connections  ConnectionSource
	Allowlist    *allowlist.Store
	Correlator   *correlation.Engine
	OnProgress   ProgressFunc
	TierTimeout  time.Duration // 0 disables the per-tier wall-clock cap
}

// Orchestrator runs the probe registry against a freshly captured snapshot.
type Orchestrator struct {
	registry []model.ProbeEntry
}

// New builds an orchestrator over the given probe catalog (typically
// (*probes.Registry).Entries()).
func New(entries []model.ProbeEntry) *Orchestrator {
	return &Orchestrator{registry: entries}
}

// Run executes §4.F steps 1-5: capture once, run fast/medium/slow tiers in
// order (each tier draining before the next starts), correlate, and
// assemble a ThreatScanResult. A cancelled ctx stops the scan at the next
// tier boundary or probe return; the caller must discard the result and
// skip any diagnostics/snapshot write in that case.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (model.ThreatScanResult, error) {
	start := time.Now()
	snap := snapshot.Capture()

	var conns []model.NetworkConnection
	if opts.Connections != nil {
		conns = opts.Connections()
	}

	scanCtx := &model.ScanContext{Snapshot: *snap, Connections: conns, Now: start}

	var allResults []model.ScannerResult
	suppressed := 0

	for _, tier := range []model.Tier{model.TierFast, model.TierMedium, model.TierSlow} {
		tierEntries := entriesForTier(o.registry, tier)
		if len(tierEntries) == 0 {
			continue
		}
		results, supp, err := o.runTier(ctx, scanCtx, tierEntries, opts)
		allResults = append(allResults, results...)
		suppressed += supp
		if err != nil {
			return model.ThreatScanResult{}, err
		}
	}

	var correlations []model.Correlation
	if opts.Correlator != nil {
		correlations = opts.Correlator.Run(allResults)
	}

	return model.ThreatScanResult{
		Timestamp:       start,
		ProcessCount:    len(snap.PIDs),
		ConnectionCount: len(conns),
		ScannerResults:  allResults,
		Correlations:    correlations,
		SuppressedCount: suppressed,
		Duration:        time.Since(start),
	}, nil
}

func entriesForTier(all []model.ProbeEntry, tier model.Tier) []model.ProbeEntry {
	var out []model.ProbeEntry
	for _, e := range all {
		if e.Tier == tier {
			out = append(out, e)
		}
	}
	return out
}

// runTier starts every probe in the tier as an independent task via
// errgroup, applies the allowlist to each result as it completes, reports
// progress, and waits for the whole tier to drain before returning — the
// barrier that gives later tiers their "all fast probes finished" guarantee.
func (o *Orchestrator) runTier(parent context.Context, scanCtx *model.ScanContext, entries []model.ProbeEntry, opts Options) ([]model.ScannerResult, int, error) {
	tierCtx := parent
	var cancel context.CancelFunc
	if opts.TierTimeout > 0 {
		tierCtx, cancel = context.WithTimeout(parent, opts.TierTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(tierCtx)
	results := make([]model.ScannerResult, len(entries))
	suppressedCounts := make([]int, len(entries))

	var mu sync.Mutex
	completed := 0
	total := len(entries)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			result, supp := runOne(gctx, scanCtx, entry, opts.Allowlist)
			results[i] = result
			suppressedCounts[i] = supp

			mu.Lock()
			completed++
			if opts.OnProgress != nil {
				opts.OnProgress(model.Progress{Completed: completed, Total: total, LatestResult: result})
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if parent.Err() != nil {
		// Whole scan cancelled: caller discards everything collected so far.
		return nil, 0, parent.Err()
	}

	suppressedTotal := 0
	for _, s := range suppressedCounts {
		suppressedTotal += s
	}
	return results, suppressedTotal, err
}

// runOne executes a single probe, marking it incomplete (rather than
// failing the scan) if its tier's deadline elapses mid-run, and applies the
// allowlist to whatever findings it produced.
func runOne(ctx context.Context, scanCtx *model.ScanContext, entry model.ProbeEntry, store *allowlist.Store) (model.ScannerResult, int) {
	start := time.Now()

	done := make(chan []model.Finding, 1)
	panicked := make(chan struct{}, 1)
	go func() {
		defer func() {
			if recover() != nil {
				panicked <- struct{}{}
				done <- nil
			}
		}()
		done <- entry.Run(scanCtx)
	}()

	var findings []model.Finding
	incomplete := false
	errorKind := ""
	select {
	case findings = <-done:
		select {
		case <-panicked:
			errorKind = "panic"
		default:
		}
	case <-ctx.Done():
		incomplete = true
	}

	suppressed := 0
	if store != nil {
		var kept []model.Finding
		kept, suppressed = store.Filter(findings, entry.ID)
		findings = kept
	}

	return model.ScannerResult{
		ProbeID:     entry.ID,
		DisplayName: entry.DisplayName,
		Tier:        entry.Tier,
		Findings:    findings,
		Duration:    time.Since(start),
		Timestamp:   start,
		Incomplete:  incomplete,
		ErrorKind:   errorKind,
	}, suppressed
}
