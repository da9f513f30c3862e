package probes

import (
	"math"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

const (
	beaconRingCap       = 200
	beaconMaxKeys       = 500
	beaconMinSamples    = 5
	beaconMaxCV         = 0.3
	beaconMinIntervalS  = 1.0
	beaconMaxIntervalS  = 3600.0
)

// beaconKey identifies a (process, remote) pair.
type beaconKey struct {
	process string
	remote  string
}

// BeaconingDetector maintains bounded per-(process, remote) rings of
// connection timestamps, capped at 200 samples per key and 500 keys total
// with LRU eviction on the least-recently-updated key, confined behind
// Record/Analyze so every caller observes it atomically (§4.C, §5).
type BeaconingDetector struct {
	mu    sync.Mutex
	rings map[beaconKey][]time.Time
	lru   []beaconKey // most-recently-updated at the end
}

// NewBeaconingDetector returns an empty detector ready to record samples.
func NewBeaconingDetector() *BeaconingDetector {
	return &BeaconingDetector{rings: make(map[beaconKey][]time.Time)}
}

// Record appends one connection timestamp for (process, remote), evicting
// the oldest sample in that key's ring past the cap, and evicting the
// least-recently-updated key once the total key count exceeds the cap.
func (b *BeaconingDetector) Record(process, remote string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := beaconKey{process: process, remote: remote}
	if _, exists := b.rings[key]; !exists && len(b.rings) >= beaconMaxKeys {
		oldest := b.lru[0]
		b.lru = b.lru[1:]
		delete(b.rings, oldest)
	}

	ring := b.rings[key]
	ring = append(ring, at)
	if len(ring) > beaconRingCap {
		ring = ring[len(ring)-beaconRingCap:]
	}
	b.rings[key] = ring
	b.touchLocked(key)
}

func (b *BeaconingDetector) touchLocked(key beaconKey) {
	for i, k := range b.lru {
		if k == key {
			b.lru = append(b.lru[:i], b.lru[i+1:]...)
			break
		}
	}
	b.lru = append(b.lru, key)
}

// Analyze runs the coefficient-of-variation beaconing test over every ring
// with at least beaconMinSamples entries, emitting one finding per key
// whose interval CV is low enough and mean interval is in the expected
// beacon range.
func (b *BeaconingDetector) Analyze(now time.Time) []model.Finding {
	b.mu.Lock()
	defer b.mu.Unlock()

	var findings []model.Finding
	for key, ring := range b.rings {
		if len(ring) < beaconMinSamples {
			continue
		}
		mean, cv := intervalStats(ring)
		if cv >= beaconMaxCV || mean < beaconMinIntervalS || mean > beaconMaxIntervalS {
			continue
		}
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindNetwork,
			ProcessName: key.process,
			Technique:   "Network Anomaly Detector",
			Description: "connection interval shows low-variance periodic beaconing",
			Severity:    model.SeverityHigh,
			MitreID:     "T1071",
			ScannerID:   "network-anomaly-beaconing",
			Evidence: []string{
				"path=" + key.process,
				"remote=" + key.remote,
				"average_interval=" + itoa(int(mean)),
				"coefficient_of_variation=" + ftoa(cv),
			},
			Timestamp: now,
		})
	}
	return findings
}

// intervalStats returns the mean and coefficient of variation of the
// intervals between consecutive timestamps in ring.
func intervalStats(ring []time.Time) (mean, cv float64) {
	if len(ring) < 2 {
		return 0, math.Inf(1)
	}
	intervals := make([]float64, 0, len(ring)-1)
	for i := 1; i < len(ring); i++ {
		intervals = append(intervals, ring[i].Sub(ring[i-1]).Seconds())
	}
	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean = sum / float64(len(intervals))
	if mean == 0 {
		return 0, math.Inf(1)
	}
	var variance float64
	for _, v := range intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(intervals))
	stddev := math.Sqrt(variance)
	return mean, stddev / mean
}
