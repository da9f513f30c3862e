package model

import "time"

// Correlation is a composite finding produced by joining two or more probe
// findings that, together, indicate something worse than either alone.
type Correlation struct {
	ID                   string    `json:"id"`
	Rule                 string    `json:"rule"`
	ParticipatingFindings []Finding `json:"participating_findings"`
	Severity             Severity  `json:"severity"`
	Description          string    `json:"description"`
	Timestamp            time.Time `json:"timestamp"`
}

// AsFinding renders the correlation as a Finding of kind "correlation" so it
// can be merged into the same anomaly list as ordinary probe findings.
func (c Correlation) AsFinding() Finding {
	var evidence []string
	for _, f := range c.ParticipatingFindings {
		evidence = append(evidence, "participant="+f.ID+" technique="+f.Technique)
	}
	return Finding{
		ID:          c.ID,
		Kind:        KindCorrelation,
		Technique:   c.Rule,
		Description: c.Description,
		Severity:    c.Severity,
		ScannerID:   "correlation-engine",
		Evidence:    evidence,
		Timestamp:   c.Timestamp,
	}
}
