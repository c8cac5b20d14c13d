// Package pipeline runs the fixed analysis stage sequence for one job and
// turns the collected stage results into a persisted report.
package pipeline

import (
	"time"

	"github.com/hackeval/repograder/internal/domain/model"
)

// StageDefinition describes one registered pipeline stage.
type StageDefinition struct {
	// Name is the stage identifier reported in job status.
	Name string
	// Fatal marks a stage whose failure aborts the whole job. Tolerant
	// stages record their failure and let the pipeline continue.
	Fatal bool
	// Timeout bounds one execution of the stage. Exceeding it counts as a
	// stage failure.
	Timeout time.Duration
}

// Timeouts holds the per-stage execution bounds.
type Timeouts struct {
	// Default applies to every analyzer stage.
	Default time.Duration
	// Clone applies to the repository fetch, which routinely takes longer.
	Clone time.Duration
}

// Sanitize applies guardrails to timeout values.
func (t *Timeouts) Sanitize() {
	if t.Default <= 0 {
		t.Default = 120 * time.Second
	}
	if t.Clone <= 0 {
		t.Clone = 300 * time.Second
	}
}

// Stages returns the full ordered stage registry. The order is fixed: the
// clone stage always runs first and is the only fatal stage.
func Stages(timeouts Timeouts) []StageDefinition {
	timeouts.Sanitize()
	return []StageDefinition{
		{Name: model.StageClone, Fatal: true, Timeout: timeouts.Clone},
		{Name: model.StageStackDetection, Timeout: timeouts.Default},
		{Name: model.StageStructureAnalysis, Timeout: timeouts.Default},
		{Name: model.StageMaturityCheck, Timeout: timeouts.Default},
		{Name: model.StageCommitForensics, Timeout: timeouts.Default},
		{Name: model.StageQualityCheck, Timeout: timeouts.Default},
		{Name: model.StageSecurityScan, Timeout: timeouts.Default},
		{Name: model.StageForensicAnalysis, Timeout: timeouts.Default},
		{Name: model.StageAIJudge, Timeout: timeouts.Default},
	}
}
