package model

import "encoding/json"

// Pipeline stage names, in execution order. The names double as the
// stage labels surfaced through status polling.
const (
	StageClone             = "clone"
	StageStackDetection    = "stack_detection"
	StageStructureAnalysis = "structure_analysis"
	StageMaturityCheck     = "maturity_check"
	StageCommitForensics   = "commit_forensics"
	StageQualityCheck      = "quality_check"
	StageSecurityScan      = "security_scan"
	StageForensicAnalysis  = "forensic_analysis"
	StageAIJudge           = "ai_judge"
)

// StageResult captures the outcome of one pipeline stage: either a raw
// analyzer payload or a failure reason. Results live only for the duration
// of the job's execution and are never persisted individually.
type StageResult struct {
	Stage  string
	Output json.RawMessage
	Err    string
}

// Failed reports whether the stage produced a failure marker instead of output.
func (r StageResult) Failed() bool {
	return r.Err != ""
}

// StageResults indexes stage results by stage name for normalization.
type StageResults map[string]StageResult

// Get returns the result for a stage; ok is false when the stage never ran.
func (s StageResults) Get(stage string) (StageResult, bool) {
	r, ok := s[stage]
	return r, ok
}
