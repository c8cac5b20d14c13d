package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeval/repograder/internal/domain/model"
)

func okStage(stage, payload string) model.StageResult {
	return model.StageResult{Stage: stage, Output: json.RawMessage(payload)}
}

func resultsWith(results ...model.StageResult) model.StageResults {
	out := model.StageResults{}
	for _, r := range results {
		out[r.Stage] = r
	}
	return out
}

func TestNormalizeAll_NoStageOutput(t *testing.T) {
	records := NormalizeAll(model.StageResults{})

	assert.Empty(t, records.Stack.Technologies)
	assert.Equal(t, "Unknown", records.Structure.Architecture)
	assert.Zero(t, records.Maturity.Score)
	assert.Zero(t, records.Forensics.TotalCommits)
	assert.Zero(t, records.Quality.MaintainabilityIndex)
	assert.Empty(t, records.Authorship.Files)
	assert.Zero(t, records.Review.ImplementationScore)

	// No scan result keeps the neutral security baseline.
	assert.Equal(t, float64(100), records.Security.Score)
	assert.False(t, records.Security.ScanRan)

	// One warning per degraded category.
	assert.Len(t, records.Warnings, 8)
}

func TestNormalizeAll_MalformedPayloadDegrades(t *testing.T) {
	records := NormalizeAll(resultsWith(
		okStage(model.StageQualityCheck, `{"maintainability_index": "not a number"`),
	))

	assert.Zero(t, records.Quality.MaintainabilityIndex)

	found := false
	for _, w := range records.Warnings {
		if w.Stage == model.StageQualityCheck {
			found = true
			assert.Contains(t, w.Reason, "unparseable")
		}
	}
	assert.True(t, found, "expected a warning for the quality stage")
}

func TestNormalizeAll_FailedStageCarriesReason(t *testing.T) {
	records := NormalizeAll(resultsWith(model.StageResult{
		Stage: model.StageSecurityScan,
		Err:   "scanner timed out",
	}))

	assert.False(t, records.Security.ScanRan)
	assert.Equal(t, float64(100), records.Security.Score)

	var reasons []string
	for _, w := range records.Warnings {
		if w.Stage == model.StageSecurityScan {
			reasons = append(reasons, w.Reason)
		}
	}
	assert.Contains(t, reasons, "scanner timed out")
}

func TestNormalizeStack(t *testing.T) {
	t.Run("bare list payload", func(t *testing.T) {
		records := NormalizeAll(resultsWith(
			okStage(model.StageStackDetection, `["Go", "PostgreSQL", "Redis"]`),
		))
		assert.Equal(t, []string{"Go", "PostgreSQL", "Redis"}, records.Stack.Technologies)
	})

	t.Run("wrapped list payload", func(t *testing.T) {
		records := NormalizeAll(resultsWith(
			okStage(model.StageStackDetection, `{"stack": ["Python"]}`),
		))
		assert.Equal(t, []string{"Python"}, records.Stack.Technologies)
	})

	t.Run("technologies fallback key", func(t *testing.T) {
		records := NormalizeAll(resultsWith(
			okStage(model.StageStackDetection, `{"technologies": ["Rust"]}`),
		))
		assert.Equal(t, []string{"Rust"}, records.Stack.Technologies)
	})
}

// A fallback expression that matches a value of the wrong type must not
// short-circuit the chain; later expressions still get evaluated.
func TestSearchHelpersSkipWrongType(t *testing.T) {
	var wrapped any
	require.NoError(t, json.Unmarshal([]byte(`{"stack": ["Go"], "stats": {"a": 1}}`), &wrapped))

	list, ok := searchSlice(wrapped, "@", "stack")
	require.True(t, ok)
	assert.Equal(t, []any{"Go"}, list)

	strs, ok := searchStringSlice(wrapped, "@", "stack")
	require.True(t, ok)
	assert.Equal(t, []string{"Go"}, strs)

	m, ok := searchMap(wrapped, "stack", "stats")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, m)

	_, ok = searchSlice(wrapped, "stats", "missing")
	assert.False(t, ok)
}

func TestNormalizeForensics(t *testing.T) {
	payload := `{
		"total_commits": 10,
		"branches": ["main", "dev"],
		"dummy_commits": 1,
		"author_stats": {
			"alice": {"commits": 7, "lines_added": 500, "lines_deleted": 100, "active_days_count": 4},
			"bob": {"commits": 3, "lines_changed": 201}
		},
		"activity_buckets": [
			{"timestamp": "2025-05-02T00:00:00Z", "count": 4},
			{"timestamp": "2025-05-01T00:00:00Z", "count": 6}
		]
	}`
	records := NormalizeAll(resultsWith(okStage(model.StageCommitForensics, payload)))
	f := records.Forensics

	assert.Equal(t, 10, f.TotalCommits)
	assert.Equal(t, 2, f.BranchCount)
	assert.Equal(t, 1, f.DummyCommits)

	require.Len(t, f.Contributors, 2)
	assert.Equal(t, "alice", f.Contributors[0].Name)
	assert.InDelta(t, 70.0, f.Contributors[0].Percentage, 0.001)
	assert.InDelta(t, 30.0, f.Contributors[1].Percentage, 0.001)

	// Percentages always total 100 when any commits exist.
	sum := f.Contributors[0].Percentage + f.Contributors[1].Percentage
	assert.InDelta(t, 100.0, sum, 0.001)

	// Combined lines_changed splits evenly, odd remainder to additions.
	assert.Equal(t, 101, f.Contributors[1].Additions)
	assert.Equal(t, 100, f.Contributors[1].Deletions)

	// Buckets come back in chronological order.
	require.Len(t, f.Buckets, 2)
	assert.True(t, f.Buckets[0].Timestamp.Before(f.Buckets[1].Timestamp))
	assert.Equal(t, 6, f.Buckets[0].Count)
}

func TestNormalizeForensics_ZeroCommits(t *testing.T) {
	records := NormalizeAll(resultsWith(okStage(
		model.StageCommitForensics,
		`{"total_commits": 0, "author_stats": {}}`,
	)))

	assert.Zero(t, records.Forensics.TotalCommits)
	assert.Empty(t, records.Forensics.Contributors)
}

func TestNormalizeSecurity_SeverityMapping(t *testing.T) {
	payload := `{
		"score": 40,
		"leaked_keys": [
			{"file": "config.py", "type": "AWS Key", "severity": "critical", "line": 12},
			{"file": ".env", "type": "API Token", "severity": "exotic-label"},
			{"file": "main.go", "type": "Password"}
		]
	}`
	records := NormalizeAll(resultsWith(okStage(model.StageSecurityScan, payload)))
	sec := records.Security

	assert.True(t, sec.ScanRan)
	assert.Equal(t, float64(40), sec.Score)
	require.Len(t, sec.Findings, 3)

	assert.Equal(t, model.SeverityCritical, sec.Findings[0].Severity)
	assert.False(t, sec.Findings[0].Unclassified)

	// Unknown and missing labels map to medium and stay marked.
	for _, finding := range sec.Findings[1:] {
		assert.Equal(t, model.SeverityMedium, finding.Severity)
		assert.True(t, finding.Unclassified)
		assert.True(t, finding.Severity.Valid())
	}
}

func TestNormalizeAuthorship(t *testing.T) {
	payload := `{
		"files": [
			{"path": "a.go", "ai_pct": 120, "plag_pct": 10},
			{"path": "b.go", "ai_pct": 40, "plag_pct": 90, "match": "vendor/x.go"},
			{"path": "c.go", "ai_pct": -5}
		]
	}`
	records := NormalizeAll(resultsWith(okStage(model.StageForensicAnalysis, payload)))
	auth := records.Authorship

	require.Len(t, auth.Files, 3)

	// Out-of-range estimates are clamped into [0, 100].
	assert.Equal(t, float64(100), auth.Files[0].AIPercent)
	assert.Equal(t, float64(0), auth.Files[2].AIPercent)

	assert.Equal(t, float64(100), auth.MaxAIPercent)
	assert.InDelta(t, (100.0+40.0+0.0)/3.0, auth.MeanAIPercent, 0.001)
	assert.Equal(t, "vendor/x.go", auth.Files[1].MatchPath)
}

func TestNormalizeReview(t *testing.T) {
	payload := `{
		"project_name": "demo",
		"implementation_score": 85,
		"verdict": "Solid prototype.",
		"positive_feedback": "Clean layering. Good tests.",
		"constructive_feedback": "Needs docs."
	}`
	records := NormalizeAll(resultsWith(okStage(model.StageAIJudge, payload)))
	review := records.Review

	assert.Equal(t, "demo", review.ProjectName)
	assert.Equal(t, float64(85), review.ImplementationScore)
	assert.Equal(t, "Solid prototype.", review.Verdict)
}

func TestNormalizeMaturity(t *testing.T) {
	payload := `{"score": 70, "is_deployable": true, "devops_tools": ["Docker", "CI"], "test_files": 12}`
	records := NormalizeAll(resultsWith(okStage(model.StageMaturityCheck, payload)))
	m := records.Maturity

	assert.Equal(t, float64(70), m.Score)
	assert.True(t, m.IsDeployable)
	assert.Equal(t, []string{"Docker", "CI"}, m.DevOpsTools)
	assert.Equal(t, 12, m.TestFiles)
}

func TestNormalizeAll_Deterministic(t *testing.T) {
	results := resultsWith(
		okStage(model.StageStackDetection, `["Go"]`),
		okStage(model.StageCommitForensics, `{"total_commits": 5, "author_stats": {"a": 3, "b": 2}}`),
		okStage(model.StageSecurityScan, `{"score": 90}`),
	)

	first := NormalizeAll(results)
	second := NormalizeAll(results)
	assert.Equal(t, first, second)
}
