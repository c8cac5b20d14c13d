package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/hackeval/repograder/internal/domain/model"
)

// NormalizeAll converts the raw stage results of one pipeline run into
// fully-populated category records. Absent or malformed analyzer output
// degrades to the documented defaults plus a warning; normalization never
// returns an error and never panics outward.
func NormalizeAll(results model.StageResults) model.NormalizedRecords {
	records := model.NormalizedRecords{Warnings: []model.Warning{}}

	records.Stack = normalizeStack(results, &records.Warnings)
	records.Structure = normalizeStructure(results, &records.Warnings)
	records.Maturity = normalizeMaturity(results, &records.Warnings)
	records.Forensics = normalizeForensics(results, &records.Warnings)
	records.Quality = normalizeQuality(results, &records.Warnings)
	records.Security = normalizeSecurity(results, &records.Warnings)
	records.Authorship = normalizeAuthorship(results, &records.Warnings)
	records.Review = normalizeReview(results, &records.Warnings)

	return records
}

// stagePayload loads and decodes a stage's output. A false return means the
// category must fall back to its defaults; a warning explaining why has
// already been appended.
func stagePayload(results model.StageResults, stage string, warnings *[]model.Warning) (any, bool) {
	res, ok := results.Get(stage)
	if !ok {
		*warnings = append(*warnings, model.Warning{Stage: stage, Reason: "stage did not run"})
		return nil, false
	}
	if res.Failed() {
		*warnings = append(*warnings, model.Warning{Stage: stage, Reason: res.Err})
		return nil, false
	}
	if len(res.Output) == 0 {
		*warnings = append(*warnings, model.Warning{Stage: stage, Reason: "stage produced no output"})
		return nil, false
	}

	var data any
	if err := json.Unmarshal(res.Output, &data); err != nil {
		*warnings = append(*warnings, model.Warning{
			Stage:  stage,
			Reason: fmt.Sprintf("unparseable output: %v", err),
		})
		return nil, false
	}
	return data, true
}

// degrade records a normalization panic as a warning. Used via defer so a
// bad payload can never take down the pipeline.
func degrade(stage string, warnings *[]model.Warning) {
	if r := recover(); r != nil {
		*warnings = append(*warnings, model.Warning{
			Stage:  stage,
			Reason: fmt.Sprintf("normalization failed: %v", r),
		})
	}
}

func normalizeStack(results model.StageResults, warnings *[]model.Warning) model.NormalizedStack {
	rec := model.NormalizedStack{Technologies: []string{}}
	defer degrade(model.StageStackDetection, warnings)

	data, ok := stagePayload(results, model.StageStackDetection, warnings)
	if !ok {
		return rec
	}

	// The detector reports either a bare list or an object wrapping one.
	if list, found := searchStringSlice(data, "@", "stack", "technologies"); found {
		rec.Technologies = list
	}
	return rec
}

func normalizeStructure(results model.StageResults, warnings *[]model.Warning) model.NormalizedStructure {
	rec := model.NormalizedStructure{Architecture: "Unknown"}
	defer degrade(model.StageStructureAnalysis, warnings)

	data, ok := stagePayload(results, model.StageStructureAnalysis, warnings)
	if !ok {
		return rec
	}

	if s, found := searchString(data, "architecture", "pattern"); found {
		rec.Architecture = s
	}
	if v, found := searchNumber(data, "organization_score", "score"); found {
		rec.OrganizationScore = clampScore(v)
	}
	if v, found := searchNumber(data, "max_depth", "depth"); found {
		rec.MaxDepth = int(v)
	}
	return rec
}

func normalizeMaturity(results model.StageResults, warnings *[]model.Warning) model.NormalizedMaturity {
	rec := model.NormalizedMaturity{DevOpsTools: []string{}}
	defer degrade(model.StageMaturityCheck, warnings)

	data, ok := stagePayload(results, model.StageMaturityCheck, warnings)
	if !ok {
		return rec
	}

	if v, found := searchNumber(data, "score", "maturity_score"); found {
		rec.Score = clampScore(v)
	}
	if b, found := searchBool(data, "is_deployable", "deployable"); found {
		rec.IsDeployable = b
	}
	if list, found := searchStringSlice(data, "devops_tools", "tools"); found {
		rec.DevOpsTools = list
	}
	if v, found := searchNumber(data, "test_files"); found {
		rec.TestFiles = int(v)
	}
	return rec
}

func normalizeForensics(results model.StageResults, warnings *[]model.Warning) model.NormalizedForensics {
	rec := model.NormalizedForensics{
		Branches:     []string{},
		Contributors: []model.Contributor{},
		Buckets:      []model.CommitBucket{},
	}
	defer degrade(model.StageCommitForensics, warnings)

	data, ok := stagePayload(results, model.StageCommitForensics, warnings)
	if !ok {
		return rec
	}

	if v, found := searchNumber(data, "total_commits", "commit_count"); found {
		rec.TotalCommits = int(v)
	}
	if list, found := searchStringSlice(data, "branches"); found {
		rec.Branches = list
	}
	if v, found := searchNumber(data, "branch_count"); found {
		rec.BranchCount = int(v)
	} else {
		rec.BranchCount = len(rec.Branches)
	}
	if v, found := searchNumber(data, "dummy_commits"); found {
		rec.DummyCommits = int(v)
	}

	rec.Contributors = normalizeContributors(data)
	if rec.TotalCommits == 0 {
		rec.TotalCommits = sumCommits(rec.Contributors)
	}
	rec.Buckets = normalizeBuckets(data)

	return rec
}

// normalizeContributors extracts per-author statistics. When a detector
// reports only a combined lines_changed figure, it is split evenly between
// additions and deletions (odd remainder goes to additions); this is the
// documented estimation policy, not an attempt to reconstruct churn.
func normalizeContributors(data any) []model.Contributor {
	contributors := []model.Contributor{}

	stats, found := searchMap(data, "author_stats", "team", "contributors")
	if !found {
		return contributors
	}

	for name, raw := range stats {
		c := model.Contributor{Name: name}
		switch v := raw.(type) {
		case float64:
			// Bare number means commit count only.
			c.Commits = int(v)
		case map[string]any:
			if n, ok := searchNumber(v, "commits"); ok {
				c.Commits = int(n)
			}
			added, hasAdded := searchNumber(v, "lines_added", "additions")
			deleted, hasDeleted := searchNumber(v, "lines_deleted", "deletions")
			if hasAdded || hasDeleted {
				c.Additions = int(added)
				c.Deletions = int(deleted)
			} else if changed, ok := searchNumber(v, "lines_changed"); ok {
				total := int(changed)
				c.Deletions = total / 2
				c.Additions = total - c.Deletions
			}
			if n, ok := searchNumber(v, "active_days_count", "active_days"); ok {
				c.ActiveDays = int(n)
			}
		default:
			continue
		}
		contributors = append(contributors, c)
	}

	sort.Slice(contributors, func(i, j int) bool {
		if contributors[i].Commits != contributors[j].Commits {
			return contributors[i].Commits > contributors[j].Commits
		}
		return contributors[i].Name < contributors[j].Name
	})

	// Share percentages are computed against the contributor commit sum so
	// they total 100 within rounding. A zero sum yields all-zero shares.
	total := sumCommits(contributors)
	if total > 0 {
		for i := range contributors {
			contributors[i].Percentage = float64(contributors[i].Commits) / float64(total) * 100
		}
	}

	return contributors
}

func sumCommits(contributors []model.Contributor) int {
	total := 0
	for _, c := range contributors {
		total += c.Commits
	}
	return total
}

func normalizeBuckets(data any) []model.CommitBucket {
	buckets := []model.CommitBucket{}

	list, found := searchSlice(data, "activity_buckets", "commit_buckets", "timeline")
	if !found {
		return buckets
	}

	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ts, ok := searchString(entry, "timestamp", "date")
		if !ok {
			continue
		}
		parsed, ok := parseBucketTime(ts)
		if !ok {
			continue
		}
		count := 0
		if v, ok := searchNumber(entry, "count", "commits"); ok {
			count = int(v)
		}
		buckets = append(buckets, model.CommitBucket{Timestamp: parsed, Count: count})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Timestamp.Before(buckets[j].Timestamp)
	})
	return buckets
}

func parseBucketTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeQuality(results model.StageResults, warnings *[]model.Warning) model.NormalizedQuality {
	rec := model.NormalizedQuality{}
	defer degrade(model.StageQualityCheck, warnings)

	data, ok := stagePayload(results, model.StageQualityCheck, warnings)
	if !ok {
		return rec
	}

	if v, found := searchNumber(data, "maintainability_index", "quality_score"); found {
		rec.MaintainabilityIndex = clampScore(v)
	}
	if v, found := searchNumber(data, "documentation_score", "doc_score"); found {
		rec.DocumentationScore = clampScore(v)
	}
	return rec
}

// severityMap maps raw detector categories onto the closed severity set.
var severityMap = map[string]model.Severity{
	"low":      model.SeverityLow,
	"info":     model.SeverityLow,
	"medium":   model.SeverityMedium,
	"moderate": model.SeverityMedium,
	"high":     model.SeverityHigh,
	"critical": model.SeverityCritical,
	"severe":   model.SeverityCritical,
}

// classifySeverity maps a raw severity label to the closed set. Unknown
// labels become medium with an explicit unclassified marker instead of
// being dropped.
func classifySeverity(raw string) (model.Severity, bool) {
	if sev, ok := severityMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return sev, false
	}
	return model.SeverityMedium, true
}

func normalizeSecurity(results model.StageResults, warnings *[]model.Warning) model.NormalizedSecurity {
	// No scan result means no detected leaks: the score keeps its neutral
	// baseline and ScanRan records that the signal is absent.
	rec := model.NormalizedSecurity{Score: 100, Findings: []model.SecurityFinding{}}
	defer degrade(model.StageSecurityScan, warnings)

	data, ok := stagePayload(results, model.StageSecurityScan, warnings)
	if !ok {
		return rec
	}
	rec.ScanRan = true

	if v, found := searchNumber(data, "score"); found {
		rec.Score = clampScore(v)
	}

	list, found := searchSlice(data, "leaked_keys", "findings", "leaks")
	if !found {
		return rec
	}
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		finding := model.SecurityFinding{Type: "Secret"}
		if s, ok := searchString(entry, "type", "kind"); ok {
			finding.Type = s
		}
		if s, ok := searchString(entry, "file", "path"); ok {
			finding.File = s
		}
		if v, ok := searchNumber(entry, "line"); ok {
			finding.Line = int(v)
		}
		if s, ok := searchString(entry, "description", "detail"); ok {
			finding.Description = s
		}
		if finding.Description == "" {
			finding.Description = fmt.Sprintf("Secret detected: %s", finding.Type)
		}
		rawSev, _ := searchString(entry, "severity", "level")
		finding.Severity, finding.Unclassified = classifySeverity(rawSev)
		rec.Findings = append(rec.Findings, finding)
	}
	return rec
}

func normalizeAuthorship(results model.StageResults, warnings *[]model.Warning) model.NormalizedAuthorship {
	rec := model.NormalizedAuthorship{Files: []model.FileAuthorship{}}
	defer degrade(model.StageForensicAnalysis, warnings)

	data, ok := stagePayload(results, model.StageForensicAnalysis, warnings)
	if !ok {
		return rec
	}

	list, found := searchSlice(data, "files")
	if !found {
		return rec
	}

	sum := 0.0
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		f := model.FileAuthorship{}
		if s, ok := searchString(entry, "path", "name", "file"); ok {
			f.Path = s
		}
		if v, ok := searchNumber(entry, "ai_pct", "ai_percent"); ok {
			f.AIPercent = clampScore(v)
		}
		if v, ok := searchNumber(entry, "plag_pct", "similarity_percent"); ok {
			f.SimilarityPercent = clampScore(v)
		}
		if s, ok := searchString(entry, "match", "match_path"); ok {
			f.MatchPath = s
		}
		rec.Files = append(rec.Files, f)
		sum += f.AIPercent
		if f.AIPercent > rec.MaxAIPercent {
			rec.MaxAIPercent = f.AIPercent
		}
	}
	if len(rec.Files) > 0 {
		rec.MeanAIPercent = sum / float64(len(rec.Files))
	}
	return rec
}

func normalizeReview(results model.StageResults, warnings *[]model.Warning) model.NormalizedReview {
	rec := model.NormalizedReview{}
	defer degrade(model.StageAIJudge, warnings)

	data, ok := stagePayload(results, model.StageAIJudge, warnings)
	if !ok {
		return rec
	}

	if s, found := searchString(data, "project_name"); found {
		rec.ProjectName = s
	}
	if v, found := searchNumber(data, "implementation_score", "scores.implementation"); found {
		rec.ImplementationScore = clampScore(v)
	}
	if s, found := searchString(data, "verdict"); found {
		rec.Verdict = s
	}
	if s, found := searchString(data, "positive_feedback", "pros"); found {
		rec.PositiveFeedback = s
	}
	if s, found := searchString(data, "constructive_feedback", "cons"); found {
		rec.ConstructiveFeedback = s
	}
	return rec
}

// clampScore bounds a score to [0, 100]; out-of-range inputs are clamped,
// never rejected.
func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// The search helpers evaluate ordered JMESPath fallback expressions against
// a decoded payload. The first expression producing a value of the wanted
// type wins; a match of the wrong type falls through to the next expression,
// which keeps every fallback chain explicit and deterministic.

func searchNumber(data any, exprs ...string) (float64, bool) {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if n, ok := v.(float64); ok {
			return n, true
		}
	}
	return 0, false
}

func searchString(data any, exprs ...string) (string, bool) {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func searchBool(data any, exprs ...string) (bool, bool) {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

func searchSlice(data any, exprs ...string) ([]any, bool) {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if list, ok := v.([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func searchStringSlice(data any, exprs ...string) ([]string, bool) {
	list, ok := searchSlice(data, exprs...)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out, true
}

func searchMap(data any, exprs ...string) (map[string]any, bool) {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}
