package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/hackeval/repograder/internal/domain/model"
)

// Thresholds for issue extraction. A file whose AI or similarity estimate
// crosses the flag threshold produces a plagiarism issue; crossing the high
// threshold raises its severity.
const (
	plagiarismFlagPercent = 50.0
	plagiarismHighPercent = 80.0
	lowMaintainability    = 50.0
)

// AggregateInput identifies the job a report is being built for.
type AggregateInput struct {
	ReportID string
	JobID    string
	RepoURL  string
	TeamName string
}

// Aggregate folds normalized category records into the final report.
// It is a pure function: no I/O, no randomness, and the same records with
// the same config always yield the same report.
func Aggregate(in AggregateInput, records model.NormalizedRecords, cfg Config, now time.Time) model.Report {
	scores := categoryScores(records)

	report := model.Report{
		ID:       in.ReportID,
		JobID:    in.JobID,
		RepoURL:  in.RepoURL,
		TeamName: in.TeamName,

		TechStack:    records.Stack.Technologies,
		Architecture: records.Structure.Architecture,

		Scores:     scores,
		TotalScore: weightedTotal(scores, cfg.Weights),

		TotalCommits:       records.Forensics.TotalCommits,
		Contributors:       records.Forensics.Contributors,
		BurstCommitWarning: DetectBurst(records.Forensics.Buckets, cfg),
		LastMinuteCommits:  LastMinuteCommits(records.Forensics.Buckets, cfg.LastMinuteWindow),

		SecurityFindings: records.Security.Findings,
		SecretsDetected:  len(records.Security.Findings),

		AIGeneratedPercent: records.Authorship.MaxAIPercent,
		Verdict:            records.Review.Verdict,
		Strengths:          splitFeedback(records.Review.PositiveFeedback, cfg.MaxFeedbackItems),
		Improvements:       splitFeedback(records.Review.ConstructiveFeedback, cfg.MaxFeedbackItems),

		Issues:   extractIssues(records),
		Warnings: records.Warnings,

		GeneratedAt: now,
	}

	if !records.Security.ScanRan {
		report.Warnings = append(report.Warnings, model.Warning{
			Stage:  model.StageSecurityScan,
			Reason: "security score uses the no-scan baseline",
		})
	}

	return report
}

// categoryScores resolves each category's 0-100 score from its record,
// applying the documented fallback chains.
func categoryScores(records model.NormalizedRecords) model.CategoryScores {
	return model.CategoryScores{
		Originality:    originalityScore(records.Authorship),
		Quality:        records.Quality.MaintainabilityIndex,
		Security:       records.Security.Score,
		Effort:         math.Min(100, float64(records.Forensics.TotalCommits)),
		Implementation: records.Review.ImplementationScore,
		Engineering:    records.Maturity.Score,
		Organization:   records.Structure.OrganizationScore,
		Documentation:  records.Quality.DocumentationScore,
	}
}

// originalityScore inverts the AI-authorship estimate. The worst file drives
// the score; the mean is a fallback when no per-file maximum is available.
// An all-defaults authorship record scores 0, not 100, so a repository the
// analyzer never saw cannot claim perfect originality.
func originalityScore(auth model.NormalizedAuthorship) float64 {
	if len(auth.Files) == 0 {
		return 0
	}
	if auth.MaxAIPercent > 0 {
		return clampScore(100 - auth.MaxAIPercent)
	}
	return clampScore(100 - auth.MeanAIPercent)
}

func weightedTotal(scores model.CategoryScores, w Weights) float64 {
	total := scores.Originality*w.Originality +
		scores.Quality*w.Quality +
		scores.Security*w.Security +
		scores.Effort*w.Effort +
		scores.Implementation*w.Implementation +
		scores.Engineering*w.Engineering +
		scores.Organization*w.Organization +
		scores.Documentation*w.Documentation
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// extractIssues builds the categorized issue list from the normalized
// records: one security issue per finding, plagiarism issues for files over
// the AI or similarity thresholds, and a quality issue for a low but
// observed maintainability index.
func extractIssues(records model.NormalizedRecords) []model.Issue {
	issues := []model.Issue{}

	for _, finding := range records.Security.Findings {
		issues = append(issues, model.Issue{
			Type:        model.IssueTypeSecurity,
			Severity:    finding.Severity,
			FilePath:    finding.File,
			Description: finding.Description,
		})
	}

	for _, f := range records.Authorship.Files {
		if f.AIPercent > plagiarismFlagPercent {
			prob := f.AIPercent
			issues = append(issues, model.Issue{
				Type:          model.IssueTypePlagiarism,
				Severity:      plagiarismSeverity(f.AIPercent),
				FilePath:      f.Path,
				Description:   fmt.Sprintf("Likely AI-generated code (%.0f%% estimated)", f.AIPercent),
				AIProbability: &prob,
			})
		}
		if f.SimilarityPercent > plagiarismFlagPercent {
			sim := f.SimilarityPercent
			desc := fmt.Sprintf("Similar to existing code (%.0f%% match)", f.SimilarityPercent)
			if f.MatchPath != "" {
				desc = fmt.Sprintf("Similar to %s (%.0f%% match)", f.MatchPath, f.SimilarityPercent)
			}
			issues = append(issues, model.Issue{
				Type:            model.IssueTypePlagiarism,
				Severity:        plagiarismSeverity(f.SimilarityPercent),
				FilePath:        f.Path,
				Description:     desc,
				SimilarityScore: &sim,
			})
		}
	}

	mi := records.Quality.MaintainabilityIndex
	if mi > 0 && mi < lowMaintainability {
		issues = append(issues, model.Issue{
			Type:        model.IssueTypeQuality,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("Low maintainability index (%.0f)", mi),
		})
	}

	return issues
}

func plagiarismSeverity(percent float64) model.Severity {
	if percent > plagiarismHighPercent {
		return model.SeverityHigh
	}
	return model.SeverityMedium
}
