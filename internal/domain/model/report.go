package model

import "time"

// IssueType categorizes extracted report issues.
type IssueType string

const (
	// IssueTypeSecurity marks a leaked secret or other security finding.
	IssueTypeSecurity IssueType = "security"
	// IssueTypePlagiarism marks suspected AI-generated or copied code.
	IssueTypePlagiarism IssueType = "plagiarism"
	// IssueTypeQuality marks a code quality problem.
	IssueTypeQuality IssueType = "quality"
)

// Issue is one categorized problem surfaced on the report.
type Issue struct {
	Type            IssueType `json:"type"`
	Severity        Severity  `json:"severity"`
	FilePath        string    `json:"file_path,omitempty"`
	Description     string    `json:"description"`
	AIProbability   *float64  `json:"ai_probability,omitempty"`
	SimilarityScore *float64  `json:"similarity_score,omitempty"`
}

// CategoryScores holds the per-category 0-100 scores that feed the total.
type CategoryScores struct {
	Originality    float64 `json:"originality"`
	Quality        float64 `json:"quality"`
	Security       float64 `json:"security"`
	Effort         float64 `json:"effort"`
	Implementation float64 `json:"implementation"`
	Engineering    float64 `json:"engineering"`
	Organization   float64 `json:"organization"`
	Documentation  float64 `json:"documentation"`
}

// Report is the final aggregated evaluation of one repository.
// It is created once at the end of a successful pipeline run and is
// immutable afterwards; a failed job produces no Report.
type Report struct {
	ID       string `json:"id"       db:"id"`
	JobID    string `json:"job_id"   db:"job_id"`
	RepoURL  string `json:"repo_url" db:"repo_url"`
	TeamName string `json:"team_name,omitempty" db:"team_name"`

	TechStack    []string `json:"tech_stack"`
	Architecture string   `json:"architecture"`

	Scores     CategoryScores `json:"scores"`
	TotalScore float64        `json:"total_score" db:"total_score"`

	TotalCommits       int           `json:"total_commits"`
	Contributors       []Contributor `json:"contributors"`
	BurstCommitWarning bool          `json:"burst_commit_warning"`
	LastMinuteCommits  int           `json:"last_minute_commits"`

	SecurityFindings []SecurityFinding `json:"security_findings"`
	SecretsDetected  int               `json:"secrets_detected"`

	AIGeneratedPercent float64  `json:"ai_generated_percent"`
	Verdict            string   `json:"verdict,omitempty"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`

	Issues   []Issue   `json:"issues"`
	Warnings []Warning `json:"warnings"`

	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// LeaderboardEntry is one ranked row of the completed-report leaderboard.
type LeaderboardEntry struct {
	Rank       int            `json:"rank"`
	JobID      string         `json:"job_id"`
	RepoURL    string         `json:"repo_url"`
	TeamName   string         `json:"team_name,omitempty"`
	TotalScore float64        `json:"total_score"`
	Scores     CategoryScores `json:"scores"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}
