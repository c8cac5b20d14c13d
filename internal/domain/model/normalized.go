package model

import "time"

// Severity is the closed severity set for security findings.
type Severity string

const (
	// SeverityLow indicates an informational finding.
	SeverityLow Severity = "low"
	// SeverityMedium indicates a finding that should be reviewed.
	SeverityMedium Severity = "medium"
	// SeverityHigh indicates a finding that needs attention.
	SeverityHigh Severity = "high"
	// SeverityCritical indicates a finding that must be addressed.
	SeverityCritical Severity = "critical"
)

// Valid returns true if the Severity is part of the closed set.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh || s == SeverityCritical
}

// Contributor is one author's share of the commit history.
type Contributor struct {
	Name       string  `json:"name"`
	Commits    int     `json:"commits"`
	Additions  int     `json:"additions"`
	Deletions  int     `json:"deletions"`
	Percentage float64 `json:"percentage"`
	ActiveDays int     `json:"active_days"`
}

// CommitBucket is one slot of the chronological commit activity series.
type CommitBucket struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// NormalizedForensics is the fully-defaulted commit forensics record.
type NormalizedForensics struct {
	TotalCommits int            `json:"total_commits"`
	BranchCount  int            `json:"branch_count"`
	Branches     []string       `json:"branches"`
	DummyCommits int            `json:"dummy_commits"`
	Contributors []Contributor  `json:"contributors"`
	Buckets      []CommitBucket `json:"buckets"`
}

// SecurityFinding is one classified security detection.
type SecurityFinding struct {
	Type         string   `json:"type"`
	File         string   `json:"file"`
	Line         int      `json:"line"`
	Severity     Severity `json:"severity"`
	Unclassified bool     `json:"unclassified,omitempty"`
	Description  string   `json:"description"`
}

// NormalizedSecurity is the fully-defaulted security scan record.
// When the scan never ran, Score keeps the neutral baseline of 100
// (no detected leaks) and ScanRan is false.
type NormalizedSecurity struct {
	Score    float64           `json:"score"`
	ScanRan  bool              `json:"scan_ran"`
	Findings []SecurityFinding `json:"findings"`
}

// FileAuthorship is the AI-origin and similarity estimate for one file.
type FileAuthorship struct {
	Path              string  `json:"path"`
	AIPercent         float64 `json:"ai_percent"`
	SimilarityPercent float64 `json:"similarity_percent"`
	MatchPath         string  `json:"match_path,omitempty"`
}

// NormalizedAuthorship is the fully-defaulted AI-authorship record.
type NormalizedAuthorship struct {
	Files         []FileAuthorship `json:"files"`
	MaxAIPercent  float64          `json:"max_ai_percent"`
	MeanAIPercent float64          `json:"mean_ai_percent"`
}

// NormalizedReview is the fully-defaulted qualitative review record.
type NormalizedReview struct {
	ProjectName          string  `json:"project_name"`
	ImplementationScore  float64 `json:"implementation_score"`
	Verdict              string  `json:"verdict"`
	PositiveFeedback     string  `json:"positive_feedback"`
	ConstructiveFeedback string  `json:"constructive_feedback"`
}

// NormalizedQuality is the fully-defaulted quality metrics record.
type NormalizedQuality struct {
	MaintainabilityIndex float64 `json:"maintainability_index"`
	DocumentationScore   float64 `json:"documentation_score"`
}

// NormalizedMaturity is the fully-defaulted engineering maturity record.
type NormalizedMaturity struct {
	Score        float64  `json:"score"`
	IsDeployable bool     `json:"is_deployable"`
	DevOpsTools  []string `json:"devops_tools"`
	TestFiles    int      `json:"test_files"`
}

// NormalizedStructure is the fully-defaulted structure analysis record.
type NormalizedStructure struct {
	Architecture      string  `json:"architecture"`
	OrganizationScore float64 `json:"organization_score"`
	MaxDepth          int     `json:"max_depth"`
}

// NormalizedStack is the fully-defaulted tech stack record.
type NormalizedStack struct {
	Technologies []string `json:"technologies"`
}

// Warning records a degraded category on an otherwise successful report.
type Warning struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// NormalizedRecords bundles every category record. Invariant: after
// normalization every field of every record is populated; missing or
// malformed analyzer output degrades to the documented default plus a
// Warning, never to an error.
type NormalizedRecords struct {
	Stack      NormalizedStack      `json:"stack"`
	Structure  NormalizedStructure  `json:"structure"`
	Maturity   NormalizedMaturity   `json:"maturity"`
	Forensics  NormalizedForensics  `json:"forensics"`
	Quality    NormalizedQuality    `json:"quality"`
	Security   NormalizedSecurity   `json:"security"`
	Authorship NormalizedAuthorship `json:"authorship"`
	Review     NormalizedReview     `json:"review"`
	Warnings   []Warning            `json:"warnings"`
}
