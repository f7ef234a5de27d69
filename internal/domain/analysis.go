package domain

import "time"

// SecurityIssue is a single security finding in one file. The Resolved flag
// is user-driven triage state that survives re-analysis; it is keyed by
// content (see ResolutionKey), not by position in the regenerated list.
type SecurityIssue struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	File         string `json:"file"`
	Line         int    `json:"line,omitempty"`
	Severity     string `json:"severity"` // low, medium, high, critical
	SuggestedFix string `json:"suggested_fix,omitempty"`
	CWE          string `json:"cwe,omitempty"`
	Resolved     bool   `json:"resolved"`
}

// Suggestion is a single improvement recommendation in one file.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	File        string `json:"file"`
	Line        int    `json:"line,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority"` // low, medium, high
	CodeExample string `json:"code_example,omitempty"`
	Resolved    bool   `json:"resolved"`
}

// Metrics holds per-file (or summed/averaged aggregate) code metrics.
type Metrics struct {
	LinesOfCode          int     `json:"lines_of_code"`
	CyclomaticComplexity float64 `json:"cyclomatic_complexity"`
	CognitiveComplexity  float64 `json:"cognitive_complexity"`
	DuplicateBlocks      int     `json:"duplicate_blocks"`
}

// FileAnalysisResult is the oracle's output for one file, plus an optional
// embedding vector. When present the vector has exactly the configured
// dimension and every component is finite; anything else is dropped before
// it reaches here.
type FileAnalysisResult struct {
	Filename        string          `json:"filename"`
	QualityScore    float64         `json:"quality_score"`
	Complexity      float64         `json:"complexity"`
	Maintainability float64         `json:"maintainability"`
	SecurityIssues  []SecurityIssue `json:"security_issues"`
	Suggestions     []Suggestion    `json:"suggestions"`
	Metrics         Metrics         `json:"metrics"`
	Insight         string          `json:"insight"`
	Embedding       []float64       `json:"-"`
}

// Analysis is the aggregate record for a change-set. Exactly one Analysis
// references a ChangeSet at a time: re-analysis deletes the prior record
// before inserting the new one, never merges.
type Analysis struct {
	ID              string               `json:"id"           db:"id"`
	ChangeSetID     string               `json:"changeset_id" db:"changeset_id"`
	QualityScore    float64              `json:"quality_score"`
	Complexity      float64              `json:"complexity"`
	Maintainability float64              `json:"maintainability"`
	SecurityIssues  []SecurityIssue      `json:"security_issues"`
	Suggestions     []Suggestion         `json:"suggestions"`
	Metrics         Metrics              `json:"metrics"`
	Insight         string               `json:"insight"`
	FileResults     []FileAnalysisResult `json:"file_results"`
	CreatedAt       time.Time            `json:"created_at"   db:"created_at"`
}
