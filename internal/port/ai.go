package port

import (
	"context"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

// AIProvider abstracts the AI oracle used for per-file analysis, embedding
// generation, and aggregate summarization. Implementations can target
// Ollama, OpenAI, or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the analysis model being used.
	ModelName() string

	// AnalyzeCode reviews one file's content and returns its findings.
	// The returned result carries no embedding; that is requested separately.
	AnalyzeCode(ctx context.Context, filename, content string) (*domain.FileAnalysisResult, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Summarize synthesizes a narrative insight from the aggregate context of
	// one analysis run.
	Summarize(ctx context.Context, sc SummaryContext) (string, error)
}

// SummaryContext is the aggregate context handed to the oracle when
// synthesizing the change-set level narrative.
type SummaryContext struct {
	Owner          string   `json:"owner"`
	Repo           string   `json:"repo"`
	Title          string   `json:"title"`
	FilesAnalyzed  int      `json:"files_analyzed"`
	QualityScore   float64  `json:"quality_score"`
	SecurityIssues int      `json:"security_issues"`
	Suggestions    int      `json:"suggestions"`
	FileInsights   []string `json:"file_insights"`
}
