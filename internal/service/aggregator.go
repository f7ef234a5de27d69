package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// FallbackInsight is the narrative used when the oracle cannot produce a
// summary, or when no file succeeded. The field is never left empty.
const FallbackInsight = "Automated analysis completed. Review the per-file findings for details."

// Aggregator reduces the per-file results of one run into a single
// change-set level analysis record.
type Aggregator struct {
	ai port.AIProvider
}

// NewAggregator creates an aggregator using the oracle for narrative synthesis.
func NewAggregator(ai port.AIProvider) *Aggregator {
	return &Aggregator{ai: ai}
}

// Aggregate builds the Analysis for a change-set from its successful file
// results. Scores are arithmetic means (0 when nothing succeeded), findings
// are flat concatenations, line counts are summed, and complexities are
// averaged to one decimal.
func (g *Aggregator) Aggregate(ctx context.Context, cs *domain.ChangeSet, meta *domain.ChangeSetMeta, results []domain.FileAnalysisResult) *domain.Analysis {
	analysis := &domain.Analysis{
		ChangeSetID:    cs.ID,
		SecurityIssues: []domain.SecurityIssue{},
		Suggestions:    []domain.Suggestion{},
		FileResults:    results,
	}

	if len(results) == 0 {
		analysis.Insight = FallbackInsight
		return analysis
	}

	var quality, complexity, maintainability float64
	var cyclomatic, cognitive float64
	insights := make([]string, 0, len(results))

	for _, r := range results {
		quality += r.QualityScore
		complexity += r.Complexity
		maintainability += r.Maintainability
		analysis.SecurityIssues = append(analysis.SecurityIssues, r.SecurityIssues...)
		analysis.Suggestions = append(analysis.Suggestions, r.Suggestions...)
		analysis.Metrics.LinesOfCode += r.Metrics.LinesOfCode
		analysis.Metrics.DuplicateBlocks += r.Metrics.DuplicateBlocks
		cyclomatic += r.Metrics.CyclomaticComplexity
		cognitive += r.Metrics.CognitiveComplexity
		if r.Insight != "" {
			insights = append(insights, r.Insight)
		}
	}

	n := float64(len(results))
	analysis.QualityScore = quality / n
	analysis.Complexity = complexity / n
	analysis.Maintainability = maintainability / n
	analysis.Metrics.CyclomaticComplexity = roundOneDecimal(cyclomatic / n)
	analysis.Metrics.CognitiveComplexity = roundOneDecimal(cognitive / n)

	analysis.Insight = g.synthesizeInsight(ctx, cs, meta, analysis, insights)
	return analysis
}

// synthesizeInsight asks the oracle for a narrative summary; on failure the
// fixed fallback sentence is used instead.
func (g *Aggregator) synthesizeInsight(ctx context.Context, cs *domain.ChangeSet, meta *domain.ChangeSetMeta, analysis *domain.Analysis, insights []string) string {
	sc := port.SummaryContext{
		Owner:          cs.Owner,
		Repo:           cs.Repo,
		FilesAnalyzed:  len(analysis.FileResults),
		QualityScore:   analysis.QualityScore,
		SecurityIssues: len(analysis.SecurityIssues),
		Suggestions:    len(analysis.Suggestions),
		FileInsights:   insights,
	}
	if meta != nil {
		sc.Title = meta.Title
	}

	summary, err := g.ai.Summarize(ctx, sc)
	if err != nil || summary == "" {
		slog.Warn("summary synthesis failed, using fallback", "owner", cs.Owner, "repo", cs.Repo, "error", err)
		return FallbackInsight
	}
	return summary
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
