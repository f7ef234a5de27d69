package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// FileAnalyzer wraps the per-file oracle calls: one analysis request and one
// independent embedding request. A failure here is isolated to its file and
// never aborts the batch.
type FileAnalyzer struct {
	ai        port.AIProvider
	dimension int
}

// NewFileAnalyzer creates a file analyzer with the given oracle and expected
// embedding dimension.
func NewFileAnalyzer(ai port.AIProvider, dimension int) *FileAnalyzer {
	return &FileAnalyzer{ai: ai, dimension: dimension}
}

// Analyze runs the oracle over one content sample. Embedding failure is
// independent of analysis failure: the result may come back with no vector.
func (a *FileAnalyzer) Analyze(ctx context.Context, sample *ContentSample) (*domain.FileAnalysisResult, error) {
	result, err := a.ai.AnalyzeCode(ctx, sample.Filename, sample.Content)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", sample.Filename, err)
	}

	if sample.Content != "" {
		vector, err := a.ai.Embed(ctx, sample.Content)
		if err != nil {
			slog.Warn("embedding failed, storing result without vector", "file", sample.Filename, "error", err)
		} else if err := a.validateVector(vector); err != nil {
			slog.Warn("embedding rejected", "file", sample.Filename, "error", err)
		} else {
			result.Embedding = vector
		}
	}

	return result, nil
}

// validateVector enforces the stored-vector invariant: exactly the
// configured number of components, all finite. Invalid vectors are dropped,
// never stored malformed.
func (a *FileAnalyzer) validateVector(vector []float64) error {
	if len(vector) != a.dimension {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(vector), a.dimension)
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite component at index %d", i)
		}
	}
	return nil
}
