package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

// VectorSource is the corpus access contract for the similarity scan.
// *store.VectorStore satisfies it; tests provide fakes.
type VectorSource interface {
	GetFileVector(ctx context.Context, analysisID, filename string) ([]float64, error)
	AllVectors(ctx context.Context) ([]domain.StoredVector, error)
}

// SimilarityService answers "find semantically similar past findings"
// queries by ranking the stored embedding corpus against a query vector.
// The scan is brute-force cosine similarity over every stored vector; there
// is deliberately no index given the corpus size.
type SimilarityService struct {
	vectors   VectorSource
	threshold float64
	limit     int
}

// NewSimilarityService creates a similarity engine over the given corpus.
func NewSimilarityService(vectors VectorSource, limit int) *SimilarityService {
	if limit < 1 {
		limit = 5
	}
	return &SimilarityService{vectors: vectors, threshold: 0, limit: limit}
}

// FindSimilar ranks the corpus against the stored vector of
// (analysisID, filename). A file with no stored vector yields an empty
// result set, not an error — there is nothing to compare against. The query
// item itself is excluded, and results come back sorted by non-increasing
// similarity, capped at the configured limit.
func (s *SimilarityService) FindSimilar(ctx context.Context, analysisID, filename string) ([]domain.SimilarityResult, error) {
	query, err := s.vectors.GetFileVector(ctx, analysisID, filename)
	if err != nil {
		return nil, fmt.Errorf("resolve query vector: %w", err)
	}
	if query == nil {
		return []domain.SimilarityResult{}, nil
	}

	corpus, err := s.vectors.AllVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	results := make([]domain.SimilarityResult, 0, s.limit)
	for _, sv := range corpus {
		if sv.AnalysisID == analysisID && sv.Filename == filename {
			continue
		}
		if len(sv.Vector) != len(query) {
			continue
		}
		score := cosineSimilarity(query, sv.Vector)
		if score <= s.threshold {
			continue
		}
		results = append(results, domain.SimilarityResult{
			Owner:       sv.Owner,
			Repo:        sv.Repo,
			Kind:        sv.Kind,
			ChangeSetID: sv.ChangeSetID,
			AnalysisID:  sv.AnalysisID,
			Filename:    sv.Filename,
			Similarity:  score,
			Insight:     sv.Insight,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > s.limit {
		results = results[:s.limit]
	}

	slog.Info("similarity search complete", "analysis_id", analysisID, "file", filename, "corpus", len(corpus), "matches", len(results))
	return results, nil
}

// cosineSimilarity computes dot(a,b) / (|a|*|b|). Zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
