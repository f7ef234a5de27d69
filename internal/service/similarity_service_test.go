package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

func storedVector(analysisID, filename string, v []float64) domain.StoredVector {
	return domain.StoredVector{
		AnalysisID:  analysisID,
		ChangeSetID: "cs-" + analysisID,
		Owner:       "octo",
		Repo:        "repo",
		Kind:        domain.ChangeSetKindPullRequest,
		Filename:    filename,
		Insight:     "insight for " + filename,
		Vector:      v,
	}
}

func TestFindSimilarNoQueryVectorIsEmptyNotError(t *testing.T) {
	vectors := &fakeVectors{query: map[string][]float64{}}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFindSimilarExcludesQueryItself(t *testing.T) {
	q := []float64{1, 0, 0}
	vectors := &fakeVectors{
		query: map[string][]float64{"an-1/a.go": q},
		corpus: []domain.StoredVector{
			storedVector("an-1", "a.go", q),
			storedVector("an-2", "b.go", []float64{1, 0, 0}),
		},
	}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "an-2", results[0].AnalysisID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestFindSimilarSortedNonIncreasing(t *testing.T) {
	q := []float64{1, 0, 0}
	vectors := &fakeVectors{
		query: map[string][]float64{"an-1/a.go": q},
		corpus: []domain.StoredVector{
			storedVector("an-2", "low.go", []float64{1, 2, 0}),
			storedVector("an-3", "high.go", []float64{1, 0.1, 0}),
			storedVector("an-4", "mid.go", []float64{1, 1, 0}),
		},
	}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "high.go", results[0].Filename)
	assert.Equal(t, "mid.go", results[1].Filename)
	assert.Equal(t, "low.go", results[2].Filename)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestFindSimilarExcludesNonPositiveScores(t *testing.T) {
	q := []float64{1, 0}
	vectors := &fakeVectors{
		query: map[string][]float64{"an-1/a.go": q},
		corpus: []domain.StoredVector{
			storedVector("an-2", "orthogonal.go", []float64{0, 1}),
			storedVector("an-3", "opposite.go", []float64{-1, 0}),
			storedVector("an-4", "aligned.go", []float64{2, 0}),
		},
	}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned.go", results[0].Filename)
}

func TestFindSimilarSkipsDimensionMismatch(t *testing.T) {
	q := []float64{1, 0, 0}
	vectors := &fakeVectors{
		query: map[string][]float64{"an-1/a.go": q},
		corpus: []domain.StoredVector{
			storedVector("an-2", "short.go", []float64{1, 0}),
			storedVector("an-3", "ok.go", []float64{1, 0, 0}),
		},
	}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok.go", results[0].Filename)
}

func TestFindSimilarCapsAtLimit(t *testing.T) {
	q := []float64{1, 0}
	corpus := make([]domain.StoredVector, 0, 8)
	for i := 0; i < 8; i++ {
		corpus = append(corpus, storedVector("an-x", "f.go", []float64{1, float64(i) * 0.1}))
		corpus[i].AnalysisID = corpus[i].AnalysisID + string(rune('a'+i))
	}
	vectors := &fakeVectors{
		query:  map[string][]float64{"an-1/a.go": q},
		corpus: corpus,
	}
	svc := NewSimilarityService(vectors, 3)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilarCarriesProvenance(t *testing.T) {
	q := []float64{1, 0}
	vectors := &fakeVectors{
		query: map[string][]float64{"an-1/a.go": q},
		corpus: []domain.StoredVector{
			storedVector("an-2", "b.go", []float64{1, 0}),
		},
	}
	svc := NewSimilarityService(vectors, 5)

	results, err := svc.FindSimilar(context.Background(), "an-1", "a.go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "octo", results[0].Owner)
	assert.Equal(t, "repo", results[0].Repo)
	assert.Equal(t, "cs-an-2", results[0].ChangeSetID)
	assert.Equal(t, "insight for b.go", results[0].Insight)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{2, 0}, []float64{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-9)
	// Zero vectors never divide by zero.
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestNewSimilarityServiceDefaultsLimit(t *testing.T) {
	svc := NewSimilarityService(&fakeVectors{}, 0)
	assert.Equal(t, 5, svc.limit)
}
