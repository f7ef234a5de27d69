package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

func newTestProvider(srv *httptest.Server) *OllamaProvider {
	cfg := OllamaEndpointConfig{BaseURL: srv.URL, Model: "test-model"}
	return NewOllamaProvider(cfg, cfg)
}

func TestEmbedBatchEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-model", payload["model"])
		assert.Equal(t, "hello", payload["input"])

		w.Write([]byte(`{"embeddings": [[0.1, 0.2, 0.3]]}`))
	}))
	defer srv.Close()

	vector, err := newTestProvider(srv).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vector)
}

func TestEmbedLegacyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding": [1, 2]}`))
	}))
	defer srv.Close()

	vector, err := newTestProvider(srv).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vector)
}

func TestEmbedEmptyResponseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv).Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrOracle)
}

func TestEmbedServerErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv).Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrOracle)
}

func TestEmbedRejectsOversizedInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized input must not reach the endpoint")
	}))
	defer srv.Close()

	_, err := newTestProvider(srv).Embed(context.Background(), strings.Repeat("x", maxEmbedChars+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrContentTooLarge)
}

func TestEmbedSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"embedding": [1]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "m", Token: "secret"},
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "m"},
	)
	_, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
}

func TestAnalyzeCodeDecodesStrictSchema(t *testing.T) {
	analysisJSON := `{
		"quality_score": 7.5,
		"complexity": 3,
		"maintainability": 8,
		"security_issues": [{"title": "sql injection", "description": "raw query", "line": 12, "severity": "HIGH", "suggested_fix": "use placeholders", "cwe": "CWE-89"}],
		"suggestions": [{"title": "extract helper", "description": "long function", "line": 30, "type": "refactor", "priority": "weird", "code_example": ""}],
		"metrics": {"lines_of_code": 120, "cyclomatic_complexity": 4.2, "cognitive_complexity": 3.1, "duplicate_blocks": 1},
		"insight": "solid but risky query building"
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "json", payload["format"])
		assert.Equal(t, false, payload["stream"])

		resp := map[string]interface{}{
			"message": map[string]string{"content": analysisJSON},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	result, err := newTestProvider(srv).AnalyzeCode(context.Background(), "db.go", "package db")
	require.NoError(t, err)

	assert.Equal(t, "db.go", result.Filename)
	assert.InDelta(t, 7.5, result.QualityScore, 1e-9)
	assert.Equal(t, "solid but risky query building", result.Insight)
	assert.Equal(t, 120, result.Metrics.LinesOfCode)

	require.Len(t, result.SecurityIssues, 1)
	assert.Equal(t, "db.go", result.SecurityIssues[0].File)
	assert.Equal(t, "high", result.SecurityIssues[0].Severity)
	assert.Equal(t, "CWE-89", result.SecurityIssues[0].CWE)

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "db.go", result.Suggestions[0].File)
	// Unknown priorities normalize to medium.
	assert.Equal(t, "medium", result.Suggestions[0].Priority)
}

func TestAnalyzeCodeClampsScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"message": map[string]string{"content": `{"quality_score": 42, "complexity": -3, "maintainability": 5}`},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	result, err := newTestProvider(srv).AnalyzeCode(context.Background(), "a.go", "x")
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.QualityScore)
	assert.Equal(t, 0.0, result.Complexity)
	assert.Equal(t, 5.0, result.Maintainability)
}

func TestAnalyzeCodeMalformedJSONRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"message": map[string]string{"content": "I think this code is fine."},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv).AnalyzeCode(context.Background(), "a.go", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrOracle)
}

func TestSummarizePlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// No format constraint for the narrative.
		assert.NotContains(t, payload, "format")

		resp := map[string]interface{}{
			"message": map[string]string{"content": "  The change is healthy overall.\n"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	summary, err := newTestProvider(srv).Summarize(context.Background(), port.SummaryContext{
		Owner: "octo", Repo: "repo", FilesAnalyzed: 2, QualityScore: 7.2,
		FileInsights: []string{"fine", "also fine"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The change is healthy overall.", summary)
}

func TestClampScoreNaN(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(math.NaN()))
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, "critical", normalizeSeverity(" Critical "))
	assert.Equal(t, "medium", normalizeSeverity(""))
	assert.Equal(t, "medium", normalizeSeverity("urgent"))
	assert.Equal(t, "low", normalizeSeverity("LOW"))
}
