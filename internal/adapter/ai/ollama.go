package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. nomic-embed-text, qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.AIProvider using the Ollama REST API.
// Supports separate endpoints for embed vs analysis (different URLs, models,
// and tokens).
type OllamaProvider struct {
	embed      OllamaEndpointConfig
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed AI provider with separate
// embed/analysis configs.
func NewOllamaProvider(embed, chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		embed:      embed,
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// ModelName returns the analysis model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

const analyzeSystemPrompt = `You are an expert code reviewer specializing in security and quality. Analyze the provided file and respond with ONLY a JSON object, no prose, matching exactly this schema:
{
  "quality_score": 0-10,
  "complexity": 0-10,
  "maintainability": 0-10,
  "security_issues": [{"title": "", "description": "", "line": 0, "severity": "low|medium|high|critical", "suggested_fix": "", "cwe": ""}],
  "suggestions": [{"title": "", "description": "", "line": 0, "type": "", "priority": "low|medium|high", "code_example": ""}],
  "metrics": {"lines_of_code": 0, "cyclomatic_complexity": 0.0, "cognitive_complexity": 0.0, "duplicate_blocks": 0},
  "insight": "one short paragraph about this file"
}`

// fileAnalysisResponse is the strict decode target for the oracle's per-file
// analysis output. Anything that does not unmarshal into this shape is
// rejected, never field-chased.
type fileAnalysisResponse struct {
	QualityScore    float64 `json:"quality_score"`
	Complexity      float64 `json:"complexity"`
	Maintainability float64 `json:"maintainability"`
	SecurityIssues  []struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		Line         int    `json:"line"`
		Severity     string `json:"severity"`
		SuggestedFix string `json:"suggested_fix"`
		CWE          string `json:"cwe"`
	} `json:"security_issues"`
	Suggestions []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Line        int    `json:"line"`
		Type        string `json:"type"`
		Priority    string `json:"priority"`
		CodeExample string `json:"code_example"`
	} `json:"suggestions"`
	Metrics struct {
		LinesOfCode          int     `json:"lines_of_code"`
		CyclomaticComplexity float64 `json:"cyclomatic_complexity"`
		CognitiveComplexity  float64 `json:"cognitive_complexity"`
		DuplicateBlocks      int     `json:"duplicate_blocks"`
	} `json:"metrics"`
	Insight string `json:"insight"`
}

// AnalyzeCode reviews one file's content with the analysis model.
func (o *OllamaProvider) AnalyzeCode(ctx context.Context, filename, content string) (*domain.FileAnalysisResult, error) {
	userPrompt := fmt.Sprintf("File: %s\n\n```\n%s\n```", filename, content)

	raw, err := o.chatOnce(ctx, analyzeSystemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("%w: analyze %s: %v", port.ErrOracle, filename, err)
	}

	var resp fileAnalysisResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: analyze %s: decode response: %v", port.ErrOracle, filename, err)
	}

	result := &domain.FileAnalysisResult{
		Filename:        filename,
		QualityScore:    clampScore(resp.QualityScore),
		Complexity:      clampScore(resp.Complexity),
		Maintainability: clampScore(resp.Maintainability),
		Metrics: domain.Metrics{
			LinesOfCode:          resp.Metrics.LinesOfCode,
			CyclomaticComplexity: resp.Metrics.CyclomaticComplexity,
			CognitiveComplexity:  resp.Metrics.CognitiveComplexity,
			DuplicateBlocks:      resp.Metrics.DuplicateBlocks,
		},
		Insight: resp.Insight,
	}

	for _, issue := range resp.SecurityIssues {
		result.SecurityIssues = append(result.SecurityIssues, domain.SecurityIssue{
			Title:        issue.Title,
			Description:  issue.Description,
			File:         filename,
			Line:         issue.Line,
			Severity:     normalizeSeverity(issue.Severity),
			SuggestedFix: issue.SuggestedFix,
			CWE:          issue.CWE,
		})
	}
	for _, sug := range resp.Suggestions {
		result.Suggestions = append(result.Suggestions, domain.Suggestion{
			Title:       sug.Title,
			Description: sug.Description,
			File:        filename,
			Line:        sug.Line,
			Type:        sug.Type,
			Priority:    normalizePriority(sug.Priority),
			CodeExample: sug.CodeExample,
		})
	}

	return result, nil
}

// maxEmbedChars is the hard input ceiling for the embedding endpoint. The
// pipeline truncates content well below this; the guard catches direct
// callers.
const maxEmbedChars = 32000

// Embed generates a vector embedding for the given text. Ollama wraps the
// vector in different envelopes depending on endpoint version, so both
// accepted shapes are decoded explicitly and anything else is rejected.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if len(text) > maxEmbedChars {
		return nil, fmt.Errorf("%w: %d chars exceeds %d", port.ErrContentTooLarge, len(text), maxEmbedChars)
	}

	payload := map[string]interface{}{
		"model": o.embed.Model,
		"input": text,
	}

	body, err := o.post(ctx, o.embed, "/api/embed", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", port.ErrOracle, err)
	}

	vector, err := decodeEmbedding(body)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", port.ErrOracle, err)
	}
	return vector, nil
}

// decodeEmbedding normalizes the two envelope shapes Ollama uses:
// {"embeddings": [[...]]} from /api/embed and {"embedding": [...]} from the
// legacy /api/embeddings endpoint.
func decodeEmbedding(body []byte) ([]float64, error) {
	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
		Embedding  []float64   `json:"embedding"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}

	switch {
	case len(resp.Embeddings) > 0:
		return resp.Embeddings[0], nil
	case len(resp.Embedding) > 0:
		return resp.Embedding, nil
	default:
		return nil, fmt.Errorf("empty embedding response")
	}
}

const summarizeSystemPrompt = `You are an expert code reviewer. Given aggregate statistics and per-file insights from an automated review, write one concise paragraph summarizing the overall state of the change. Mention the most important risks first. Respond with plain text only.`

// Summarize synthesizes the change-set level narrative from aggregate context.
func (o *OllamaProvider) Summarize(ctx context.Context, sc port.SummaryContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s/%s\n", sc.Owner, sc.Repo)
	if sc.Title != "" {
		fmt.Fprintf(&b, "Change: %s\n", sc.Title)
	}
	fmt.Fprintf(&b, "Files analyzed: %d\n", sc.FilesAnalyzed)
	fmt.Fprintf(&b, "Average quality score: %.1f/10\n", sc.QualityScore)
	fmt.Fprintf(&b, "Security issues: %d\n", sc.SecurityIssues)
	fmt.Fprintf(&b, "Suggestions: %d\n", sc.Suggestions)
	for i, insight := range sc.FileInsights {
		fmt.Fprintf(&b, "\n--- File insight %d ---\n%s\n", i+1, insight)
	}

	response, err := o.chatOnce(ctx, summarizeSystemPrompt, b.String(), false)
	if err != nil {
		return "", fmt.Errorf("%w: summarize: %v", port.ErrOracle, err)
	}
	return strings.TrimSpace(response), nil
}

// chatOnce sends one non-streaming chat completion and returns the content.
func (o *OllamaProvider) chatOnce(ctx context.Context, systemPrompt, userPrompt string, jsonFormat bool) (string, error) {
	messages := []map[string]string{
		{"role": "system", "content": systemPrompt},
		{"role": "user", "content": userPrompt},
	}

	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": messages,
		"stream":   false,
	}
	if jsonFormat {
		payload["format"] = "json"
	}

	body, err := o.post(ctx, o.chat, "/api/chat", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	return resp.Message.Content, nil
}

// post is a helper for POST requests to an Ollama endpoint (with optional bearer token).
func (o *OllamaProvider) post(ctx context.Context, cfg OllamaEndpointConfig, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// clampScore bounds an oracle score to the 0-10 scale.
func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return "critical"
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}

func normalizePriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
