package service

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// ContentSample is the text actually submitted to the oracle for one file.
// Ephemeral — only its derived results are persisted.
type ContentSample struct {
	Filename  string
	Content   string
	Source    string // "diff" or "full"
	Truncated bool
}

// Content sample sources.
const (
	SampleSourceDiff = "diff"
	SampleSourceFull = "full"
)

// ContentSelector decides what substring of a changed file is worth
// analyzing: added-lines-only for modified files, full content otherwise,
// always under a size ceiling.
type ContentSelector struct {
	host            port.HostProvider
	maxContentChars int
	maxChangedLines int
}

// NewContentSelector creates a content selector backed by the host provider.
func NewContentSelector(host port.HostProvider, maxContentChars, maxChangedLines int) *ContentSelector {
	return &ContentSelector{
		host:            host,
		maxContentChars: maxContentChars,
		maxChangedLines: maxChangedLines,
	}
}

// analyzableExtensions is the allow-list of source/text formats worth
// sending to the oracle.
var analyzableExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".rs": true, ".rb": true, ".swift": true, ".kt": true, ".c": true,
	".cpp": true, ".cc": true, ".h": true, ".hpp": true, ".cs": true, ".php": true,
	".sh": true, ".scala": true, ".sql": true, ".proto": true, ".tf": true,
	".yaml": true, ".yml": true, ".toml": true, ".json": true, ".html": true,
	".css": true, ".scss": true, ".vue": true, ".svelte": true, ".md": true,
}

// excludedFiles are generated artifacts that produce noise, not findings.
var excludedFiles = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"go.sum": true, "Cargo.lock": true, "Gemfile.lock": true,
	"composer.lock": true, "poetry.lock": true, "Pipfile.lock": true,
}

var excludedSuffixes = []string{".min.js", ".min.css", ".map", ".lock", ".sum", ".snap"}

// Eligible reports whether a file change should enter the pipeline at all.
// Removed files, binary-ish or generated files, and oversized diffs are
// filtered out before selection.
func (s *ContentSelector) Eligible(fc domain.FileChange) bool {
	if fc.Status == domain.FileStatusRemoved {
		return false
	}
	if fc.Changes >= s.maxChangedLines {
		return false
	}
	base := path.Base(fc.Filename)
	if excludedFiles[base] {
		return false
	}
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return analyzableExtensions[strings.ToLower(path.Ext(fc.Filename))]
}

// Select returns the content sample for one eligible file, or nil when no
// usable content could be obtained. Fetch failures degrade to nil, never to
// an error that would abort the batch.
func (s *ContentSelector) Select(ctx context.Context, owner, repo, ref string, fc domain.FileChange) *ContentSample {
	switch fc.Status {
	case domain.FileStatusAdded, domain.FileStatusRenamed:
		return s.fullContent(ctx, owner, repo, ref, fc.Filename)
	case domain.FileStatusModified:
		added := extractAddedLines(fc.Patch)
		if strings.TrimSpace(added) == "" {
			// Pure deletions or a rename-only diff: fall back to full content.
			return s.fullContent(ctx, owner, repo, ref, fc.Filename)
		}
		return s.sample(fc.Filename, added, SampleSourceDiff)
	default:
		return s.fullContent(ctx, owner, repo, ref, fc.Filename)
	}
}

func (s *ContentSelector) fullContent(ctx context.Context, owner, repo, ref, filename string) *ContentSample {
	content, err := s.host.GetFileContent(ctx, owner, repo, filename, ref)
	if err != nil {
		slog.Warn("content fetch failed, skipping file", "file", filename, "error", err)
		return nil
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return s.sample(filename, content, SampleSourceFull)
}

func (s *ContentSelector) sample(filename, content, source string) *ContentSample {
	truncated := false
	if len(content) > s.maxContentChars {
		content = content[:s.maxContentChars]
		truncated = true
		slog.Warn("content truncated for analysis", "file", filename, "limit", s.maxContentChars, "source", source)
	}
	return &ContentSample{
		Filename:  filename,
		Content:   content,
		Source:    source,
		Truncated: truncated,
	}
}

// extractAddedLines pulls the added lines out of a unified diff patch,
// skipping the +++ header.
func extractAddedLines(patch string) string {
	if patch == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			b.WriteString(line[1:])
			b.WriteByte('\n')
		}
	}
	return b.String()
}
