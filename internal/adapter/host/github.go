package host

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// GitHubProvider implements port.HostProvider against the GitHub REST API.
type GitHubProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubProvider creates a new GitHub host provider. baseURL is normally
// https://api.github.com; tests point it at a local server.
func NewGitHubProvider(baseURL, token string) *GitHubProvider {
	return &GitHubProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// GetPullRequest fetches pull request metadata.
func (g *GitHubProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*domain.ChangeSetMeta, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)

	var pr struct {
		Title string `json:"title"`
		State string `json:"state"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	}
	if err := g.get(ctx, path, &pr); err != nil {
		return nil, fmt.Errorf("github: pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	return &domain.ChangeSetMeta{
		Title:   pr.Title,
		State:   pr.State,
		Author:  pr.User.Login,
		HeadRef: pr.Head.SHA,
	}, nil
}

// GetPullRequestFiles lists the changed files of a pull request, paginated,
// preserving the order GitHub reports.
func (g *GitHubProvider) GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error) {
	var files []domain.FileChange

	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=100&page=%d", owner, repo, number, page)

		var batch []struct {
			Filename  string `json:"filename"`
			Status    string `json:"status"`
			Patch     string `json:"patch"`
			Additions int    `json:"additions"`
			Deletions int    `json:"deletions"`
			Changes   int    `json:"changes"`
		}
		if err := g.get(ctx, path, &batch); err != nil {
			return nil, fmt.Errorf("github: pull request files %s/%s#%d: %w", owner, repo, number, err)
		}

		for _, f := range batch {
			files = append(files, domain.FileChange{
				Filename:  f.Filename,
				Status:    f.Status,
				Patch:     f.Patch,
				Additions: f.Additions,
				Deletions: f.Deletions,
				Changes:   f.Changes,
			})
		}

		if len(batch) < 100 {
			break
		}
	}

	return files, nil
}

// GetSnapshot resolves a branch or commit reference to its commit metadata.
func (g *GitHubProvider) GetSnapshot(ctx context.Context, owner, repo, ref string) (*domain.ChangeSetMeta, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, url.PathEscape(ref))

	var commit struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"commit"`
	}
	if err := g.get(ctx, path, &commit); err != nil {
		return nil, fmt.Errorf("github: snapshot %s/%s@%s: %w", owner, repo, ref, err)
	}

	title := commit.Commit.Message
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}

	return &domain.ChangeSetMeta{
		Title:   title,
		State:   "snapshot",
		Author:  commit.Commit.Author.Name,
		HeadRef: commit.SHA,
	}, nil
}

// ListTree lists every blob in the repository tree at ref as an added file.
func (g *GitHubProvider) ListTree(ctx context.Context, owner, repo, ref string) ([]domain.FileChange, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, url.PathEscape(ref))

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			Size int    `json:"size"`
		} `json:"tree"`
	}
	if err := g.get(ctx, path, &tree); err != nil {
		return nil, fmt.Errorf("github: tree %s/%s@%s: %w", owner, repo, ref, err)
	}

	var files []domain.FileChange
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		files = append(files, domain.FileChange{
			Filename: entry.Path,
			Status:   domain.FileStatusAdded,
		})
	}
	return files, nil
}

// GetFileContent reads a file's content at a specific ref.
func (g *GitHubProvider) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path))
	if ref != "" {
		apiPath += "?ref=" + url.QueryEscape(ref)
	}

	var file struct {
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := g.get(ctx, apiPath, &file); err != nil {
		return "", fmt.Errorf("github: content %s/%s:%s: %w", owner, repo, path, err)
	}

	if file.Encoding != "base64" {
		return file.Content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("github: decode content %s: %w", path, err)
	}
	return string(decoded), nil
}

// get performs an authenticated GET and decodes the JSON body into out.
func (g *GitHubProvider) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrHost, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &port.HostError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// escapePath escapes each path segment without escaping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
