package port

import (
	"context"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

// HostProvider abstracts the version-control host API. Implementations fetch
// change-set metadata, per-file diffs, and raw file content for a specific
// host (GitHub, GitLab, etc.).
type HostProvider interface {
	// GetPullRequest fetches metadata for a pull request.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*domain.ChangeSetMeta, error)

	// GetPullRequestFiles lists the changed files of a pull request in the
	// order the host reports them.
	GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error)

	// GetSnapshot resolves a branch or commit reference to commit metadata.
	GetSnapshot(ctx context.Context, owner, repo, ref string) (*domain.ChangeSetMeta, error)

	// ListTree lists every file in the repository tree at ref. Entries are
	// reported as added files with no patch.
	ListTree(ctx context.Context, owner, repo, ref string) ([]domain.FileChange, error)

	// GetFileContent reads a file's content at a specific ref.
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
}
