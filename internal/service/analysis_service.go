package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// Store is the persistence contract the lifecycle coordinator depends on.
// *store.PostgresStore satisfies it; tests provide fakes.
type Store interface {
	UpsertChangeSetPending(ctx context.Context, owner, repo, kind string, number int, ref string) (*domain.ChangeSet, error)
	GetChangeSetByID(ctx context.Context, id string) (*domain.ChangeSet, error)
	ListChangeSets(ctx context.Context, owner, repo string) ([]domain.ChangeSet, error)
	UpdateChangeSetStatus(ctx context.Context, id, status string) error
	FinalizeChangeSet(ctx context.Context, id, analysisID string, meta *domain.ChangeSetMeta, files []string) error
	SaveAnalysis(ctx context.Context, a *domain.Analysis) (*domain.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error
	GetAnalysisByID(ctx context.Context, id string) (*domain.Analysis, error)
	SetResolution(ctx context.Context, r *domain.Resolution) error
	ListResolutions(ctx context.Context, changeSetID string) ([]domain.Resolution, error)
}

// AnalysisService coordinates the analysis lifecycle of a change-set:
// not_started -> pending -> analyzed | failed, with re-entry through pending
// on re-analysis. A prior analysis is always deleted before the replacement
// is committed.
//
// Concurrent re-analysis of the same change-set is unguarded: the last
// writer wins. Known limitation, not silently handled.
type AnalysisService struct {
	store        Store
	host         port.HostProvider
	orchestrator *Orchestrator
	aggregator   *Aggregator
}

// NewAnalysisService creates the lifecycle coordinator.
func NewAnalysisService(store Store, host port.HostProvider, orchestrator *Orchestrator, aggregator *Aggregator) *AnalysisService {
	return &AnalysisService{
		store:        store,
		host:         host,
		orchestrator: orchestrator,
		aggregator:   aggregator,
	}
}

// AnalyzePullRequest runs (or re-runs) the full analysis of a pull request.
func (s *AnalysisService) AnalyzePullRequest(ctx context.Context, owner, repo string, number int) (*domain.Analysis, error) {
	return s.run(ctx, owner, repo, domain.ChangeSetKindPullRequest, number, "")
}

// AnalyzeSnapshot runs (or re-runs) the full analysis of a repository
// snapshot at a branch or commit reference.
func (s *AnalysisService) AnalyzeSnapshot(ctx context.Context, owner, repo, ref string) (*domain.Analysis, error) {
	return s.run(ctx, owner, repo, domain.ChangeSetKindSnapshot, 0, ref)
}

func (s *AnalysisService) run(ctx context.Context, owner, repo, kind string, number int, ref string) (analysis *domain.Analysis, err error) {
	// Persist the attempt before any external call.
	cs, err := s.store.UpsertChangeSetPending(ctx, owner, repo, kind, number, ref)
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}

	slog.Info("analysis started", "changeset_id", cs.ID, "owner", owner, "repo", repo, "kind", kind, "number", number, "ref", ref)

	// Leaving pending is the last action taken, whatever the outcome. The
	// compensation is best-effort, not transactional: a secondary failure is
	// logged and surfaced alongside the original error.
	defer func() {
		if err == nil {
			return
		}
		if compErr := s.store.UpdateChangeSetStatus(context.WithoutCancel(ctx), cs.ID, domain.StatusFailed); compErr != nil {
			slog.Error("failed to mark change-set failed", "changeset_id", cs.ID, "error", compErr)
			err = errors.Join(err, fmt.Errorf("mark failed: %w", compErr))
		}
	}()

	meta, files, err := s.fetch(ctx, cs)
	if err != nil {
		return nil, err
	}

	results := s.orchestrator.Run(ctx, owner, repo, meta.HeadRef, files)
	aggregate := s.aggregator.Aggregate(ctx, cs, meta, results)

	// Replace, never merge: the prior analysis goes away before the new one
	// becomes visible.
	if cs.AnalysisID != "" {
		if err := s.store.DeleteAnalysis(ctx, cs.AnalysisID); err != nil {
			return nil, fmt.Errorf("delete prior analysis: %w", err)
		}
	}

	saved, err := s.store.SaveAnalysis(ctx, aggregate)
	if err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	filenames := make([]string, 0, len(files))
	for _, f := range files {
		filenames = append(filenames, f.Filename)
	}
	if err := s.store.FinalizeChangeSet(ctx, cs.ID, saved.ID, meta, filenames); err != nil {
		return nil, fmt.Errorf("finalize changeset: %w", err)
	}

	slog.Info("analysis complete",
		"changeset_id", cs.ID, "analysis_id", saved.ID,
		"files_analyzed", len(results), "quality_score", saved.QualityScore,
	)
	return saved, nil
}

// fetch pulls metadata and the change-set's files from the host.
func (s *AnalysisService) fetch(ctx context.Context, cs *domain.ChangeSet) (*domain.ChangeSetMeta, []domain.FileChange, error) {
	if cs.Kind == domain.ChangeSetKindSnapshot {
		meta, err := s.host.GetSnapshot(ctx, cs.Owner, cs.Repo, cs.Ref)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		files, err := s.host.ListTree(ctx, cs.Owner, cs.Repo, meta.HeadRef)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch tree: %w", err)
		}
		return meta, files, nil
	}

	meta, err := s.host.GetPullRequest(ctx, cs.Owner, cs.Repo, cs.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pull request: %w", err)
	}
	files, err := s.host.GetPullRequestFiles(ctx, cs.Owner, cs.Repo, cs.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pull request files: %w", err)
	}
	return meta, files, nil
}

// GetChangeSet returns a change-set with its analysis (when one exists),
// with triage resolutions applied to the regenerated finding lists.
func (s *AnalysisService) GetChangeSet(ctx context.Context, id string) (*domain.ChangeSet, *domain.Analysis, error) {
	cs, err := s.store.GetChangeSetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cs.AnalysisID == "" {
		return cs, nil, nil
	}

	analysis, err := s.store.GetAnalysisByID(ctx, cs.AnalysisID)
	if err != nil {
		return nil, nil, err
	}

	resolutions, err := s.store.ListResolutions(ctx, cs.ID)
	if err != nil {
		return nil, nil, err
	}
	applyResolutions(analysis, resolutions)

	return cs, analysis, nil
}

// ListChangeSets returns all change-sets for a repository.
func (s *AnalysisService) ListChangeSets(ctx context.Context, owner, repo string) ([]domain.ChangeSet, error) {
	return s.store.ListChangeSets(ctx, owner, repo)
}

// ResolveFinding records the user-driven resolved flag for one issue or
// suggestion, keyed by content so it survives re-analysis.
func (s *AnalysisService) ResolveFinding(ctx context.Context, changeSetID, kind, title, file string, line int, description string, resolved bool) error {
	if kind != domain.TriageKindIssue && kind != domain.TriageKindSuggestion {
		return fmt.Errorf("unknown finding kind %q", kind)
	}
	if _, err := s.store.GetChangeSetByID(ctx, changeSetID); err != nil {
		return err
	}
	return s.store.SetResolution(ctx, &domain.Resolution{
		ChangeSetID: changeSetID,
		Kind:        kind,
		ContentKey:  domain.ResolutionKey(title, file, line, description),
		Resolved:    resolved,
	})
}

// applyResolutions overlays stored triage state onto the regenerated
// finding lists of an analysis.
func applyResolutions(analysis *domain.Analysis, resolutions []domain.Resolution) {
	if len(resolutions) == 0 {
		return
	}

	issues := make(map[string]bool)
	suggestions := make(map[string]bool)
	for _, r := range resolutions {
		switch r.Kind {
		case domain.TriageKindIssue:
			issues[r.ContentKey] = r.Resolved
		case domain.TriageKindSuggestion:
			suggestions[r.ContentKey] = r.Resolved
		}
	}

	markIssues := func(list []domain.SecurityIssue) {
		for i := range list {
			if resolved, ok := issues[list[i].IssueKey()]; ok {
				list[i].Resolved = resolved
			}
		}
	}
	markSuggestions := func(list []domain.Suggestion) {
		for i := range list {
			if resolved, ok := suggestions[list[i].SuggestionKey()]; ok {
				list[i].Resolved = resolved
			}
		}
	}

	markIssues(analysis.SecurityIssues)
	markSuggestions(analysis.Suggestions)
	for i := range analysis.FileResults {
		markIssues(analysis.FileResults[i].SecurityIssues)
		markSuggestions(analysis.FileResults[i].Suggestions)
	}
}
