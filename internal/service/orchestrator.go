package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

// Orchestrator fans the content selector and file analyzer out over every
// eligible file in a change-set. Each file's pipeline is independent and
// failure-isolated; one file's error never cancels the others. Concurrency
// is bounded by a weighted semaphore so large change-sets cannot overwhelm
// the oracle or the host API.
type Orchestrator struct {
	selector *ContentSelector
	analyzer *FileAnalyzer
	maxFiles int
	workers  int64
}

// NewOrchestrator creates a fan-out orchestrator with the given file cap and
// worker pool size.
func NewOrchestrator(selector *ContentSelector, analyzer *FileAnalyzer, maxFiles, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		selector: selector,
		analyzer: analyzer,
		maxFiles: maxFiles,
		workers:  int64(workers),
	}
}

// Run analyzes every eligible file concurrently and returns the successful
// results in host order. Files that fail selection or analysis are dropped
// from the result, not retried. Aggregation happens strictly after every
// per-file task has settled.
func (o *Orchestrator) Run(ctx context.Context, owner, repo, ref string, files []domain.FileChange) []domain.FileAnalysisResult {
	eligible := make([]domain.FileChange, 0, len(files))
	for _, fc := range files {
		if o.selector.Eligible(fc) {
			eligible = append(eligible, fc)
		}
		if len(eligible) == o.maxFiles {
			break
		}
	}

	slog.Info("fan-out starting",
		"owner", owner, "repo", repo,
		"changed_files", len(files), "eligible", len(eligible), "workers", o.workers,
	)

	// Indexed slots keep host order without coordination between workers.
	slots := make([]*domain.FileAnalysisResult, len(eligible))
	sem := semaphore.NewWeighted(o.workers)
	var wg sync.WaitGroup

	for i, fc := range eligible {
		if err := sem.Acquire(ctx, 1); err != nil {
			slog.Warn("fan-out interrupted", "error", err)
			break
		}
		wg.Add(1)
		go func(i int, fc domain.FileChange) {
			defer wg.Done()
			defer sem.Release(1)

			sample := o.selector.Select(ctx, owner, repo, ref, fc)
			if sample == nil {
				return
			}

			result, err := o.analyzer.Analyze(ctx, sample)
			if err != nil {
				slog.Warn("file analysis failed", "file", fc.Filename, "error", err)
				return
			}
			slots[i] = result
		}(i, fc)
	}

	wg.Wait()

	results := make([]domain.FileAnalysisResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	slog.Info("fan-out complete", "owner", owner, "repo", repo, "succeeded", len(results), "failed", len(eligible)-len(results))
	return results
}
