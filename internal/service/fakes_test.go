package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// fakeAI implements port.AIProvider with overridable behavior per test.
type fakeAI struct {
	analyzeFn   func(ctx context.Context, filename, content string) (*domain.FileAnalysisResult, error)
	embedFn     func(ctx context.Context, text string) ([]float64, error)
	summarizeFn func(ctx context.Context, sc port.SummaryContext) (string, error)

	mu             sync.Mutex
	summarizeCalls int
}

func (f *fakeAI) ModelName() string { return "fake-model" }

func (f *fakeAI) AnalyzeCode(ctx context.Context, filename, content string) (*domain.FileAnalysisResult, error) {
	if f.analyzeFn != nil {
		return f.analyzeFn(ctx, filename, content)
	}
	return &domain.FileAnalysisResult{Filename: filename, QualityScore: 7, Insight: "looks fine"}, nil
}

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, text)
	}
	return nil, fmt.Errorf("embed not configured")
}

func (f *fakeAI) Summarize(ctx context.Context, sc port.SummaryContext) (string, error) {
	f.mu.Lock()
	f.summarizeCalls++
	f.mu.Unlock()
	if f.summarizeFn != nil {
		return f.summarizeFn(ctx, sc)
	}
	return "synthesized summary", nil
}

func (f *fakeAI) summarizeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summarizeCalls
}

// fakeHost implements port.HostProvider with overridable behavior per test.
type fakeHost struct {
	pullRequestFn func(ctx context.Context, owner, repo string, number int) (*domain.ChangeSetMeta, error)
	prFilesFn     func(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error)
	snapshotFn    func(ctx context.Context, owner, repo, ref string) (*domain.ChangeSetMeta, error)
	treeFn        func(ctx context.Context, owner, repo, ref string) ([]domain.FileChange, error)
	contentFn     func(ctx context.Context, owner, repo, path, ref string) (string, error)
}

func (f *fakeHost) GetPullRequest(ctx context.Context, owner, repo string, number int) (*domain.ChangeSetMeta, error) {
	if f.pullRequestFn != nil {
		return f.pullRequestFn(ctx, owner, repo, number)
	}
	return &domain.ChangeSetMeta{Title: "test PR", State: "open", Author: "octocat", HeadRef: "abc123"}, nil
}

func (f *fakeHost) GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error) {
	if f.prFilesFn != nil {
		return f.prFilesFn(ctx, owner, repo, number)
	}
	return nil, nil
}

func (f *fakeHost) GetSnapshot(ctx context.Context, owner, repo, ref string) (*domain.ChangeSetMeta, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(ctx, owner, repo, ref)
	}
	return &domain.ChangeSetMeta{Title: "snapshot", State: "snapshot", Author: "octocat", HeadRef: ref}, nil
}

func (f *fakeHost) ListTree(ctx context.Context, owner, repo, ref string) ([]domain.FileChange, error) {
	if f.treeFn != nil {
		return f.treeFn(ctx, owner, repo, ref)
	}
	return nil, nil
}

func (f *fakeHost) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	if f.contentFn != nil {
		return f.contentFn(ctx, owner, repo, path, ref)
	}
	return "package main\n", nil
}

// fakeStore is an in-memory Store that records the order of mutating calls.
type fakeStore struct {
	mu          sync.Mutex
	changeSets  map[string]*domain.ChangeSet
	analyses    map[string]*domain.Analysis
	resolutions map[string]*domain.Resolution
	calls       []string
	nextID      int

	failSaveAnalysis bool
	failStatusUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		changeSets:  make(map[string]*domain.ChangeSet),
		analyses:    make(map[string]*domain.Analysis),
		resolutions: make(map[string]*domain.Resolution),
	}
}

func (f *fakeStore) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) UpsertChangeSetPending(ctx context.Context, owner, repo, kind string, number int, ref string) (*domain.ChangeSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upsert_pending")

	for _, cs := range f.changeSets {
		if cs.Owner == owner && cs.Repo == repo && cs.Kind == kind && cs.Number == number && cs.Ref == ref {
			cs.Status = domain.StatusPending
			snapshot := *cs
			return &snapshot, nil
		}
	}

	cs := &domain.ChangeSet{
		ID:     f.id("cs"),
		Owner:  owner,
		Repo:   repo,
		Kind:   kind,
		Number: number,
		Ref:    ref,
		Status: domain.StatusPending,
	}
	f.changeSets[cs.ID] = cs
	snapshot := *cs
	return &snapshot, nil
}

func (f *fakeStore) GetChangeSetByID(ctx context.Context, id string) (*domain.ChangeSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, ok := f.changeSets[id]
	if !ok {
		return nil, port.ErrChangeSetNotFound
	}
	snapshot := *cs
	return &snapshot, nil
}

func (f *fakeStore) ListChangeSets(ctx context.Context, owner, repo string) ([]domain.ChangeSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sets []domain.ChangeSet
	for _, cs := range f.changeSets {
		if cs.Owner == owner && cs.Repo == repo {
			sets = append(sets, *cs)
		}
	}
	return sets, nil
}

func (f *fakeStore) UpdateChangeSetStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update_status:" + status)
	if f.failStatusUpdate {
		return fmt.Errorf("store unavailable")
	}
	if cs, ok := f.changeSets[id]; ok {
		cs.Status = status
	}
	return nil
}

func (f *fakeStore) FinalizeChangeSet(ctx context.Context, id, analysisID string, meta *domain.ChangeSetMeta, files []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("finalize")
	cs, ok := f.changeSets[id]
	if !ok {
		return port.ErrChangeSetNotFound
	}
	cs.Status = domain.StatusAnalyzed
	cs.AnalysisID = analysisID
	cs.Title = meta.Title
	cs.State = meta.State
	cs.Author = meta.Author
	cs.Files = files
	return nil
}

func (f *fakeStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("save_analysis")
	if f.failSaveAnalysis {
		return nil, fmt.Errorf("store unavailable")
	}
	saved := *a
	saved.ID = f.id("an")
	f.analyses[saved.ID] = &saved
	return &saved, nil
}

func (f *fakeStore) DeleteAnalysis(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete_analysis:" + id)
	delete(f.analyses, id)
	for _, cs := range f.changeSets {
		if cs.AnalysisID == id {
			cs.AnalysisID = ""
		}
	}
	return nil
}

func (f *fakeStore) GetAnalysisByID(ctx context.Context, id string) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return nil, port.ErrAnalysisNotFound
	}
	snapshot := *a
	return &snapshot, nil
}

func (f *fakeStore) SetResolution(ctx context.Context, r *domain.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.ChangeSetID + "/" + r.Kind + "/" + r.ContentKey
	stored := *r
	f.resolutions[key] = &stored
	return nil
}

func (f *fakeStore) ListResolutions(ctx context.Context, changeSetID string) ([]domain.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Resolution
	for _, r := range f.resolutions {
		if r.ChangeSetID == changeSetID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// fakeVectors implements VectorSource over a static corpus.
type fakeVectors struct {
	query  map[string][]float64 // "analysisID/filename" -> vector
	corpus []domain.StoredVector
}

func (f *fakeVectors) GetFileVector(ctx context.Context, analysisID, filename string) ([]float64, error) {
	return f.query[analysisID+"/"+filename], nil
}

func (f *fakeVectors) AllVectors(ctx context.Context) ([]domain.StoredVector, error) {
	return f.corpus, nil
}
