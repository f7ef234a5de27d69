package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const changeSetColumns = `id, owner, repo, kind, number, ref, status, title, state, author, files, COALESCE(analysis_id::text, ''), created_at, updated_at`

func scanChangeSet(row interface{ Scan(...interface{}) error }) (*domain.ChangeSet, error) {
	var cs domain.ChangeSet
	var files pq.StringArray
	err := row.Scan(
		&cs.ID, &cs.Owner, &cs.Repo, &cs.Kind, &cs.Number, &cs.Ref,
		&cs.Status, &cs.Title, &cs.State, &cs.Author, &files,
		&cs.AnalysisID, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cs.Files = files
	return &cs, nil
}

// --- ChangeSets ---

// UpsertChangeSetPending inserts the change-set record or, when it already
// exists, re-enters it into pending. This runs before any external call so
// the attempt is persisted even if the process dies right after.
func (s *PostgresStore) UpsertChangeSetPending(ctx context.Context, owner, repo, kind string, number int, ref string) (*domain.ChangeSet, error) {
	query := `
		INSERT INTO changesets (owner, repo, kind, number, ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner, repo, kind, number, ref) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING ` + changeSetColumns

	cs, err := scanChangeSet(s.db.QueryRowContext(ctx, query, owner, repo, kind, number, ref, domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("upsert changeset: %w", err)
	}
	return cs, nil
}

// GetChangeSetByID retrieves a change-set by ID.
func (s *PostgresStore) GetChangeSetByID(ctx context.Context, id string) (*domain.ChangeSet, error) {
	query := `SELECT ` + changeSetColumns + ` FROM changesets WHERE id = $1`

	cs, err := scanChangeSet(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrChangeSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get changeset: %w", err)
	}
	return cs, nil
}

// ListChangeSets returns all change-sets for a repository, newest first.
func (s *PostgresStore) ListChangeSets(ctx context.Context, owner, repo string) ([]domain.ChangeSet, error) {
	query := `SELECT ` + changeSetColumns + ` FROM changesets
	          WHERE owner = $1 AND repo = $2 ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("list changesets: %w", err)
	}
	defer rows.Close()

	var sets []domain.ChangeSet
	for rows.Next() {
		cs, err := scanChangeSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan changeset: %w", err)
		}
		sets = append(sets, *cs)
	}
	return sets, rows.Err()
}

// UpdateChangeSetStatus updates only the status of a change-set.
func (s *PostgresStore) UpdateChangeSetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE changesets SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, status, id)
	return err
}

// FinalizeChangeSet marks a change-set analyzed, points it at its new
// analysis, and refreshes the denormalized metadata from the host fetch.
func (s *PostgresStore) FinalizeChangeSet(ctx context.Context, id, analysisID string, meta *domain.ChangeSetMeta, files []string) error {
	query := `UPDATE changesets
	          SET status = $1, analysis_id = $2, title = $3, state = $4, author = $5, files = $6, updated_at = NOW()
	          WHERE id = $7`
	_, err := s.db.ExecContext(ctx, query,
		domain.StatusAnalyzed, analysisID, meta.Title, meta.State, meta.Author, pq.StringArray(files), id,
	)
	if err != nil {
		return fmt.Errorf("finalize changeset: %w", err)
	}
	return nil
}

// --- Analyses ---

// SaveAnalysis persists an aggregate analysis together with its ordered
// per-file results in one transaction.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) (*domain.Analysis, error) {
	issuesJSON, err := json.Marshal(a.SecurityIssues)
	if err != nil {
		return nil, fmt.Errorf("marshal security issues: %w", err)
	}
	suggestionsJSON, err := json.Marshal(a.Suggestions)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestions: %w", err)
	}
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO analyses (changeset_id, quality_score, complexity, maintainability, security_issues, suggestions, metrics, insight)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8)
	          RETURNING id, created_at`

	saved := *a
	err = tx.QueryRowContext(ctx, query,
		a.ChangeSetID, a.QualityScore, a.Complexity, a.Maintainability,
		issuesJSON, suggestionsJSON, metricsJSON, a.Insight,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_results (analysis_id, position, filename, quality_score, complexity, maintainability, security_issues, suggestions, metrics, insight, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11)`)
	if err != nil {
		return nil, fmt.Errorf("prepare file results: %w", err)
	}
	defer stmt.Close()

	for i, fr := range a.FileResults {
		frIssues, err := json.Marshal(fr.SecurityIssues)
		if err != nil {
			return nil, fmt.Errorf("marshal file issues: %w", err)
		}
		frSuggestions, err := json.Marshal(fr.Suggestions)
		if err != nil {
			return nil, fmt.Errorf("marshal file suggestions: %w", err)
		}
		frMetrics, err := json.Marshal(fr.Metrics)
		if err != nil {
			return nil, fmt.Errorf("marshal file metrics: %w", err)
		}

		var embedding interface{}
		if len(fr.Embedding) > 0 {
			embedding = pq.Float64Array(fr.Embedding)
		}

		if _, err := stmt.ExecContext(ctx,
			saved.ID, i, fr.Filename, fr.QualityScore, fr.Complexity, fr.Maintainability,
			frIssues, frSuggestions, frMetrics, fr.Insight, embedding,
		); err != nil {
			return nil, fmt.Errorf("insert file result %s: %w", fr.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit analysis: %w", err)
	}
	return &saved, nil
}

// DeleteAnalysis removes a prior analysis and its file results, and clears
// any change-set reference to it. Analyses are replaced, never versioned.
func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE changesets SET analysis_id = NULL WHERE analysis_id = $1`, id); err != nil {
		return fmt.Errorf("clear analysis reference: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

// GetAnalysisByID loads an aggregate analysis with its ordered file results.
// Embeddings are not loaded here; the vector store reads those.
func (s *PostgresStore) GetAnalysisByID(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `SELECT id, changeset_id, quality_score, complexity, maintainability,
	                 security_issues, suggestions, metrics, insight, created_at
	          FROM analyses WHERE id = $1`

	var a domain.Analysis
	var issuesJSON, suggestionsJSON, metricsJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ChangeSetID, &a.QualityScore, &a.Complexity, &a.Maintainability,
		&issuesJSON, &suggestionsJSON, &metricsJSON, &a.Insight, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	if err := json.Unmarshal(issuesJSON, &a.SecurityIssues); err != nil {
		return nil, fmt.Errorf("unmarshal security issues: %w", err)
	}
	if err := json.Unmarshal(suggestionsJSON, &a.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &a.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}

	frQuery := `SELECT filename, quality_score, complexity, maintainability,
	                   security_issues, suggestions, metrics, insight
	            FROM file_results WHERE analysis_id = $1 ORDER BY position`

	rows, err := s.db.QueryContext(ctx, frQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list file results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fr domain.FileAnalysisResult
		var frIssues, frSuggestions, frMetrics []byte
		if err := rows.Scan(
			&fr.Filename, &fr.QualityScore, &fr.Complexity, &fr.Maintainability,
			&frIssues, &frSuggestions, &frMetrics, &fr.Insight,
		); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		if err := json.Unmarshal(frIssues, &fr.SecurityIssues); err != nil {
			return nil, fmt.Errorf("unmarshal file issues: %w", err)
		}
		if err := json.Unmarshal(frSuggestions, &fr.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal file suggestions: %w", err)
		}
		if err := json.Unmarshal(frMetrics, &fr.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal file metrics: %w", err)
		}
		a.FileResults = append(a.FileResults, fr)
	}
	return &a, rows.Err()
}

// --- Triage resolutions ---

// SetResolution upserts the resolved flag for one finding, keyed by its
// content hash.
func (s *PostgresStore) SetResolution(ctx context.Context, r *domain.Resolution) error {
	query := `INSERT INTO resolutions (changeset_id, kind, content_key, resolved)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (changeset_id, kind, content_key) DO UPDATE SET
	              resolved = EXCLUDED.resolved,
	              updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, r.ChangeSetID, r.Kind, r.ContentKey, r.Resolved)
	if err != nil {
		return fmt.Errorf("set resolution: %w", err)
	}
	return nil
}

// ListResolutions returns all triage resolutions for a change-set.
func (s *PostgresStore) ListResolutions(ctx context.Context, changeSetID string) ([]domain.Resolution, error) {
	query := `SELECT changeset_id, kind, content_key, resolved, updated_at
	          FROM resolutions WHERE changeset_id = $1`

	rows, err := s.db.QueryContext(ctx, query, changeSetID)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []domain.Resolution
	for rows.Next() {
		var r domain.Resolution
		if err := rows.Scan(&r.ChangeSetID, &r.Kind, &r.ContentKey, &r.Resolved, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, rows.Err()
}
