package store

import (
	"context"
	"fmt"
)

// migrations are idempotent DDL statements applied at startup in order.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS changesets (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		kind TEXT NOT NULL,
		number INT NOT NULL DEFAULT 0,
		ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		files TEXT[] NOT NULL DEFAULT '{}',
		analysis_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (owner, repo, kind, number, ref)
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		changeset_id UUID NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
		quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		complexity DOUBLE PRECISION NOT NULL DEFAULT 0,
		maintainability DOUBLE PRECISION NOT NULL DEFAULT 0,
		security_issues JSONB NOT NULL DEFAULT '[]',
		suggestions JSONB NOT NULL DEFAULT '[]',
		metrics JSONB NOT NULL DEFAULT '{}',
		insight TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS file_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		analysis_id UUID NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		position INT NOT NULL,
		filename TEXT NOT NULL,
		quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		complexity DOUBLE PRECISION NOT NULL DEFAULT 0,
		maintainability DOUBLE PRECISION NOT NULL DEFAULT 0,
		security_issues JSONB NOT NULL DEFAULT '[]',
		suggestions JSONB NOT NULL DEFAULT '[]',
		metrics JSONB NOT NULL DEFAULT '{}',
		insight TEXT NOT NULL DEFAULT '',
		embedding DOUBLE PRECISION[],
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_results_analysis ON file_results (analysis_id)`,
	`CREATE TABLE IF NOT EXISTS resolutions (
		changeset_id UUID NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		content_key TEXT NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (changeset_id, kind, content_key)
	)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
