package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
)

// VectorStore reads the embedding corpus for the brute-force similarity
// scan. Vectors live in plain double precision[] columns; there is no vector
// index — the corpus is scanned linearly in Go at query time.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// Dimension returns the configured embedding dimension.
func (v *VectorStore) Dimension() int {
	return v.dimension
}

// GetFileVector resolves the stored embedding for one (analysis, filename)
// pair. A missing vector returns nil, nil — there is nothing to compare
// against, which is not an error.
func (v *VectorStore) GetFileVector(ctx context.Context, analysisID, filename string) ([]float64, error) {
	query := `SELECT embedding FROM file_results
	          WHERE analysis_id = $1 AND filename = $2 AND embedding IS NOT NULL
	          LIMIT 1`

	var vector pq.Float64Array
	err := v.store.db.QueryRowContext(ctx, query, analysisID, filename).Scan(&vector)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file vector: %w", err)
	}
	return vector, nil
}

// AllVectors loads every stored embedding of the configured dimension across
// pull-request and snapshot analyses, with the provenance needed to link a
// match back to its origin.
func (v *VectorStore) AllVectors(ctx context.Context) ([]domain.StoredVector, error) {
	query := `SELECT fr.analysis_id, cs.id, cs.owner, cs.repo, cs.kind, fr.filename, fr.insight, fr.embedding
	          FROM file_results fr
	          JOIN analyses a ON a.id = fr.analysis_id
	          JOIN changesets cs ON cs.id = a.changeset_id
	          WHERE fr.embedding IS NOT NULL AND array_length(fr.embedding, 1) = $1`

	rows, err := v.store.db.QueryContext(ctx, query, v.dimension)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	var vectors []domain.StoredVector
	for rows.Next() {
		var sv domain.StoredVector
		var vector pq.Float64Array
		if err := rows.Scan(
			&sv.AnalysisID, &sv.ChangeSetID, &sv.Owner, &sv.Repo, &sv.Kind,
			&sv.Filename, &sv.Insight, &vector,
		); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		sv.Vector = vector
		vectors = append(vectors, sv)
	}
	return vectors, rows.Err()
}
