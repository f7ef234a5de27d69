package domain

// StoredVector is one embedding row loaded from the corpus for the
// brute-force similarity scan, with enough provenance to link back to the
// analysis and change-set it came from.
type StoredVector struct {
	AnalysisID  string    `json:"analysis_id"  db:"analysis_id"`
	ChangeSetID string    `json:"changeset_id" db:"changeset_id"`
	Owner       string    `json:"owner"        db:"owner"`
	Repo        string    `json:"repo"         db:"repo"`
	Kind        string    `json:"kind"         db:"kind"`
	Filename    string    `json:"filename"     db:"filename"`
	Insight     string    `json:"insight"      db:"insight"`
	Vector      []float64 `json:"-"            db:"embedding"`
}

// SimilarityResult is one ranked match returned by a similarity query.
// Computed per request, never persisted.
type SimilarityResult struct {
	Owner       string  `json:"owner"`
	Repo        string  `json:"repo"`
	Kind        string  `json:"kind"`
	ChangeSetID string  `json:"changeset_id"`
	AnalysisID  string  `json:"analysis_id"`
	Filename    string  `json:"filename"`
	Similarity  float64 `json:"similarity"`
	Insight     string  `json:"insight"`
}
