package domain

import "time"

// ChangeSet is the unit under analysis: a pull request or a repository
// snapshot at a branch/commit reference. Identity is immutable; status and
// the denormalized metadata refresh on every analysis run.
type ChangeSet struct {
	ID         string    `json:"id"          db:"id"`
	Owner      string    `json:"owner"       db:"owner"`
	Repo       string    `json:"repo"        db:"repo"`
	Kind       string    `json:"kind"        db:"kind"` // pull_request, snapshot
	Number     int       `json:"number"      db:"number"`
	Ref        string    `json:"ref"         db:"ref"`
	Status     string    `json:"status"      db:"status"`
	Title      string    `json:"title"       db:"title"`
	State      string    `json:"state"       db:"state"`
	Author     string    `json:"author"      db:"author"`
	Files      []string  `json:"files"       db:"files"`
	AnalysisID string    `json:"analysis_id" db:"analysis_id"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// ChangeSet kind constants.
const (
	ChangeSetKindPullRequest = "pull_request"
	ChangeSetKindSnapshot    = "snapshot"
)

// Analysis status constants. A change-set enters pending before any external
// call is made and always leaves it as the last step of a run.
const (
	StatusNotStarted = "not_started"
	StatusPending    = "pending"
	StatusAnalyzed   = "analyzed"
	StatusFailed     = "failed"
)

// ChangeSetMeta is the metadata fetched from the host for one analysis run.
// It refreshes the denormalized fields on the ChangeSet record.
type ChangeSetMeta struct {
	Title   string `json:"title"`
	State   string `json:"state"`
	Author  string `json:"author"`
	HeadRef string `json:"head_ref"`
}

// FileChange is one file's entry in a change-set as reported by the host.
// Read-only input to the analysis pipeline.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"` // added, modified, renamed, removed
	Patch     string `json:"patch"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// FileChange status constants.
const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusRenamed  = "renamed"
	FileStatusRemoved  = "removed"
)
