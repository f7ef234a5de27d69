package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Triage item kinds.
const (
	TriageKindIssue      = "issue"
	TriageKindSuggestion = "suggestion"
)

// Resolution records the user-driven resolved flag for one issue or
// suggestion. It lives in a side table keyed by content rather than on the
// regenerated finding lists, so re-analysis cannot clobber triage state.
type Resolution struct {
	ChangeSetID string    `json:"changeset_id" db:"changeset_id"`
	Kind        string    `json:"kind"         db:"kind"`
	ContentKey  string    `json:"content_key"  db:"content_key"`
	Resolved    bool      `json:"resolved"     db:"resolved"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}

// ResolutionKey derives the content-based identity of a finding. Positions in
// the regenerated lists are not stable identity, so resolutions match on
// title + file + line + description instead.
func ResolutionKey(title, file string, line int, description string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s", title, file, line, description))
	return hex.EncodeToString(sum[:])
}

// IssueKey returns the resolution key of a security issue.
func (i SecurityIssue) IssueKey() string {
	return ResolutionKey(i.Title, i.File, i.Line, i.Description)
}

// SuggestionKey returns the resolution key of a suggestion.
func (s Suggestion) SuggestionKey() string {
	return ResolutionKey(s.Title, s.File, s.Line, s.Description)
}
