package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolutionKeyIsDeterministic(t *testing.T) {
	a := ResolutionKey("sql injection", "db.go", 12, "raw query")
	b := ResolutionKey("sql injection", "db.go", 12, "raw query")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestResolutionKeyVariesPerField(t *testing.T) {
	base := ResolutionKey("t", "f", 1, "d")
	assert.NotEqual(t, base, ResolutionKey("t2", "f", 1, "d"))
	assert.NotEqual(t, base, ResolutionKey("t", "f2", 1, "d"))
	assert.NotEqual(t, base, ResolutionKey("t", "f", 2, "d"))
	assert.NotEqual(t, base, ResolutionKey("t", "f", 1, "d2"))
}

func TestFindingKeysMatchResolutionKey(t *testing.T) {
	issue := SecurityIssue{Title: "t", File: "f", Line: 3, Description: "d"}
	assert.Equal(t, ResolutionKey("t", "f", 3, "d"), issue.IssueKey())

	sug := Suggestion{Title: "t", File: "f", Line: 3, Description: "d"}
	assert.Equal(t, issue.IssueKey(), sug.SuggestionKey())
}
