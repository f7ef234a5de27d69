package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports. Callers distinguish the failure class
// with errors.Is to decide whether a retry makes sense.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrChangeSetNotFound = errors.New("change-set not found")
	ErrAnalysisNotFound  = errors.New("analysis not found")
	ErrHost              = errors.New("host API error")
	ErrOracle            = errors.New("AI oracle error")
	ErrContentTooLarge   = errors.New("content too large for embedding")
)

// HostError carries the host's HTTP status through to the caller.
type HostError struct {
	StatusCode int
	Message    string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host API error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps a 404 to ErrNotFound and everything else to ErrHost.
func (e *HostError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return ErrHost
}
