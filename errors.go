package catalogcache

import (
	"errors"
	"fmt"
)

var (
	ErrNilSource = errors.New("catalogcache: source is required")
	ErrNilStore  = errors.New("catalogcache: store is required")
	ErrClosed    = errors.New("catalogcache: engine closed")
)

// RefreshError is an unexpected failure that ended a refresh. Per-item
// failures and cancellation never produce one.
type RefreshError struct {
	RunID uint64
	Phase string
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %d failed in %s: %v", e.RunID, e.Phase, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
