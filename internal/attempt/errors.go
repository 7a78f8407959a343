package attempt

import (
	"errors"
	"fmt"
)

// ErrRejected matches every advisory rejection. Rejections are normal
// outcomes to show the student, not faults.
var ErrRejected = errors.New("attempt rejected")

type rejection struct{ reason string }

func (r *rejection) Error() string { return r.reason }
func (r *rejection) Is(target error) bool { return target == ErrRejected }

var (
	ErrNotEligible    error = &rejection{"not eligible"}
	ErrDeadlinePassed error = &rejection{"deadline passed"}
	ErrTimeExceeded   error = &rejection{"time exceeded"}
	ErrNoQuestions    error = &rejection{"no questions"}
)

// Reason returns the rejection reason carried by err, or "".
func Reason(err error) string {
	var r *rejection
	if errors.As(err, &r) {
		return r.reason
	}
	return ""
}

// Input and state errors.
var (
	ErrUnknownQuestion  = errors.New("question is not part of this attempt")
	ErrNotActive        = errors.New("attempt is not in progress")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	ErrClosed           = errors.New("attempt is closed")
)

// StorageError wraps a failure of the question source or result sink.
type StorageError struct {
	Op  string // "list questions" or "save result"
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageFault reports whether err came from a storage collaborator.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
