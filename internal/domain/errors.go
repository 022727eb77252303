package domain

import "fmt"

var (
	ErrNotFound           = errString("not found")
	ErrInvalidInput       = errString("invalid input")
	ErrServiceUnavailable = errString("extraction service unavailable")
	ErrScanFailed         = errString("scan failed")
	ErrFileUnreadable     = errString("file unreadable")
	ErrScanInProgress     = errString("scan in progress")
	ErrArchiveCommit      = errString("archive commit failed")
	ErrBranchLocked       = errString("branch already selected")
	ErrKeyTaken           = errString("archive key taken")
)

type errString string

func (e errString) Error() string { return string(e) }

// wrap annotates cause with a sentinel so errors.Is matches both.
func wrap(sentinel error, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Wrap is wrap for other packages.
func Wrap(sentinel error, cause error) error { return wrap(sentinel, cause) }
