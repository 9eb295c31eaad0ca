//go:build !windows

package copier

// Non-Windows systems use advisory locking, so opening a file held by another
// process does not fail.
func isSharingViolation(err error) bool {
	return false
}
