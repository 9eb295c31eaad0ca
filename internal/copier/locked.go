package copier

import (
	"errors"
	"io/fs"
	"strings"
)

// LockedFunc reports whether a copy failure was caused by another process
// holding the source or destination open. The retry engine takes one so that
// callers on other platforms, or tests, can substitute their own rule.
type LockedFunc func(err error) bool

// lockedMessages are the fragments Windows puts in a permission error when
// the file is held by another process.
var lockedMessages = []string{
	"winerror 32",
	"being used by another process",
	"process cannot access",
}

// IsLocked is the default LockedFunc.
//
// On Windows a sharing or lock violation errno is recognised directly. On
// every platform a permission error whose text carries one of the Windows
// "in use by another process" messages also counts. Nothing else is locked:
// a plain permission denied is an ordinary failure.
func IsLocked(err error) bool {
	if err == nil {
		return false
	}
	if isSharingViolation(err) {
		return true
	}
	if !errors.Is(err, fs.ErrPermission) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range lockedMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
