//go:build !linux && !openbsd && !darwin && !freebsd && !netbsd && !windows

package copier

import (
	"os"
	"time"
)

func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
