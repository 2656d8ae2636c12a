//go:build !linux && !darwin && !windows

package filesystem

import (
	"io/fs"
	"time"
)

func fileTimes(info fs.FileInfo) (created, accessed time.Time) {
	return info.ModTime(), info.ModTime()
}
