package filesystem

import (
	"io/fs"
	"syscall"
	"time"
)

// fileTimes returns the creation and access times of info. Linux does not expose the birth
// time through stat, so the inode change time stands in for creation.
func fileTimes(info fs.FileInfo) (created, accessed time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(st.Ctim.Unix()), time.Unix(st.Atim.Unix())
}
