package archivedb

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// fileCreated returns the inode change time, the closest Linux offers to a
// creation time without statx.
func fileCreated(path string, info os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return info.ModTime()
	}
	return time.Unix(st.Ctim.Unix())
}
