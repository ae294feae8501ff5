//go:build !linux && !darwin

package archivedb

import (
	"os"
	"time"
)

func fileCreated(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
