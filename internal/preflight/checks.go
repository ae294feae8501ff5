package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"imagearchive/internal/config"
	"imagearchive/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the configured identity
// backend needs. The ledger backend needs none, but exiftool is still probed
// as optional so switching backends is an informed choice.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirement := deps.Requirement{
		Name:        "ExifTool",
		Command:     cfg.Identity.ExifToolBinary,
		Description: "Required to embed ImageUniqueID identifiers",
		VersionArgs: []string{"-ver"},
	}
	if cfg.Identity.Backend != config.BackendExifTool {
		requirement.Optional = true
		requirement.Description = "Optional; only used by the exiftool identity backend"
	}
	return deps.CheckBinaries(ctx, []deps.Requirement{requirement})
}
