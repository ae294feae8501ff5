package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"imagearchive/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.IngestDir = filepath.Join(base, "ingest")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.OutputDir = filepath.Join(base, "catalogs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Identity.Backend = config.BackendLedger
	cfgVal.Identity.LedgerDir = filepath.Join(base, "data", "ledger")
	cfgVal.Database.Path = filepath.Join(base, "data", "imagearchive.db")
	cfgVal.Catalog.Parallelism = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithParallelism sets catalog.parallelism on the test config.
func WithParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Parallelism = n
	}
}

// WithSkipTagFiles sets catalog.skip_tag_files on the test config.
func WithSkipTagFiles() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.SkipTagFiles = true
	}
}

// WithExifToolStub installs a fake exiftool that stores ImageUniqueID in a
// hidden sibling file, and selects the exiftool backend.
func WithExifToolStub() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "exiftool")
		if err := os.WriteFile(target, []byte(exifToolStub), 0o755); err != nil {
			b.t.Fatalf("write exiftool stub: %v", err)
		}
		b.cfg.Identity.Backend = config.BackendExifTool
		b.cfg.Identity.ExifToolBinary = target
	}
}

const exifToolStub = `#!/bin/sh
case "$1" in
-ver)
	echo 12.76
	exit 0
	;;
-s3)
	store="$(dirname "$4")/.uid-$(basename "$4")"
	[ -f "$store" ] && cat "$store"
	exit 0
	;;
-overwrite_original)
	store="$(dirname "$4")/.uid-$(basename "$4")"
	printf '%s\n' "${2#-ImageUniqueID=}" > "$store"
	exit 0
	;;
esac
exit 2
`

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.IngestDir)
}
