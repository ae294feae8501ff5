package identity

import (
	"fmt"

	"imagearchive/internal/config"
)

// Backend is an Assigner that can also answer read-only lookups and must be
// closed when the run ends.
type Backend interface {
	Assigner
	Lookuper
	Close() error
}

// Open builds the backend selected by cfg.Identity.Backend.
func Open(cfg *config.Config, gen *Generator) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("identity: config is required")
	}
	switch cfg.Identity.Backend {
	case config.BackendExifTool, "":
		return exifToolBackend{NewExifTool(cfg.Identity.ExifToolBinary, gen, cfg.IdentityTimeout())}, nil
	case config.BackendLedger:
		return OpenLedger(cfg.Identity.LedgerDir, gen)
	default:
		return nil, fmt.Errorf("identity: unsupported backend %q", cfg.Identity.Backend)
	}
}

type exifToolBackend struct {
	*ExifTool
}

func (exifToolBackend) Close() error { return nil }
