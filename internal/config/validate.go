package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.IngestDir) == "" {
		return errors.New("paths.ingest_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Parallelism < 1 || c.Catalog.Parallelism > maxCatalogParallelism {
		return fmt.Errorf("catalog.parallelism must be between 1 and %d", maxCatalogParallelism)
	}
	if strings.ContainsAny(c.Catalog.IgnoreFile, `/\`) {
		return errors.New("catalog.ignore_file must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	switch c.Identity.Backend {
	case BackendExifTool:
		if c.Identity.ExifToolBinary == "" {
			return errors.New("identity.exiftool_binary must be set when identity.backend is exiftool")
		}
	case BackendLedger:
		if c.Identity.LedgerDir == "" {
			return errors.New("identity.ledger_dir must be set when identity.backend is ledger")
		}
	default:
		return fmt.Errorf("identity.backend: unsupported value %q (want %q or %q)", c.Identity.Backend, BackendExifTool, BackendLedger)
	}
	if c.Identity.TimeoutSeconds < 0 {
		return errors.New("identity.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
