package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	if err := c.normalizeIdentity(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.IngestDir, err = expandPath(c.Paths.IngestDir); err != nil {
		return fmt.Errorf("paths.ingest_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	if c.Catalog.Parallelism <= 0 {
		c.Catalog.Parallelism = 1
	}
	c.Catalog.IgnoreFile = strings.TrimSpace(c.Catalog.IgnoreFile)

	exts := make([]string, 0, len(c.Catalog.TagExtensions))
	seen := make(map[string]struct{}, len(c.Catalog.TagExtensions))
	for _, ext := range c.Catalog.TagExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultTagExtensions...)
	}
	c.Catalog.TagExtensions = exts
}

func (c *Config) normalizeIdentity() error {
	c.Identity.Backend = strings.ToLower(strings.TrimSpace(c.Identity.Backend))
	if c.Identity.Backend == "" {
		c.Identity.Backend = BackendExifTool
	}
	if value, ok := os.LookupEnv(exifToolBinaryEnv); ok && strings.TrimSpace(value) != "" {
		c.Identity.ExifToolBinary = strings.TrimSpace(value)
	}
	c.Identity.ExifToolBinary = strings.TrimSpace(c.Identity.ExifToolBinary)
	if c.Identity.ExifToolBinary == "" {
		c.Identity.ExifToolBinary = defaultExifToolBinary
	}
	if strings.TrimSpace(c.Identity.LedgerDir) == "" {
		c.Identity.LedgerDir = defaultLedgerDir
	}
	var err error
	if c.Identity.LedgerDir, err = expandPath(c.Identity.LedgerDir); err != nil {
		return fmt.Errorf("identity.ledger_dir: %w", err)
	}
	if c.Identity.TimeoutSeconds == 0 {
		c.Identity.TimeoutSeconds = defaultIdentityTimeout
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
		return nil
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
