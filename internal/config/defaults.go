package config

const (
	defaultConfigPath         = "~/.config/imagearchive/config.toml"
	defaultIngestDir          = "~/.local/share/imagearchive/ingest"
	defaultDataDir            = "~/.local/share/imagearchive/data"
	defaultOutputDir          = "~/.local/share/imagearchive/catalogs"
	defaultLogDir             = "~/.local/share/imagearchive/logs"
	defaultLedgerDir          = "~/.local/share/imagearchive/ledger"
	defaultDatabaseName       = "imagearchive.db"
	defaultCatalogParallelism = 4
	defaultCatalogIgnoreFile  = ".catalogignore"
	defaultExifToolBinary     = "exiftool"
	defaultIdentityTimeout    = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	maxCatalogParallelism     = 256
	exifToolBinaryEnv         = "IMAGEARCHIVE_EXIFTOOL"
)

// Identifier backends accepted in identity.backend.
const (
	BackendExifTool = "exiftool"
	BackendLedger   = "ledger"
)

// DefaultTagExtensions lists the sidecar extensions recognized as tag files.
var DefaultTagExtensions = []string{".csv", ".tsv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IngestDir: defaultIngestDir,
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Catalog: Catalog{
			Parallelism:   defaultCatalogParallelism,
			IgnoreFile:    defaultCatalogIgnoreFile,
			TagExtensions: append([]string(nil), DefaultTagExtensions...),
		},
		Identity: Identity{
			Backend:        BackendExifTool,
			ExifToolBinary: defaultExifToolBinary,
			LedgerDir:      defaultLedgerDir,
			TimeoutSeconds: defaultIdentityTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
