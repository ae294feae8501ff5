package archivedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"imagearchive/internal/catalog"
	"imagearchive/internal/logging"
)

// Record keys read by the loader.
const (
	KeyArchiveName                   = "archive.name"
	KeyArchiveCountryCode            = "archive.country_code"
	KeyPlatformName                  = "platform.name"
	KeyPlatformCountryCode           = "platform.country_code"
	KeyDocumentStartDate             = "document.start_date"
	KeyDocumentEndDate               = "document.end_date"
	KeyDocumentLicense               = "document.license"
	KeyDocumentRelatedIdentifier     = "document.related_identifier"
	KeyDocumentRelatedIdentifierType = "document.related_identifier_type"
	KeyImageWID                      = "image.wid"
)

// DefaultLicense applies to documents whose records name no license.
const DefaultLicense = "CC-0 Public Domain"

// LoadSummary reports what a Load did.
type LoadSummary struct {
	Records int
	Images  int
	// SkippedNotImage counts records whose media type is not an image.
	SkippedNotImage int
	// SkippedNoUUID counts image records without an identifier.
	SkippedNoUUID int
	Inserted      int
	Updated       int
}

// Load writes the image records of a catalog in a single transaction.
func (s *Store) Load(ctx context.Context, records []catalog.Record) (LoadSummary, error) {
	var summary LoadSummary
	err := retryOnBusy(ctx, func() error {
		summary = LoadSummary{Records: len(records)}
		return s.load(ctx, records, &summary)
	})
	if err != nil {
		return LoadSummary{}, err
	}
	s.logger.Info("catalog loaded",
		logging.String(logging.FieldPath, s.path),
		logging.Int("records", summary.Records),
		logging.Int("inserted", summary.Inserted),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped_no_uuid", summary.SkippedNoUUID),
	)
	return summary, nil
}

func (s *Store) load(ctx context.Context, records []catalog.Record, summary *LoadSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, record := range records {
		if !catalog.IsImageType(record[catalog.FieldMediaType]) {
			summary.SkippedNotImage++
			continue
		}
		summary.Images++
		if strings.TrimSpace(record[catalog.FieldUUID]) == "" {
			summary.SkippedNoUUID++
			logging.WarnWithContext(ctx, s.logger, "image record skipped", "image_missing_uuid",
				logging.String(logging.FieldPath, record[catalog.FieldFilePath]),
				logging.String(logging.FieldErrorHint, "rebuild the catalog once the identity backend works"),
				logging.String(logging.FieldImpact, "image is not loaded"),
			)
			continue
		}
		inserted, err := s.loadRecord(ctx, tx, record)
		if err != nil {
			return fmt.Errorf("load %s: %w", record[catalog.FieldFilePath], err)
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

func (s *Store) loadRecord(ctx context.Context, tx *sql.Tx, record catalog.Record) (bool, error) {
	archiveID, err := upsertNamed(ctx, tx, "archive", record[KeyArchiveName], record[KeyArchiveCountryCode])
	if err != nil {
		return false, err
	}
	platformID, err := upsertNamed(ctx, tx, "platform", record[KeyPlatformName], record[KeyPlatformCountryCode])
	if err != nil {
		return false, err
	}
	documentID, err := s.upsertDocument(ctx, tx, record, archiveID, platformID)
	if err != nil {
		return false, err
	}
	return upsertImage(ctx, tx, record, s.imageWID(ctx, record), documentID)
}

// imageWID parses the optional integer image.wid; anything else is stored as NULL.
func (s *Store) imageWID(ctx context.Context, record catalog.Record) sql.NullInt64 {
	value := strings.TrimSpace(record[KeyImageWID])
	if value == "" {
		return sql.NullInt64{}
	}
	wid, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.WarnWithContext(ctx, s.logger, "image wid ignored", "invalid_image_wid",
			logging.String(logging.FieldPath, record[catalog.FieldFilePath]),
			logging.String("value", value),
			logging.String(logging.FieldErrorHint, "image.wid must be an integer"),
			logging.String(logging.FieldImpact, "wid is stored as NULL"),
		)
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: wid, Valid: true}
}

// upsertNamed resolves a row of archive or platform, which share a shape.
// Records naming neither field yield a NULL reference.
func upsertNamed(ctx context.Context, tx *sql.Tx, table, name, countryCode string) (sql.NullInt64, error) {
	name, countryCode = strings.TrimSpace(name), strings.TrimSpace(countryCode)
	if name == "" && countryCode == "" {
		return sql.NullInt64{}, nil
	}
	insert := fmt.Sprintf("INSERT INTO %s (name, country_code) VALUES (?, ?) ON CONFLICT(name, country_code) DO NOTHING", table)
	if _, err := tx.ExecContext(ctx, insert, name, countryCode); err != nil {
		return sql.NullInt64{}, fmt.Errorf("insert %s: %w", table, err)
	}
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE name = ? AND country_code = ?", table)
	if err := tx.QueryRowContext(ctx, query, name, countryCode).Scan(&id); err != nil {
		return sql.NullInt64{}, fmt.Errorf("select %s: %w", table, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (s *Store) upsertDocument(ctx context.Context, tx *sql.Tx, record catalog.Record, archiveID, platformID sql.NullInt64) (sql.NullInt64, error) {
	start := s.documentDate(ctx, record, KeyDocumentStartDate)
	end := s.documentDate(ctx, record, KeyDocumentEndDate)
	license := strings.TrimSpace(record[KeyDocumentLicense])
	if license == "" {
		license = DefaultLicense
	}
	relatedID := strings.TrimSpace(record[KeyDocumentRelatedIdentifier])
	relatedType := strings.TrimSpace(record[KeyDocumentRelatedIdentifierType])

	if !start.Valid && !end.Valid && relatedID == "" && relatedType == "" &&
		strings.TrimSpace(record[KeyDocumentLicense]) == "" && !archiveID.Valid && !platformID.Valid {
		return sql.NullInt64{}, nil
	}

	// IS compares NULLs as equal, which = does not.
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM document
		WHERE start_date IS ? AND end_date IS ? AND license = ?
		AND related_identifier = ? AND related_identifier_type = ?
		AND archive_id IS ? AND platform_id IS ?`,
		start, end, license, relatedID, relatedType, archiveID, platformID,
	).Scan(&id)
	if err == nil {
		return sql.NullInt64{Int64: id, Valid: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, fmt.Errorf("select document: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO document
		(start_date, end_date, license, related_identifier, related_identifier_type, archive_id, platform_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		start, end, license, relatedID, relatedType, archiveID, platformID,
	)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("insert document: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("document id: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// documentDate upcasts the date under key. Unparseable values are logged and
// stored as NULL.
func (s *Store) documentDate(ctx context.Context, record catalog.Record, key string) sql.NullString {
	raw := strings.TrimSpace(record[key])
	if raw == "" {
		return sql.NullString{}
	}
	date, err := UpcastDate(raw)
	if err != nil {
		logging.WarnWithContext(ctx, s.logger, "document date ignored", "document_date_invalid",
			logging.String(logging.FieldPath, record[catalog.FieldFilePath]),
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "use YYYY, YYYY-MM or YYYY-MM-DD"),
			logging.String(logging.FieldImpact, "document date is left empty"),
		)
		return sql.NullString{}
	}
	return sql.NullString{String: date, Valid: true}
}

// UpcastDate widens "YYYY" and "YYYY-MM" to the first day of the period and
// validates "YYYY-MM-DD".
func UpcastDate(value string) (string, error) {
	for _, layout := range []string{"2006", "2006-01", "2006-01-02"} {
		if len(value) != len(layout) {
			continue
		}
		parsed, err := time.Parse(layout, value)
		if err != nil {
			break
		}
		return parsed.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

func upsertImage(ctx context.Context, tx *sql.Tx, record catalog.Record, wid, documentID sql.NullInt64) (bool, error) {
	id := strings.TrimSpace(record[catalog.FieldUUID])
	path := record[catalog.FieldFilePath]

	var (
		size     sql.NullInt64
		created  sql.NullString
		modified sql.NullString
	)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		size = sql.NullInt64{Int64: info.Size(), Valid: true}
		created = sql.NullString{String: fileCreated(path, info).UTC().Format(time.RFC3339), Valid: true}
		modified = sql.NullString{String: info.ModTime().UTC().Format(time.RFC3339), Valid: true}
	}

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM image WHERE id = ?", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("select image: %w", err)
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO image
		(id, wid, file_path, file_size, file_media_type, file_created_datetime, file_modified_datetime, file_original_name, document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			wid = excluded.wid,
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			file_media_type = excluded.file_media_type,
			file_created_datetime = excluded.file_created_datetime,
			file_modified_datetime = excluded.file_modified_datetime,
			file_original_name = excluded.file_original_name,
			document_id = excluded.document_id`,
		id, wid, path, size, record[catalog.FieldMediaType], created, modified, filepath.Base(path), documentID,
	)
	if err != nil {
		return false, fmt.Errorf("upsert image: %w", err)
	}
	return exists == 0, nil
}

// Counts reports the number of rows per table.
type Counts struct {
	Archives  int
	Platforms int
	Documents int
	Images    int
}

// Counts tallies the rows of each entity table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dest  *int
	}{
		{"archive", &c.Archives},
		{"platform", &c.Platforms},
		{"document", &c.Documents},
		{"image", &c.Images},
	}
	for _, target := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+target.table).Scan(target.dest); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", target.table, err)
		}
	}
	return c, nil
}

// Image is a loaded image row.
type Image struct {
	ID                   string
	WID                  sql.NullInt64
	FilePath             string
	FileSize             sql.NullInt64
	FileMediaType        string
	FileCreatedDatetime  sql.NullString
	FileModifiedDatetime sql.NullString
	FileOriginalName     string
	DocumentID           sql.NullInt64
}

// ImageByID fetches one image row.
func (s *Store) ImageByID(ctx context.Context, id string) (Image, error) {
	var img Image
	err := s.db.QueryRowContext(ctx, `SELECT id, wid, file_path, file_size, file_media_type,
		file_created_datetime, file_modified_datetime, file_original_name, document_id
		FROM image WHERE id = ?`, id,
	).Scan(&img.ID, &img.WID, &img.FilePath, &img.FileSize, &img.FileMediaType,
		&img.FileCreatedDatetime, &img.FileModifiedDatetime, &img.FileOriginalName, &img.DocumentID)
	if err != nil {
		return Image{}, fmt.Errorf("image %s: %w", id, err)
	}
	return img, nil
}
