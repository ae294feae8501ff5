// Package identity assigns durable, unique identifiers to image files.
//
// Assigner is the single operation the catalog depends on: given a path it
// returns the identifier already associated with the file, or mints and
// records a new one. Two backends are provided. ExifTool stores the value in
// the file's own ImageUniqueID tag through the exiftool binary; Ledger keeps a
// path-keyed association in a local badger database for files that cannot
// carry EXIF. Identifiers come from a Generator value rather than process
// state, so tests can inject a deterministic source.
package identity
