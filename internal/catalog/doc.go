// Package catalog builds the per-file metadata catalog for an ingest tree.
//
// Normalization walks a directory and produces a typed tree: every Directory
// carries the key/value pairs pooled from tag files sitting directly inside
// it, and every File carries its path, sniffed media type and, for images, an
// identifier obtained from an identity.Assigner. Flattening resolves that tree
// into one Record per file, where pairs set closer to the file shadow those
// set further up, and the file's own fields shadow everything inherited.
//
// Both passes are deterministic: children are ordered by name and records
// are emitted in pre-order, whatever the degree of parallelism used while
// walking. Per-file problems (an unreadable tag file, a failed identifier
// mint) are logged and degrade the affected record only; listing or reading
// failures abort the walk.
package catalog
