// Package archivedb loads flattened catalogs into the relational archive
// schema: archives and platforms (unique on name and country code),
// documents, and images keyed by their assigned identifier.
//
// Only image records are loaded. Dotted record keys select the target table
// ("archive.name", "document.start_date", ...); intrinsic fields fill the
// image row. Loading the same catalog twice leaves the database unchanged.
package archivedb
