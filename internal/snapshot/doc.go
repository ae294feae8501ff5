// Package snapshot persists flattened catalogs as timestamped JSON files.
//
// Each Write creates a new file named "<YYYY-MM-DD-HHMMSS>-catalog.json" in
// the output directory and never replaces an existing one; writes landing in
// the same second get a ".NNN" suffix so name order stays equal to write
// order. ReadLatest returns the lexically greatest snapshot.
package snapshot
