// Package main hosts the imagearchive CLI entrypoint and command graph.
//
// The Cobra-based command tree builds catalog snapshots from an ingest tree,
// inspects them, loads them into the archive database, and assigns image
// identifiers one file at a time. It centralizes configuration resolution,
// logger construction, and identity-backend wiring so subcommands stay thin;
// the catalog, snapshot, and archivedb packages do the actual work.
package main
