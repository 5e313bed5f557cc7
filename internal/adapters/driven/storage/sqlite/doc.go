// Package sqlite provides the persisted vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Index entries are stored as little-endian float32 blobs
// and mirrored in memory for brute-force cosine search; removals are
// tombstoned and purged by Compact.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory (NNN_name.up.sql).
//
// # Data Location
//
// The database lives at <root>/index/vectors.db. Losing it is recoverable:
// the index is rebuilt from the manifest by re-embedding.
package sqlite
