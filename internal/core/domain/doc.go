// Package domain defines the core entities of the Arcastone vault.
//
// This package is the innermost layer of the hexagon. It has no external
// dependencies and defines the fundamental types:
//
//   - Document: one ingested PDF and its lifecycle status
//   - BlobRef: the content hash and size of stored bytes
//   - PageChunk: an embeddable unit of extracted page text
//   - TLogRecord: one durable mutation of the manifest
//   - Snapshot: a checkpoint of the manifest projection
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
