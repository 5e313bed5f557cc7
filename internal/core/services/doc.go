// Package services implements the driving port interfaces.
//
// The Manifest is the single writer of vault state: every change is a
// record appended to the transaction log before it is applied in memory.
// The other services orchestrate calls to driven ports (blob store,
// extractor, embedder, vector index) around it.
//
// Services are pure Go with no CGO.
package services
