// Package memory provides in-memory implementations of the storage ports.
// They back unit tests and ephemeral vaults; nothing survives the process.
package memory
