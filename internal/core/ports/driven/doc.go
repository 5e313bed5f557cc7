// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ContentStore: hash-addressed blob storage
//   - TransactionLog: durable ordered manifest mutations
//   - CheckpointStore: manifest snapshots
//   - TextExtractor: page text from PDF bytes
//   - VectorIndex: nearest-neighbour search over chunk embeddings
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil and the application degrades gracefully:
//
//   - EmbeddingService: without it documents stop at extracted
//   - LLMService: without it answers are extractive
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
