package domain

import "errors"

// Domain errors represent vault failures.
// Adapters wrap these with context; callers match them with errors.Is.
var (
	// ErrNotFound indicates a referenced blob or document is absent.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates stored bytes do not match their content hash.
	ErrCorrupt = errors.New("corrupt")

	// ErrTlogCorrupt indicates a malformed transaction log record or a
	// sequence gap. Recovery halts rather than serve inconsistent state.
	ErrTlogCorrupt = errors.New("transaction log corrupt")

	// ErrExtractionFailed indicates the text extractor could not read a document.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed indicates the embedding provider rejected a batch.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrWriteFailed indicates an export destination could not be written.
	ErrWriteFailed = errors.New("write failed")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotPDF indicates the input is neither PDF by magic nor by extension.
	ErrNotPDF = errors.New("not a PDF")

	// ErrClosed indicates the component has been closed.
	ErrClosed = errors.New("closed")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Question answering falls back to extractive summaries without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrExtractorUnavailable indicates no text extraction backend is usable.
	ErrExtractorUnavailable = errors.New("text extractor unavailable")
)
