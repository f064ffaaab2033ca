package rag

import "errors"

var (
	// ErrEmptyCorpus reports that ingestion found no documents to index.
	ErrEmptyCorpus = errors.New("corpus contains no documents")
	// ErrInvalidQuery reports a malformed retrieval request.
	ErrInvalidQuery = errors.New("invalid index query")
	// ErrIndexCorrupt reports that a persisted index could not be read back.
	// Callers recover by re-ingesting the corpus.
	ErrIndexCorrupt = errors.New("persisted index is unreadable")
)
