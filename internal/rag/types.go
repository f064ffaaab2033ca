package rag

// DocumentChunk is a bounded contiguous slice of one source document. Offsets
// are character (rune) positions into the original text; the text never
// exceeds the configured chunk size.
type DocumentChunk struct {
	ID          string `json:"chunk_id"`
	Source      string `json:"source"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// IndexEntry is a single persisted index record: one chunk together with its
// embedding vector. Chunks are not re-derivable from vectors, so both travel
// together.
type IndexEntry struct {
	ChunkID     string    `json:"chunk_id"`
	Source      string    `json:"source"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float64 `json:"embedding"`
}

// RetrievedChunk is a chunk plus similarity score.
type RetrievedChunk struct {
	Entry IndexEntry
	Score float64
}

// Document is one raw corpus document handed to the chunker.
type Document struct {
	Source string
	Text   string
}
