package domain

// Metadata keys used to scope vector index entries.
const (
	MetaDocumentID   = "document_id"
	MetaConferenceID = "conference_id"
	MetaChunkIndex   = "chunk_index"
)

// Chunk is a bounded text span stored in the vector index.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchHit is a ranked vector index match.
type SearchHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
