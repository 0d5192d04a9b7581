package model

// Chunk is a bounded span of extracted report text, the unit of embedding and
// citation. Page is 1-based; Ordinal orders chunks within their document.
// CharStart/CharEnd locate the chunk in the cleaned text of its source page.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
}
