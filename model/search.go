package model

// SearchQuery is a natural-language question against the indexed reports.
// MatchThreshold is the minimum cosine similarity for a chunk to count as
// evidence; MatchCount bounds how many chunks are retrieved.
type SearchQuery struct {
	Query          string  `json:"query"`
	Company        string  `json:"company,omitempty"`
	MatchThreshold float64 `json:"match_threshold"`
	MatchCount     int     `json:"match_count"`
}

// Citation grounds one piece of an answer in a specific report page
type Citation struct {
	Company string `json:"company"`
	Year    int    `json:"year"`
	Page    int    `json:"page"`
	Quote   string `json:"quote"`
}

// Confidence labels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SearchResult is the grounded answer to a SearchQuery. NumSources counts the
// distinct chunks used as evidence, which may be fewer than MatchCount.
type SearchResult struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence string     `json:"confidence"`
	NumSources int        `json:"num_sources"`
}
