package model

// Claim is a sustainability commitment found in a report, with provenance
type Claim struct {
	Claim      string `json:"claim"`
	Page       int    `json:"page"`
	TargetYear int    `json:"target_year,omitempty"`
	Context    string `json:"context,omitempty"`
}

// AuditResult holds the AI audit of one document. LeafRating is nil when the
// report carries insufficient evidence to score; Scope totals are nil when
// the report does not state them, which is distinct from zero.
type AuditResult struct {
	DocumentID  string   `json:"document_id"`
	LeafRating  *int     `json:"leaf_rating"`
	AISummary   string   `json:"ai_summary"`
	Scope1Total *float64 `json:"scope1_total"`
	Scope2Total *float64 `json:"scope2_total"`
	Claims      []Claim  `json:"claims"`
}

// CompanySummary is the listing/history view of one audited report year
type CompanySummary struct {
	DocumentID  string   `json:"document_id"`
	Company     string   `json:"company"`
	Year        int      `json:"year"`
	LeafRating  *int     `json:"leaf_rating"`
	Scope1Total *float64 `json:"scope1_total"`
	Scope2Total *float64 `json:"scope2_total"`
}

// Stats aggregates the indexed corpus for the dashboard
type Stats struct {
	TotalReports       int     `json:"total_reports"`
	TotalChunks        int     `json:"total_chunks"`
	UniqueCompanies    int     `json:"unique_companies"`
	AvgChunksPerReport float64 `json:"avg_chunks_per_report"`
}
