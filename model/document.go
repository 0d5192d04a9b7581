package model

import (
	"strconv"
	"strings"
	"time"
)

// Document represents an uploaded sustainability report and its processing state
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Company     string    `json:"company"`
	Year        int       `json:"year"`
	ObjectKey   string    `json:"object_key"`
	Status      string    `json:"status"` // queued, extracting, auditing, embedding, ready, failed
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document status constants
const (
	StatusQueued     = "queued"
	StatusExtracting = "extracting"
	StatusAuditing   = "auditing"
	StatusEmbedding  = "embedding"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// IsTerminalStatus reports whether a status ends the pipeline for a document
func IsTerminalStatus(status string) bool {
	return status == StatusReady || status == StatusFailed
}

// ParseReportFilename derives company and year from a filename following the
// "Company_Name_YYYY.pdf" convention. Underscores in the company part fold to
// spaces. Year is 0 when the trailing token is not a plausible 4-digit year.
func ParseReportFilename(filename string) (string, int) {
	name := strings.TrimSuffix(filename, ".pdf")
	name = strings.TrimSuffix(name, ".PDF")

	parts := strings.Split(name, "_")
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) == 4 {
			if year, err := strconv.Atoi(last); err == nil && year >= 1900 && year <= 2100 {
				company := strings.Join(parts[:len(parts)-1], " ")
				return strings.TrimSpace(company), year
			}
		}
	}

	return strings.TrimSpace(strings.ReplaceAll(name, "_", " ")), 0
}
