package model

import (
	"testing"
	"time"
)

func TestDocumentStruct(t *testing.T) {
	doc := &Document{
		ID:        "test-id",
		Filename:  "Acme_2024.pdf",
		Company:   "Acme",
		Year:      2024,
		ObjectKey: "documents/test-id.pdf",
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if doc.ID != "test-id" {
		t.Errorf("Expected ID 'test-id', got '%s'", doc.ID)
	}
	if doc.Status != StatusQueued {
		t.Errorf("Expected status '%s', got '%s'", StatusQueued, doc.Status)
	}
}

func TestDocumentStatusConstants(t *testing.T) {
	statuses := []string{StatusQueued, StatusExtracting, StatusAuditing, StatusEmbedding, StatusReady, StatusFailed}
	expected := []string{"queued", "extracting", "auditing", "embedding", "ready", "failed"}

	for i, status := range statuses {
		if status != expected[i] {
			t.Errorf("Expected '%s', got '%s'", expected[i], status)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{StatusQueued, false},
		{StatusExtracting, false},
		{StatusAuditing, false},
		{StatusEmbedding, false},
		{StatusReady, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := IsTerminalStatus(tt.status); got != tt.terminal {
			t.Errorf("IsTerminalStatus(%s) = %v, expected %v", tt.status, got, tt.terminal)
		}
	}
}

func TestParseReportFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		company  string
		year     int
	}{
		{"simple", "Acme_2024.pdf", "Acme", 2024},
		{"multi word company", "SGX_Group_2025.pdf", "SGX Group", 2025},
		{"three part name", "CapitaLand_China_Trust_2024.pdf", "CapitaLand China Trust", 2024},
		{"uppercase extension", "Acme_2023.PDF", "Acme", 2023},
		{"no year", "report.pdf", "report", 0},
		{"underscores without year", "annual_report.pdf", "annual report", 0},
		{"year out of range", "Acme_9999.pdf", "Acme 9999", 0},
		{"year too short", "Acme_24.pdf", "Acme 24", 0},
		{"trailing non-numeric", "Acme_final.pdf", "Acme final", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			company, year := ParseReportFilename(tt.filename)
			if company != tt.company {
				t.Errorf("Expected company '%s', got '%s'", tt.company, company)
			}
			if year != tt.year {
				t.Errorf("Expected year %d, got %d", tt.year, year)
			}
		})
	}
}

func TestAuditResultNullableFields(t *testing.T) {
	rating := 4
	scope1 := 1250.5

	result := &AuditResult{
		DocumentID:  "doc-1",
		LeafRating:  &rating,
		AISummary:   "Credible targets with published progress.",
		Scope1Total: &scope1,
		Scope2Total: nil,
		Claims: []Claim{
			{Claim: "net zero", Page: 12, TargetYear: 2040, Context: "committed to net zero by 2040"},
		},
	}

	if *result.LeafRating != 4 {
		t.Errorf("Expected leaf rating 4, got %d", *result.LeafRating)
	}
	if result.Scope2Total != nil {
		t.Error("Expected nil scope2_total for absent metric")
	}
	if len(result.Claims) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(result.Claims))
	}
	if result.Claims[0].TargetYear != 2040 {
		t.Errorf("Expected target year 2040, got %d", result.Claims[0].TargetYear)
	}
}
