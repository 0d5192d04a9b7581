package service

import (
	"context"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
)

// DocumentStore persists documents, their chunks and their audit results.
// Implementations must be safe for concurrent use by the API and the
// worker pool. Lookups by company are case-insensitive.
type DocumentStore interface {
	// SaveDocument inserts or replaces a document record.
	SaveDocument(ctx context.Context, doc *model.Document) error

	// GetDocument returns the document or a not_found error.
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// UpdateStatus moves the document to status and records the error
	// detail (empty to clear it).
	UpdateStatus(ctx context.Context, id, status, errorDetail string) error

	// ReplaceChunks swaps the document's chunk set in one step, so a
	// reprocessed document never mixes old and new chunks.
	ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error

	// GetChunksByIDs returns the chunks it finds, skipping unknown IDs.
	GetChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error)

	// SaveAuditResult inserts or replaces the document's audit result.
	SaveAuditResult(ctx context.Context, result *model.AuditResult) error

	// GetAuditResult returns the audit result or a not_found error.
	GetAuditResult(ctx context.Context, documentID string) (*model.AuditResult, error)

	// LatestReady returns the newest ready document for the company,
	// restricted to year when year > 0.
	LatestReady(ctx context.Context, company string, year int) (*model.Document, error)

	// ListCompanies returns the latest audited year per company,
	// sorted by company name.
	ListCompanies(ctx context.Context) ([]model.CompanySummary, error)

	// CompanyHistory returns all audited years for the company,
	// oldest first.
	CompanyHistory(ctx context.Context, company string) ([]model.CompanySummary, error)

	// Stats aggregates over ready documents.
	Stats(ctx context.Context) (*model.Stats, error)

	// CountByStatus returns document counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}
