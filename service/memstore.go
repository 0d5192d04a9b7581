package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
)

// MemoryStore is the single-process DocumentStore used when no database is
// configured. Once maxDocuments is exceeded, the oldest finished documents
// are evicted along with their chunks and audit results; documents still
// being processed are never evicted.
type MemoryStore struct {
	mu           sync.RWMutex
	documents    map[string]*model.Document
	chunksByDoc  map[string][]model.Chunk
	chunkByID    map[string]model.Chunk
	audits       map[string]*model.AuditResult
	maxDocuments int
	onEvict      func(documentID string)
}

func NewMemoryStore(maxDocuments int) *MemoryStore {
	if maxDocuments < 0 {
		maxDocuments = 0
	}
	return &MemoryStore{
		documents:    make(map[string]*model.Document),
		chunksByDoc:  make(map[string][]model.Chunk),
		chunkByID:    make(map[string]model.Chunk),
		audits:       make(map[string]*model.AuditResult),
		maxDocuments: maxDocuments,
	}
}

// OnEvict registers a hook called after a document is evicted, outside the
// store lock. Used to drop the document's vectors from the index.
func (s *MemoryStore) OnEvict(fn func(documentID string)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

func (s *MemoryStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()

	d := *doc
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	s.documents[d.ID] = &d

	evicted := s.cleanupIfNeeded()
	fn := s.onEvict
	s.mu.Unlock()

	if fn != nil {
		for _, id := range evicted {
			fn(id)
		}
	}
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, NotFoundErr("document not found")
	}
	d := *doc
	return &d, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id, status, errorDetail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return NotFoundErr("document not found")
	}
	doc.Status = status
	doc.ErrorDetail = errorDetail
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return NotFoundErr("document not found")
	}

	for _, old := range s.chunksByDoc[documentID] {
		delete(s.chunkByID, old.ID)
	}
	s.chunksByDoc[documentID] = append([]model.Chunk(nil), chunks...)
	for _, c := range chunks {
		s.chunkByID[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) GetChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunkByID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) SaveAuditResult(ctx context.Context, result *model.AuditResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[result.DocumentID]; !ok {
		return NotFoundErr("document not found")
	}
	r := *result
	s.audits[r.DocumentID] = &r
	return nil
}

func (s *MemoryStore) GetAuditResult(ctx context.Context, documentID string) (*model.AuditResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audit, ok := s.audits[documentID]
	if !ok {
		return nil, NotFoundErr("audit result not found")
	}
	r := *audit
	return &r, nil
}

func (s *MemoryStore) LatestReady(ctx context.Context, company string, year int) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.Document
	for _, doc := range s.documents {
		if doc.Status != model.StatusReady || !strings.EqualFold(doc.Company, company) {
			continue
		}
		if year > 0 && doc.Year != year {
			continue
		}
		if best == nil || doc.Year > best.Year ||
			(doc.Year == best.Year && doc.UpdatedAt.After(best.UpdatedAt)) {
			best = doc
		}
	}
	if best == nil {
		return nil, NotFoundErr("no ready report for company")
	}
	d := *best
	return &d, nil
}

func (s *MemoryStore) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*model.Document)
	for _, doc := range s.documents {
		if doc.Status != model.StatusReady {
			continue
		}
		key := strings.ToLower(doc.Company)
		cur, ok := latest[key]
		if !ok || doc.Year > cur.Year ||
			(doc.Year == cur.Year && doc.UpdatedAt.After(cur.UpdatedAt)) {
			latest[key] = doc
		}
	}

	summaries := make([]model.CompanySummary, 0, len(latest))
	for _, doc := range latest {
		summaries = append(summaries, s.summaryFor(doc))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Company) < strings.ToLower(summaries[j].Company)
	})
	return summaries, nil
}

func (s *MemoryStore) CompanyHistory(ctx context.Context, company string) ([]model.CompanySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byYear := make(map[int]*model.Document)
	for _, doc := range s.documents {
		if doc.Status != model.StatusReady || !strings.EqualFold(doc.Company, company) {
			continue
		}
		cur, ok := byYear[doc.Year]
		if !ok || doc.UpdatedAt.After(cur.UpdatedAt) {
			byYear[doc.Year] = doc
		}
	}

	summaries := make([]model.CompanySummary, 0, len(byYear))
	for _, doc := range byYear {
		summaries = append(summaries, s.summaryFor(doc))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Year < summaries[j].Year
	})
	return summaries, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.Stats{}
	companies := make(map[string]bool)
	for _, doc := range s.documents {
		if doc.Status != model.StatusReady {
			continue
		}
		stats.TotalReports++
		stats.TotalChunks += len(s.chunksByDoc[doc.ID])
		companies[strings.ToLower(doc.Company)] = true
	}
	stats.UniqueCompanies = len(companies)
	if stats.TotalReports > 0 {
		stats.AvgChunksPerReport = float64(stats.TotalChunks) / float64(stats.TotalReports)
	}
	return stats, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, doc := range s.documents {
		counts[doc.Status]++
	}
	return counts, nil
}

// summaryFor builds the listing view of a document. Must be called with
// the lock held.
func (s *MemoryStore) summaryFor(doc *model.Document) model.CompanySummary {
	summary := model.CompanySummary{
		DocumentID: doc.ID,
		Company:    doc.Company,
		Year:       doc.Year,
	}
	if audit, ok := s.audits[doc.ID]; ok {
		summary.LeafRating = audit.LeafRating
		summary.Scope1Total = audit.Scope1Total
		summary.Scope2Total = audit.Scope2Total
	}
	return summary
}

// cleanupIfNeeded evicts the oldest finished documents once the store
// exceeds maxDocuments, cascading to chunks and audit results. Must be
// called with the lock held; returns the evicted document IDs.
func (s *MemoryStore) cleanupIfNeeded() []string {
	if s.maxDocuments <= 0 {
		return nil
	}
	if len(s.documents) <= s.maxDocuments {
		return nil
	}

	finished := make([]*model.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if model.IsTerminalStatus(doc.Status) {
			finished = append(finished, doc)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	removeCount := len(s.documents) - s.maxDocuments
	if removeCount > len(finished) {
		removeCount = len(finished)
	}

	evicted := make([]string, 0, removeCount)
	for i := 0; i < removeCount; i++ {
		doc := finished[i]
		slog.Info("auto-cleaning old document",
			"document_id", doc.ID,
			"company", doc.Company,
			"created_at", doc.CreatedAt,
		)
		for _, c := range s.chunksByDoc[doc.ID] {
			delete(s.chunkByID, c.ID)
		}
		delete(s.chunksByDoc, doc.ID)
		delete(s.audits, doc.ID)
		delete(s.documents, doc.ID)
		evicted = append(evicted, doc.ID)
	}
	return evicted
}
