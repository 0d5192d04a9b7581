package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// VectorRecord is one embedded chunk plus the metadata needed to filter
// and cite matches without a second lookup.
type VectorRecord struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
	Model      string
	Company    string
	Year       int
	Page       int
}

// VectorMatch is one query hit. Similarity is cosine similarity.
type VectorMatch struct {
	ChunkID    string
	Similarity float64
}

// VectorIndex answers nearest-neighbour queries over embedded chunks.
type VectorIndex interface {
	// Upsert inserts or replaces records keyed by chunk ID.
	Upsert(ctx context.Context, records []VectorRecord) error

	// Query returns up to k matches with similarity >= minSimilarity,
	// best first. A non-empty company restricts matches to that company,
	// compared case-insensitively.
	Query(ctx context.Context, vector []float32, k int, minSimilarity float64, company string) ([]VectorMatch, error)

	// DeleteDocument removes every record belonging to the document.
	DeleteDocument(ctx context.Context, documentID string) error
}

// MemoryVectorIndex is the single-process VectorIndex. It scans every
// record per query, which is fine at the corpus sizes the in-memory
// deployment is meant for.
type MemoryVectorIndex struct {
	mu      sync.RWMutex
	records map[string]VectorRecord
}

func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{records: make(map[string]VectorRecord)}
}

func (idx *MemoryVectorIndex) Upsert(ctx context.Context, records []VectorRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		idx.records[r.ChunkID] = r
	}
	return nil
}

func (idx *MemoryVectorIndex) Query(ctx context.Context, vector []float32, k int, minSimilarity float64, company string) ([]VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []VectorMatch
	for _, r := range idx.records {
		if company != "" && !strings.EqualFold(r.Company, company) {
			continue
		}
		sim := cosineSimilarity(vector, r.Vector)
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, VectorMatch{ChunkID: r.ChunkID, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (idx *MemoryVectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, r := range idx.records {
		if r.DocumentID == documentID {
			delete(idx.records, id)
		}
	}
	return nil
}

// Count returns the number of indexed records.
func (idx *MemoryVectorIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
