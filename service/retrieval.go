package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
)

// RetrievalService answers questions over the indexed corpus. It embeds the
// question, pulls the nearest chunks, and asks the model to answer from
// those chunks only. Confidence is computed from retrieval quality, never
// from the model's own judgement, so identical retrievals always report
// identical confidence.
type RetrievalService struct {
	store    DocumentStore
	index    VectorIndex
	embedder Embedder
	gen      TextGenerator
	config   *config.SearchConfig
}

func NewRetrievalService(store DocumentStore, index VectorIndex, embedder Embedder, gen TextGenerator, cfg *config.SearchConfig) *RetrievalService {
	return &RetrievalService{
		store:    store,
		index:    index,
		embedder: embedder,
		gen:      gen,
		config:   cfg,
	}
}

// Search runs the full question-answering flow. The caller resolves
// defaults; Search rejects out-of-range parameters.
func (s *RetrievalService) Search(ctx context.Context, query *model.SearchQuery) (*model.SearchResult, error) {
	question := strings.TrimSpace(query.Query)
	if question == "" {
		return nil, ValidationErr("query must not be empty")
	}
	if query.MatchThreshold < 0 || query.MatchThreshold > 1 {
		return nil, ValidationErr("match_threshold must be between 0 and 1")
	}
	if query.MatchCount < 1 || query.MatchCount > s.config.MaxMatchCount {
		return nil, ValidationErr(fmt.Sprintf("match_count must be between 1 and %d", s.config.MaxMatchCount))
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, vector, query.MatchCount, query.MatchThreshold, query.Company)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return s.noEvidenceResult(question, query.Company), nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	chunks, err := s.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return s.noEvidenceResult(question, query.Company), nil
	}

	citations, sources, err := s.buildSources(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(citations) == 0 {
		return s.noEvidenceResult(question, query.Company), nil
	}

	answer, err := s.gen.Generate(ctx, buildAnswerPrompt(question, sources))
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	result := &model.SearchResult{
		Question:   question,
		Answer:     answer,
		Citations:  citations,
		Confidence: s.confidenceFor(len(citations), matches[0].Similarity),
		NumSources: len(citations),
	}

	logger.Info(ctx, "search answered",
		"num_sources", result.NumSources,
		"confidence", result.Confidence,
		"top_similarity", matches[0].Similarity,
	)
	return result, nil
}

func (s *RetrievalService) noEvidenceResult(question, company string) *model.SearchResult {
	answer := "No indexed evidence matches this question."
	if company != "" {
		answer = fmt.Sprintf("No indexed evidence from %s matches this question.", company)
	}
	return &model.SearchResult{
		Question:   question,
		Answer:     answer,
		Citations:  []model.Citation{},
		Confidence: model.ConfidenceLow,
		NumSources: 0,
	}
}

// buildSources turns chunks into citations and prompt source blocks,
// resolving document metadata once per document.
func (s *RetrievalService) buildSources(ctx context.Context, chunks []model.Chunk) ([]model.Citation, []string, error) {
	docs := make(map[string]*model.Document)

	citations := make([]model.Citation, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		doc, ok := docs[chunk.DocumentID]
		if !ok {
			var err error
			doc, err = s.store.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return nil, nil, err
			}
			docs[chunk.DocumentID] = doc
		}

		citations = append(citations, model.Citation{
			Company: doc.Company,
			Year:    doc.Year,
			Page:    chunk.Page,
			Quote:   truncate(chunk.Content, s.config.MaxQuoteChars),
		})
		sources = append(sources, sourceBlock(doc, chunk))
	}
	return citations, sources, nil
}

func sourceBlock(doc *model.Document, chunk model.Chunk) string {
	if doc.Year > 0 {
		return fmt.Sprintf("[Source: %s %d Report, Page %d]\n%s", doc.Company, doc.Year, chunk.Page, chunk.Content)
	}
	return fmt.Sprintf("[Source: %s Report, Page %d]\n%s", doc.Company, chunk.Page, chunk.Content)
}

func buildAnswerPrompt(question string, sources []string) string {
	var b strings.Builder
	b.WriteString("You are answering questions about corporate sustainability reports. ")
	b.WriteString("Use ONLY the sources below. If the sources do not contain the answer, say so plainly. ")
	b.WriteString("Cite company and page inline, like (Acme 2024, p. 12).\n\n")
	for _, src := range sources {
		b.WriteString(src)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// confidenceFor grades retrieval quality. Low means nothing was retrieved,
// high needs both enough sources and a strong best match, everything else
// is medium.
func (s *RetrievalService) confidenceFor(numSources int, topSimilarity float64) string {
	if numSources == 0 {
		return model.ConfidenceLow
	}
	if numSources >= s.config.HighMinSources && topSimilarity >= s.config.HighSimilarity {
		return model.ConfidenceHigh
	}
	return model.ConfidenceMedium
}
