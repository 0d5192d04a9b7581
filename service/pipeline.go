package service

import (
	"context"
	"fmt"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
)

// Pipeline runs one document through extraction, audit and embedding,
// advancing the document's status as each stage lands. The document reaches
// ready only after its vectors are written to the index, so a searcher never
// sees a report whose chunks are not retrievable yet.
//
// Process is idempotent: chunks are replaced wholesale and the index is
// purged before re-upserting, so reprocessing a document converges on one
// consistent copy instead of accumulating duplicates.
type Pipeline struct {
	store     DocumentStore
	index     VectorIndex
	blobs     BlobStore
	extractor PageExtractor
	chunker   *Chunker
	auditor   *Auditor
	embedder  Embedder
}

func NewPipeline(store DocumentStore, index VectorIndex, blobs BlobStore, extractor PageExtractor, chunker *Chunker, auditor *Auditor, embedder Embedder) *Pipeline {
	return &Pipeline{
		store:     store,
		index:     index,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		auditor:   auditor,
		embedder:  embedder,
	}
}

func (p *Pipeline) Process(ctx context.Context, documentID string) error {
	ctx = logger.WithDocument(ctx, documentID)

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	logger.Info(ctx, "processing document",
		"company", doc.Company,
		"year", doc.Year,
		"filename", doc.Filename,
	)

	if err := p.store.UpdateStatus(ctx, doc.ID, model.StatusExtracting, ""); err != nil {
		return err
	}

	data, err := p.blobs.Fetch(ctx, doc.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to fetch source PDF: %w", err)
	}

	pages, err := p.extractor.ExtractPages(data)
	if err != nil {
		return err
	}

	chunks := p.chunker.Split(doc.ID, pages)
	if len(chunks) == 0 {
		return StructuralErr("extraction", fmt.Errorf("no usable text in %d pages", len(pages)))
	}

	logger.Info(ctx, "extracted document", "pages", len(pages), "chunks", len(chunks))

	if err := p.store.UpdateStatus(ctx, doc.ID, model.StatusAuditing, ""); err != nil {
		return err
	}

	audit, err := p.auditor.Audit(ctx, doc, pages)
	if err != nil {
		return err
	}

	if err := p.store.UpdateStatus(ctx, doc.ID, model.StatusEmbedding, ""); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return StructuralErr("embedding", fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors)))
	}

	if err := p.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return err
	}
	if err := p.store.SaveAuditResult(ctx, audit); err != nil {
		return err
	}

	records := make([]VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = VectorRecord{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Vector:     vectors[i],
			Model:      p.embedder.ModelName(),
			Company:    doc.Company,
			Year:       doc.Year,
			Page:       c.Page,
		}
	}

	// Purge vectors from any previous run before upserting; chunk IDs are
	// fresh each run, so stale entries would otherwise linger.
	if err := p.index.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		return err
	}

	if err := p.store.UpdateStatus(ctx, doc.ID, model.StatusReady, ""); err != nil {
		return err
	}

	logger.Info(ctx, "document ready", "chunks", len(chunks))
	return nil
}
