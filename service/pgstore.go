package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
)

// ConnectPool opens a pgx pool with retries, so the service survives the
// database coming up after it in docker compose.
func ConnectPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	var pool *pgxpool.Pool
	maxRetries := 10
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				slog.Info("connected to database")
				return pool, nil
			}
			pool.Close()
		}

		slog.Warn("database connection failed",
			"attempt", i+1,
			"max_attempts", maxRetries,
			"error", err,
		)
		if i < maxRetries-1 {
			if serr := sleepContext(ctx, retryDelay); serr != nil {
				return nil, serr
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}

// PGStore is the Postgres DocumentStore and VectorIndex. Chunks carry their
// embedding in a pgvector column, so "index a vector" is an update on the
// chunk row and the similarity query is a join away from document metadata.
type PGStore struct {
	pool *pgxpool.Pool
	dims int
}

func NewPGStore(pool *pgxpool.Pool, dims int) *PGStore {
	return &PGStore{pool: pool, dims: dims}
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			company TEXT NOT NULL,
			year INT NOT NULL DEFAULT 0,
			object_key TEXT NOT NULL,
			status TEXT NOT NULL,
			error_detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_company ON documents (LOWER(company), year)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			page INT NOT NULL,
			ordinal INT NOT NULL,
			content TEXT NOT NULL,
			char_start INT NOT NULL DEFAULT 0,
			char_end INT NOT NULL DEFAULT 0,
			embedding vector(%d),
			embedding_model TEXT NOT NULL DEFAULT ''
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id, ordinal)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE TABLE IF NOT EXISTS reports (
			document_id UUID PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			company TEXT NOT NULL,
			year INT NOT NULL DEFAULT 0,
			leaf_rating INT,
			ai_summary TEXT NOT NULL DEFAULT '',
			scope1_total DOUBLE PRECISION,
			scope2_total DOUBLE PRECISION,
			claims JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, filename, company, year, object_key, status, error_detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			company = EXCLUDED.company,
			year = EXCLUDED.year,
			object_key = EXCLUDED.object_key,
			status = EXCLUDED.status,
			error_detail = EXCLUDED.error_detail,
			updated_at = now()`,
		doc.ID, doc.Filename, doc.Company, doc.Year, doc.ObjectKey, doc.Status, doc.ErrorDetail, createdAt)
	if err != nil {
		return TransientErr("store", fmt.Errorf("failed to save document: %w", err))
	}
	return nil
}

func (s *PGStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, filename, company, year, object_key, status, error_detail, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.Company, &doc.Year, &doc.ObjectKey,
		&doc.Status, &doc.ErrorDetail, &doc.CreatedAt, &doc.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundErr("document not found")
	}
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to get document: %w", err))
	}
	return &doc, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id, status, errorDetail string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, error_detail = $3, updated_at = now()
		WHERE id = $1`, id, status, errorDetail)
	if err != nil {
		return TransientErr("store", fmt.Errorf("failed to update status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return NotFoundErr("document not found")
	}
	return nil
}

func (s *PGStore) ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TransientErr("store", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return TransientErr("store", fmt.Errorf("failed to check document: %w", err))
	}
	if !exists {
		return NotFoundErr("document not found")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return TransientErr("store", fmt.Errorf("failed to delete old chunks: %w", err))
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, page, ordinal, content, char_start, char_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.DocumentID, c.Page, c.Ordinal, c.Content, c.CharStart, c.CharEnd)
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return TransientErr("store", fmt.Errorf("failed to insert chunk: %w", err))
		}
	}
	if err := br.Close(); err != nil {
		return TransientErr("store", fmt.Errorf("failed to flush chunk batch: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return TransientErr("store", fmt.Errorf("failed to commit chunks: %w", err))
	}
	return nil
}

func (s *PGStore) GetChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, ordinal, content, char_start, char_end
		FROM chunks WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to query chunks: %w", err))
	}
	defer rows.Close()

	byID := make(map[string]model.Chunk, len(ids))
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Page, &c.Ordinal, &c.Content, &c.CharStart, &c.CharEnd); err != nil {
			return nil, TransientErr("store", fmt.Errorf("failed to scan chunk: %w", err))
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to read chunks: %w", err))
	}

	// Preserve the caller's order, skipping unknown IDs.
	chunks := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (s *PGStore) SaveAuditResult(ctx context.Context, result *model.AuditResult) error {
	doc, err := s.GetDocument(ctx, result.DocumentID)
	if err != nil {
		return err
	}

	claims := result.Claims
	if claims == nil {
		claims = []model.Claim{}
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (document_id, company, year, leaf_rating, ai_summary, scope1_total, scope2_total, claims, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (document_id) DO UPDATE SET
			company = EXCLUDED.company,
			year = EXCLUDED.year,
			leaf_rating = EXCLUDED.leaf_rating,
			ai_summary = EXCLUDED.ai_summary,
			scope1_total = EXCLUDED.scope1_total,
			scope2_total = EXCLUDED.scope2_total,
			claims = EXCLUDED.claims,
			updated_at = now()`,
		result.DocumentID, doc.Company, doc.Year, result.LeafRating,
		result.AISummary, result.Scope1Total, result.Scope2Total, claimsJSON)
	if err != nil {
		return TransientErr("store", fmt.Errorf("failed to save audit result: %w", err))
	}
	return nil
}

func (s *PGStore) GetAuditResult(ctx context.Context, documentID string) (*model.AuditResult, error) {
	result := model.AuditResult{DocumentID: documentID}
	var claimsJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT leaf_rating, ai_summary, scope1_total, scope2_total, claims
		FROM reports WHERE document_id = $1`, documentID,
	).Scan(&result.LeafRating, &result.AISummary, &result.Scope1Total, &result.Scope2Total, &claimsJSON)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundErr("audit result not found")
	}
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to get audit result: %w", err))
	}

	if err := json.Unmarshal(claimsJSON, &result.Claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
	}
	return &result, nil
}

func (s *PGStore) LatestReady(ctx context.Context, company string, year int) (*model.Document, error) {
	query := `
		SELECT id, filename, company, year, object_key, status, error_detail, created_at, updated_at
		FROM documents
		WHERE status = 'ready' AND LOWER(company) = LOWER($1)`
	args := []interface{}{company}
	if year > 0 {
		query += ` AND year = $2`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, updated_at DESC LIMIT 1`

	var doc model.Document
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.Filename, &doc.Company, &doc.Year, &doc.ObjectKey,
		&doc.Status, &doc.ErrorDetail, &doc.CreatedAt, &doc.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundErr("no ready report for company")
	}
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to find report: %w", err))
	}
	return &doc, nil
}

func (s *PGStore) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (LOWER(d.company))
			d.id, d.company, d.year, r.leaf_rating, r.scope1_total, r.scope2_total
		FROM documents d
		LEFT JOIN reports r ON r.document_id = d.id
		WHERE d.status = 'ready'
		ORDER BY LOWER(d.company), d.year DESC, d.updated_at DESC`)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to list companies: %w", err))
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (s *PGStore) CompanyHistory(ctx context.Context, company string) ([]model.CompanySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (d.year)
			d.id, d.company, d.year, r.leaf_rating, r.scope1_total, r.scope2_total
		FROM documents d
		LEFT JOIN reports r ON r.document_id = d.id
		WHERE d.status = 'ready' AND LOWER(d.company) = LOWER($1)
		ORDER BY d.year, d.updated_at DESC`, company)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to load history: %w", err))
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]model.CompanySummary, error) {
	var summaries []model.CompanySummary
	for rows.Next() {
		var s model.CompanySummary
		if err := rows.Scan(&s.DocumentID, &s.Company, &s.Year, &s.LeafRating, &s.Scope1Total, &s.Scope2Total); err != nil {
			return nil, TransientErr("store", fmt.Errorf("failed to scan summary: %w", err))
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to read summaries: %w", err))
	}
	if summaries == nil {
		summaries = []model.CompanySummary{}
	}
	return summaries, nil
}

func (s *PGStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*),
			COALESCE(SUM(c.chunk_count), 0),
			count(DISTINCT LOWER(d.company))
		FROM documents d
		LEFT JOIN (
			SELECT document_id, count(*) AS chunk_count FROM chunks GROUP BY document_id
		) c ON c.document_id = d.id
		WHERE d.status = 'ready'`,
	).Scan(&stats.TotalReports, &stats.TotalChunks, &stats.UniqueCompanies)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to aggregate stats: %w", err))
	}

	if stats.TotalReports > 0 {
		stats.AvgChunksPerReport = float64(stats.TotalChunks) / float64(stats.TotalReports)
	}
	return stats, nil
}

func (s *PGStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to count by status: %w", err))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, TransientErr("store", fmt.Errorf("failed to scan count: %w", err))
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to read counts: %w", err))
	}
	return counts, nil
}

// Upsert writes embeddings onto their chunk rows.
func (s *PGStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`UPDATE chunks SET embedding = $2, embedding_model = $3 WHERE id = $1`,
			r.ChunkID, pgvector.NewVector(r.Vector), r.Model)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return TransientErr("store", fmt.Errorf("failed to write embedding: %w", err))
		}
	}
	if err := br.Close(); err != nil {
		return TransientErr("store", fmt.Errorf("failed to flush embeddings: %w", err))
	}
	return nil
}

// Query runs cosine similarity over embedded chunks of ready documents.
func (s *PGStore) Query(ctx context.Context, vector []float32, k int, minSimilarity float64, company string) ([]VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		WITH scored AS (
			SELECT c.id AS chunk_id, 1 - (c.embedding <=> $1) AS similarity
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE c.embedding IS NOT NULL
			  AND d.status = 'ready'
			  AND ($2 = '' OR LOWER(d.company) = LOWER($2))
		)
		SELECT chunk_id, similarity FROM scored
		WHERE similarity >= $3
		ORDER BY similarity DESC
		LIMIT $4`,
		pgvector.NewVector(vector), company, minSimilarity, k)
	if err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to run similarity query: %w", err))
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.ChunkID, &m.Similarity); err != nil {
			return nil, TransientErr("store", fmt.Errorf("failed to scan match: %w", err))
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, TransientErr("store", fmt.Errorf("failed to read matches: %w", err))
	}
	return matches, nil
}

// DeleteDocument clears the document's embeddings, removing it from
// similarity search without touching chunk text.
func (s *PGStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chunks SET embedding = NULL, embedding_model = '' WHERE document_id = $1`, documentID)
	if err != nil {
		return TransientErr("store", fmt.Errorf("failed to clear embeddings: %w", err))
	}
	return nil
}
