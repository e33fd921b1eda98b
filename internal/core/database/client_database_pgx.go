package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for documents

func (c *DatabaseClient) UpsertDocument(ctx context.Context, doc *models.Document) (string, error) {
	if doc == nil {
		return "", errors.New("nil document")
	}
	// Resubmitting identical content to the same destination hits the
	// (content_hash, target_table) constraint and returns the existing row's
	// id; the no-op DO UPDATE is there so RETURNING yields a row either way.
	const q = `
		INSERT INTO documents
			(id, source_type, title, description, target_table, content_hash,
			 content_type, file_name, source_url, storage_url, user_id, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (content_hash, target_table) DO UPDATE
			SET updated_at = now()
		RETURNING id
	`
	var id string
	err := c.db.QueryRowContext(ctx, q,
		doc.ID, doc.SourceType, doc.Title, doc.Description, doc.TargetTable, doc.ContentHash,
		doc.ContentType, doc.FileName, doc.SourceURL, doc.StorageURL, doc.UserID, doc.Status,
	).Scan(&id)
	if err != nil {
		return "", core.WrapErr(core.KindStoreWriteFailed, err, "upsert document")
	}
	return id, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, source_type, title, description, target_table, content_hash,
		       content_type, file_name, source_url, storage_url, user_id, raw_text, status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.SourceType, &d.Title, &d.Description, &d.TargetTable, &d.ContentHash,
		&d.ContentType, &d.FileName, &d.SourceURL, &d.StorageURL, &d.UserID, &d.RawText, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "update document status")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SetDocumentText(ctx context.Context, id string, text string) error {
	const q = `
		UPDATE documents
		SET raw_text = $2, status = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, text, models.DocStatusExtracted)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "set document text")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) GetLatestResumeByUser(ctx context.Context, userID string) (*models.Document, error) {
	const q = `
		SELECT id, source_type, title, description, target_table, content_hash,
		       content_type, file_name, source_url, storage_url, user_id, raw_text, status, created_at, updated_at
		FROM documents
		WHERE user_id = $1 AND source_type = 'resume'
		ORDER BY created_at DESC
		LIMIT 1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, userID).Scan(
		&d.ID, &d.SourceType, &d.Title, &d.Description, &d.TargetTable, &d.ContentHash,
		&d.ContentType, &d.FileName, &d.SourceURL, &d.StorageURL, &d.UserID, &d.RawText, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Implementing the db interface for document chunks

// ReplaceChunks swaps the document's chunk set in one transaction: delete all
// prior rows, insert the new set, commit. A concurrent reader sees either the
// old complete set or the new complete set, never a mix.
func (c *DatabaseClient) ReplaceChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "begin replace chunks")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return core.WrapErr(core.KindStoreWriteFailed, err, "delete prior chunks")
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, sequence_index, content, embedding, section_hint, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return core.WrapErr(core.KindStoreWriteFailed, err, "prepare chunk insert")
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, documentID, ch.SequenceIndex, ch.Content, vec, ch.SectionHint, ch.TokenCount,
		); err != nil {
			_ = tx.Rollback()
			return core.WrapErr(core.KindStoreWriteFailed, err, "insert chunk")
		}
	}
	if err := tx.Commit(); err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "commit replace chunks")
	}
	return nil
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, sequence_index, content, embedding, section_hint, token_count, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY sequence_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.SequenceIndex, &ch.Content, &emb, &ch.SectionHint, &ch.TokenCount, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchChunks finds top-k similar chunks across all documents for a query
// embedding. This is the downstream retrieval contract; the query surface
// itself lives elsewhere.
func (c *DatabaseClient) SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, sequence_index, content, embedding, section_hint, token_count, created_at
		FROM document_chunks
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.SequenceIndex, &ch.Content, &emb, &ch.SectionHint, &ch.TokenCount, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Implementing the db interface for target tables

func (c *DatabaseClient) WriteTargetRow(ctx context.Context, targetTable string, documentID string, row *models.TargetRow) error {
	if row == nil {
		return errors.New("nil target row")
	}
	vec := pgvector.NewVector(row.Embedding)

	var q string
	var args []any
	switch targetTable {
	case models.TargetKnowledgeResources:
		q = `
			INSERT INTO knowledge_resources
				(id, document_id, title, description, content, source_url, content_type, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (document_id) DO UPDATE SET
				title = EXCLUDED.title, description = EXCLUDED.description, content = EXCLUDED.content,
				source_url = EXCLUDED.source_url, content_type = EXCLUDED.content_type,
				embedding = EXCLUDED.embedding, updated_at = now()
		`
		args = []any{newRowID(), documentID, row.Title, row.Description, row.Content, row.SourceURL, row.ContentType, vec}
	case models.TargetJobListings:
		q = `
			INSERT INTO job_listings
				(id, document_id, title, description, company, location, application_url, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (document_id) DO UPDATE SET
				title = EXCLUDED.title, description = EXCLUDED.description, company = EXCLUDED.company,
				location = EXCLUDED.location, application_url = EXCLUDED.application_url,
				embedding = EXCLUDED.embedding, updated_at = now()
		`
		args = []any{newRowID(), documentID, row.Title, row.Description, row.Company, row.Location, row.ApplicationURL, vec}
	case models.TargetEducationPrograms:
		q = `
			INSERT INTO education_programs
				(id, document_id, program_name, description, institution, application_url, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (document_id) DO UPDATE SET
				program_name = EXCLUDED.program_name, description = EXCLUDED.description,
				institution = EXCLUDED.institution, application_url = EXCLUDED.application_url,
				embedding = EXCLUDED.embedding, updated_at = now()
		`
		args = []any{newRowID(), documentID, row.Title, row.Description, row.Institution, row.ApplicationURL, vec}
	default:
		return fmt.Errorf("unknown target table: %s", targetTable)
	}

	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "write target row")
	}
	return nil
}

// Implementing the db interface for jobs

func (c *DatabaseClient) CreateJob(ctx context.Context, job *models.Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	const q = `
		INSERT INTO jobs (id, document_id, state, attempt_count, max_attempts, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, job.ID, job.DocumentID, job.State, job.AttemptCount, job.MaxAttempts)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "create job")
	}
	return nil
}

// ClaimNextJob is the mutual-exclusion point of the worker pool: the
// SKIP LOCKED sub-select guarantees two workers never claim the same row.
func (c *DatabaseClient) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	const q = `
		UPDATE jobs
		SET state = 'processing', started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE state = 'queued' AND next_run_at <= now()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, document_id, state, attempt_count, max_attempts, error, next_run_at, created_at, started_at, finished_at
	`
	var j models.Job
	err := c.db.QueryRowContext(ctx, q).Scan(
		&j.ID, &j.DocumentID, &j.State, &j.AttemptCount, &j.MaxAttempts, &j.Error,
		&j.NextRunAt, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *DatabaseClient) RequeueJob(ctx context.Context, jobID string, nextRunAt time.Time) error {
	const q = `
		UPDATE jobs
		SET state = 'queued', attempt_count = attempt_count + 1, next_run_at = $2
		WHERE id = $1 AND state = 'processing'
	`
	res, err := c.db.ExecContext(ctx, q, jobID, nextRunAt)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "requeue job")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	return nil
}

func (c *DatabaseClient) CompleteJob(ctx context.Context, jobID string) error {
	const q = `
		UPDATE jobs
		SET state = 'completed', finished_at = now()
		WHERE id = $1 AND state = 'processing'
	`
	res, err := c.db.ExecContext(ctx, q, jobID)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "complete job")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	return nil
}

func (c *DatabaseClient) FailJob(ctx context.Context, jobID string, reason string) error {
	const q = `
		UPDATE jobs
		SET state = 'failed', error = $2, attempt_count = attempt_count + 1, finished_at = now()
		WHERE id = $1 AND state = 'processing'
	`
	res, err := c.db.ExecContext(ctx, q, jobID, reason)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "fail job")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	return nil
}

func (c *DatabaseClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	const q = `
		SELECT id, document_id, state, attempt_count, max_attempts, error, next_run_at, created_at, started_at, finished_at
		FROM jobs
		WHERE id = $1
	`
	var j models.Job
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&j.ID, &j.DocumentID, &j.State, &j.AttemptCount, &j.MaxAttempts, &j.Error,
		&j.NextRunAt, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *DatabaseClient) ListJobs(ctx context.Context, filter core.JobFilter) ([]models.Job, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	var total int
	if filter.State != "" {
		if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE state = $1`, filter.State).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	const base = `
		SELECT id, document_id, state, attempt_count, max_attempts, error, next_run_at, created_at, started_at, finished_at
		FROM jobs
	`
	var (
		rows *sql.Rows
		err  error
	)
	if filter.State != "" {
		rows, err = c.db.QueryContext(ctx, base+` WHERE state = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			filter.State, limit, filter.Offset)
	} else {
		rows, err = c.db.QueryContext(ctx, base+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(
			&j.ID, &j.DocumentID, &j.State, &j.AttemptCount, &j.MaxAttempts, &j.Error,
			&j.NextRunAt, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}
