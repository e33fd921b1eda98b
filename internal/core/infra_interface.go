package core

import (
	"context"
	"time"

	"github.com/pendocareer/ragpipeline/internal/models"
)

// JobFilter narrows and pages ListJobs queries.
type JobFilter struct {
	State  models.JobState // empty = all states
	Limit  int
	Offset int
}

// DbClient defines all persistence operations the pipeline and handlers need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	// UpsertDocument is idempotent on (content_hash, target_table): submitting
	// identical source content to the same destination returns the existing
	// document's ID instead of creating a duplicate.
	UpsertDocument(ctx context.Context, doc *models.Document) (string, error)
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	SetDocumentText(ctx context.Context, id string, text string) error
	GetLatestResumeByUser(ctx context.Context, userID string) (*models.Document, error)

	// ReplaceChunks atomically swaps the document's chunk set: on success all
	// prior chunks are gone and exactly the new set is visible; on failure the
	// prior set is untouched.
	ReplaceChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]models.DocumentChunk, error)

	// WriteTargetRow writes the domain-specific projection (job listing,
	// knowledge resource, education program) derived from a processed document.
	WriteTargetRow(ctx context.Context, targetTable string, documentID string, row *models.TargetRow) error

	CreateJob(ctx context.Context, job *models.Job) error
	// ClaimNextJob atomically moves the oldest runnable queued job to
	// processing and returns it, or (nil, nil) when none is due.
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	// RequeueJob returns a processing job to queued with an incremented
	// attempt count, invisible to workers until nextRunAt.
	RequeueJob(ctx context.Context, jobID string, nextRunAt time.Time) error
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID string, reason string) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]models.Job, int, error)

	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage holding the
// raw bytes of uploaded documents between submission and worker pickup.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
