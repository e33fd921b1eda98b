package models

import (
	"time"
)

// SourceType identifies what kind of input a document was submitted as.
type SourceType string

const (
	SourcePDF     SourceType = "pdf"
	SourceWebsite SourceType = "website"
	SourceResume  SourceType = "resume"
)

// Document lifecycle statuses, advanced stage by stage by the pipeline.
const (
	DocStatusPending   = "pending"
	DocStatusExtracted = "extracted"
	DocStatusChunked   = "chunked"
	DocStatusEmbedded  = "embedded"
	DocStatusStored    = "stored"
	DocStatusFailed    = "failed"
)

// Target tables a processed document's structured fields can be projected into.
const (
	TargetKnowledgeResources = "knowledge_resources"
	TargetJobListings        = "job_listings"
	TargetEducationPrograms  = "education_programs"
	TargetResumeProfiles     = "resume_profiles"
)

// Document represents one submitted source artifact tracked through the pipeline.
type Document struct {
	ID          string     `db:"id" json:"id"`
	SourceType  SourceType `db:"source_type" json:"source_type"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description,omitempty"`
	TargetTable string     `db:"target_table" json:"target_table"`
	ContentHash string     `db:"content_hash" json:"-"` // md5 of source content; idempotency key with target_table
	ContentType string     `db:"content_type" json:"content_type,omitempty"`
	FileName    string     `db:"file_name" json:"file_name,omitempty"`
	SourceURL   string     `db:"source_url" json:"source_url,omitempty"`
	StorageURL  string     `db:"storage_url" json:"storage_url,omitempty"` // S3 object for uploaded files
	UserID      string     `db:"user_id" json:"user_id,omitempty"`
	RawText     *string    `db:"raw_text" json:"-"` // non-nil once status >= extracted
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk of a document with its embedding.
type DocumentChunk struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"document_id"`
	SequenceIndex int       `db:"sequence_index" json:"sequence_index"`
	Content       string    `db:"content" json:"content"`
	Embedding     []float32 `db:"embedding" json:"embedding"` // pgvector column
	SectionHint   string    `db:"section_hint" json:"section_hint,omitempty"`
	TokenCount    int       `db:"token_count" json:"token_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// JobState is the lifecycle state of a processing job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further transition may leave this state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job tracks one asynchronous processing request. One job drives exactly one
// document through the pipeline; workers claim jobs via a conditional state
// transition, so a job is held by at most one worker at a time.
type Job struct {
	ID           string     `db:"id" json:"id"`
	DocumentID   string     `db:"document_id" json:"document_id"`
	State        JobState   `db:"state" json:"state"`
	AttemptCount int        `db:"attempt_count" json:"attempt_count"`
	MaxAttempts  int        `db:"max_attempts" json:"max_attempts"`
	Error        string     `db:"error" json:"error,omitempty"` // set only when state = failed
	NextRunAt    time.Time  `db:"next_run_at" json:"-"`         // backoff-delayed visibility for retries
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// TargetRow carries the structured fields projected into a domain target table.
// Fields not applicable to a given table are left empty.
type TargetRow struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Content        string    `json:"content,omitempty"`
	Company        string    `json:"company,omitempty"`
	Location       string    `json:"location,omitempty"`
	Institution    string    `json:"institution,omitempty"`
	ApplicationURL string    `json:"application_url,omitempty"`
	SourceURL      string    `json:"source_url,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
	Embedding      []float32 `json:"-"` // first-chunk embedding
}
