package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/models"
)

// pollInterval is how long an idle worker waits before looking for work again.
const pollInterval = 500 * time.Millisecond

// Manager orchestrates the ingestion pipeline: it creates jobs at submission,
// and its workers claim jobs and drive documents through extract → chunk →
// embed → store. It is the only component that transitions job state.
type Manager struct {
	db         core.DbClient
	obj        core.ObjectClient
	embedder   core.EmbeddingProvider
	extractors map[models.SourceType]core.Extractor
	cfg        *config.Config
	backoff    Backoff
	log        *zap.Logger
}

func NewManager(cfg *config.Config, db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, extractors map[models.SourceType]core.Extractor, log *zap.Logger) *Manager {
	return &Manager{
		db:         db,
		obj:        obj,
		embedder:   emb,
		extractors: extractors,
		cfg:        cfg,
		backoff:    Backoff{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay, Jitter: 0.2},
		log:        log,
	}
}

// HashContent yields the idempotency hash for submitted source content.
func HashContent(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// Submit registers a document and queues a job for it. Resubmitting identical
// content with the same target table reuses the existing document ID but
// still queues a fresh job (reprocessing replaces the chunk set).
func (m *Manager) Submit(ctx context.Context, doc *models.Document) (documentID, jobID string, err error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = models.DocStatusPending

	documentID, err = m.db.UpsertDocument(ctx, doc)
	if err != nil {
		return "", "", fmt.Errorf("upsert document: %w", err)
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		State:       models.JobQueued,
		MaxAttempts: m.cfg.MaxAttempts,
	}
	if err := m.db.CreateJob(ctx, job); err != nil {
		return "", "", fmt.Errorf("create job: %w", err)
	}

	m.log.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("document_id", documentID),
		zap.String("source_type", string(doc.SourceType)))
	return documentID, job.ID, nil
}

// Start runs the worker pool until ctx is cancelled. Each worker processes
// one claimed job end-to-end before claiming another.
func (m *Manager) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= m.cfg.Workers; w++ {
		worker := w
		g.Go(func() error {
			return m.workerLoop(gctx, worker)
		})
	}
	return g.Wait()
}

func (m *Manager) workerLoop(ctx context.Context, worker int) error {
	m.log.Info("pipeline worker started", zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			m.log.Info("pipeline worker stopping", zap.Int("worker", worker))
			return nil
		default:
		}

		job, err := m.db.ClaimNextJob(ctx)
		if err != nil {
			m.log.Warn("claim failed", zap.Int("worker", worker), zap.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
			continue
		}

		m.processJob(ctx, job, worker)
	}
}

// processJob runs one claimed job through all stages and settles its state.
// The worker always returns to the pool: every failure path lands in either
// a re-queue or a terminal failure.
func (m *Manager) processJob(ctx context.Context, job *models.Job, worker int) {
	log := m.log.With(zap.String("job_id", job.ID), zap.String("document_id", job.DocumentID), zap.Int("worker", worker))
	log.Info("processing job", zap.Int("attempt", job.AttemptCount+1), zap.Int("max_attempts", job.MaxAttempts))

	if err := m.runStages(ctx, job, log); err != nil {
		m.settleFailure(ctx, job, err, log)
		return
	}

	if err := m.db.CompleteJob(ctx, job.ID); err != nil {
		log.Error("complete transition failed", zap.Error(err))
		return
	}
	log.Info("job completed")
}

func (m *Manager) runStages(ctx context.Context, job *models.Job, log *zap.Logger) error {
	doc, err := m.db.GetDocumentByID(ctx, job.DocumentID)
	if err != nil {
		return core.WrapErr(core.KindStoreWriteFailed, err, "load document")
	}
	if doc == nil {
		return core.Errf(core.KindUnreadableDocument, "document %s not found", job.DocumentID)
	}

	// Stage 1: extraction.
	text, meta, err := m.extract(ctx, doc)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return core.Errf(core.KindEmptyExtraction, "no text could be extracted from the content")
	}
	if err := m.storeStage(ctx, func(c context.Context) error {
		return m.db.SetDocumentText(c, doc.ID, text)
	}); err != nil {
		return err
	}
	log.Info("extracted", zap.Int("chars", len(text)))

	// Stage 2: chunking. Résumés chunk per detected section so each chunk
	// carries its section hint.
	var chunks []sectionedChunk
	if doc.SourceType == models.SourceResume {
		chunks, err = splitSections(text, decodeSections(meta), m.cfg.ChunkSize, m.cfg.ChunkOverlap)
	} else {
		chunks, err = splitSections(text, nil, m.cfg.ChunkSize, m.cfg.ChunkOverlap)
	}
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return core.Errf(core.KindEmptyExtraction, "no text chunks were created")
	}
	if err := m.storeStage(ctx, func(c context.Context) error {
		return m.db.UpdateDocumentStatus(c, doc.ID, models.DocStatusChunked)
	}); err != nil {
		return err
	}
	log.Info("chunked", zap.Int("chunks", len(chunks)))

	// Stage 3: embedding, in bounded sub-batches, order preserved.
	vectors, err := m.embedAll(ctx, chunks)
	if err != nil {
		return err
	}
	if err := m.storeStage(ctx, func(c context.Context) error {
		return m.db.UpdateDocumentStatus(c, doc.ID, models.DocStatusEmbedded)
	}); err != nil {
		return err
	}

	// Stage 4: storage. Chunk rows are the retrieval-critical asset.
	rows := make([]models.DocumentChunk, len(chunks))
	for i, ch := range chunks {
		rows[i] = models.DocumentChunk{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			SequenceIndex: i,
			Content:       ch.Text,
			Embedding:     vectors[i],
			SectionHint:   ch.Hint,
			TokenCount:    approxTokens(ch.Text),
		}
	}
	if err := m.storeStage(ctx, func(c context.Context) error {
		return m.db.ReplaceChunks(c, doc.ID, rows)
	}); err != nil {
		return err
	}

	// Target-table rows are best-effort denormalized projections: a failure
	// here is a warning, never a job failure.
	if doc.SourceType != models.SourceResume && doc.TargetTable != "" {
		if err := m.writeTargetRow(ctx, doc, text, meta, vectors[0]); err != nil {
			log.Warn("target row write failed", zap.String("target_table", doc.TargetTable), zap.Error(err))
		}
	}

	if err := m.storeStage(ctx, func(c context.Context) error {
		return m.db.UpdateDocumentStatus(c, doc.ID, models.DocStatusStored)
	}); err != nil {
		return err
	}
	log.Info("stored", zap.Int("chunks", len(rows)))
	return nil
}

func (m *Manager) extract(ctx context.Context, doc *models.Document) (string, map[string]string, error) {
	ex, ok := m.extractors[doc.SourceType]
	if !ok {
		return "", nil, core.Errf(core.KindUnsupportedFileType, "no extractor for source type %q", doc.SourceType)
	}

	in := core.ExtractorInput{
		URL:         doc.SourceURL,
		ContentType: doc.ContentType,
		FileName:    doc.FileName,
	}
	if doc.SourceType != models.SourceWebsite {
		key := objectKeyFromURL(doc.StorageURL)
		data, err := m.obj.GetFile(ctx, key)
		if err != nil {
			return "", nil, core.WrapErr(core.KindFetchFailed, err, "fetch stored object "+key)
		}
		in.Data = data
	}

	exCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	return ex.Extract(exCtx, in)
}

func (m *Manager) embedAll(ctx context.Context, chunks []sectionedChunk) ([][]float32, error) {
	batchSize := m.cfg.EmbedBatch
	if batchSize <= 0 {
		batchSize = 10
	}

	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}

		embCtx, cancel := context.WithTimeout(ctx, m.cfg.EmbedTimeout)
		vectors, err := m.embedder.EmbedTexts(embCtx, texts)
		cancel()
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, core.Errf(core.KindEmbeddingUnavailable, "provider returned %d vectors for %d inputs", len(vectors), len(texts))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (m *Manager) writeTargetRow(ctx context.Context, doc *models.Document, text string, meta map[string]string, firstEmbedding []float32) error {
	title := doc.Title
	if title == "" {
		title = meta[core.MetaTitle]
	}
	if title == "" {
		title = "Untitled"
	}
	description := doc.Description
	if description == "" {
		description = meta[core.MetaDescription]
	}
	if description == "" {
		description = summarize(text, 500)
	}

	row := &models.TargetRow{
		Title:       title,
		Description: description,
		Content:     text,
		SourceURL:   doc.SourceURL,
		ContentType: doc.ContentType,
		Embedding:   firstEmbedding,
	}
	if doc.SourceType == models.SourceWebsite {
		row.ApplicationURL = doc.SourceURL
	}

	storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	return m.db.WriteTargetRow(storeCtx, doc.TargetTable, doc.ID, row)
}

// storeStage wraps a store write with the configured timeout.
func (m *Manager) storeStage(ctx context.Context, fn func(context.Context) error) error {
	storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	return fn(storeCtx)
}

// settleFailure classifies the stage error: retryable failures go back to the
// queue with backoff while attempts remain; everything else is terminal.
func (m *Manager) settleFailure(ctx context.Context, job *models.Job, stageErr error, log *zap.Logger) {
	attempt := job.AttemptCount + 1

	if core.Retryable(stageErr) && attempt < job.MaxAttempts {
		delay := m.backoff.Delay(attempt)
		if err := m.db.RequeueJob(ctx, job.ID, time.Now().Add(delay)); err != nil {
			log.Error("requeue transition failed", zap.Error(err))
			return
		}
		log.Warn("job re-queued",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(stageErr))
		return
	}

	if err := m.db.FailJob(ctx, job.ID, stageErr.Error()); err != nil {
		log.Error("fail transition failed", zap.Error(err))
		return
	}
	if err := m.db.UpdateDocumentStatus(ctx, job.DocumentID, models.DocStatusFailed); err != nil {
		log.Warn("document status update failed", zap.Error(err))
	}
	log.Error("job failed", zap.Int("attempt", attempt), zap.Error(stageErr))
}

// GetJob and ListJobs are read-only passthroughs for the API surface; they
// never mutate job state.
func (m *Manager) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return m.db.GetJob(ctx, id)
}

func (m *Manager) ListJobs(ctx context.Context, filter core.JobFilter) ([]models.Job, int, error) {
	return m.db.ListJobs(ctx, filter)
}

func decodeSections(meta map[string]string) []core.Section {
	raw, ok := meta[core.MetaSections]
	if !ok || raw == "" {
		return nil
	}
	var sections []core.Section
	if err := json.Unmarshal([]byte(raw), &sections); err != nil {
		return nil
	}
	return sections
}

// objectKeyFromURL recovers the object key from a stored URL, handling both
// virtual-hosted S3 URLs and the memory:// scheme used in tests.
func objectKeyFromURL(u string) string {
	if strings.HasPrefix(u, "memory://") {
		return strings.TrimPrefix(u, "memory://")
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func summarize(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
