package db

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/models"
)

// MemoryClient is an in-memory DbClient with the same contracts as the
// Postgres client (idempotent upsert, atomic chunk replacement, exclusive job
// claims). It backs tests and local runs without a database.
type MemoryClient struct {
	mu        sync.Mutex
	documents map[string]*models.Document
	byHash    map[string]string // content_hash|target_table -> document id
	chunks    map[string][]models.DocumentChunk
	jobs      map[string]*models.Job
	jobOrder  []string
	targets   map[string]map[string]*models.TargetRow // table -> document id -> row

	// FailNextReplace makes the next ReplaceChunks call fail after the point
	// where a non-atomic implementation would already have destroyed the old
	// set. Tests use it to verify the prior chunks survive.
	FailNextReplace bool
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		documents: make(map[string]*models.Document),
		byHash:    make(map[string]string),
		chunks:    make(map[string][]models.DocumentChunk),
		jobs:      make(map[string]*models.Job),
		targets:   make(map[string]map[string]*models.TargetRow),
	}
}

var _ core.DbClient = (*MemoryClient)(nil)

func hashKey(doc *models.Document) string {
	return doc.ContentHash + "|" + doc.TargetTable
}

func (c *MemoryClient) UpsertDocument(_ context.Context, doc *models.Document) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byHash[hashKey(doc)]; ok {
		c.documents[id].UpdatedAt = time.Now()
		return id, nil
	}
	cp := *doc
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	c.documents[cp.ID] = &cp
	c.byHash[hashKey(doc)] = cp.ID
	return cp.ID, nil
}

func (c *MemoryClient) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (c *MemoryClient) UpdateDocumentStatus(_ context.Context, id string, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.documents[id]
	if !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

func (c *MemoryClient) SetDocumentText(_ context.Context, id string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.documents[id]
	if !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	d.RawText = &text
	d.Status = models.DocStatusExtracted
	d.UpdatedAt = time.Now()
	return nil
}

func (c *MemoryClient) GetLatestResumeByUser(_ context.Context, userID string) (*models.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var latest *models.Document
	for _, d := range c.documents {
		if d.UserID != userID || d.SourceType != models.SourceResume {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (c *MemoryClient) ReplaceChunks(_ context.Context, documentID string, chunks []models.DocumentChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNextReplace {
		c.FailNextReplace = false
		return core.Errf(core.KindStoreWriteFailed, "induced replace failure")
	}
	next := make([]models.DocumentChunk, len(chunks))
	copy(next, chunks)
	c.chunks[documentID] = next
	return nil
}

func (c *MemoryClient) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := c.chunks[documentID]
	out := make([]models.DocumentChunk, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out, nil
}

func (c *MemoryClient) SearchChunks(_ context.Context, queryVec []float32, limit int) ([]models.DocumentChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	type scored struct {
		ch   models.DocumentChunk
		dist float64
	}
	var all []scored
	for _, list := range c.chunks {
		for _, ch := range list {
			all = append(all, scored{ch: ch, dist: l2(queryVec, ch.Embedding)})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if limit > len(all) {
		limit = len(all)
	}
	out := make([]models.DocumentChunk, 0, limit)
	for _, s := range all[:limit] {
		out = append(out, s.ch)
	}
	return out, nil
}

func l2(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (c *MemoryClient) WriteTargetRow(_ context.Context, targetTable string, documentID string, row *models.TargetRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch targetTable {
	case models.TargetKnowledgeResources, models.TargetJobListings, models.TargetEducationPrograms:
	default:
		return fmt.Errorf("unknown target table: %s", targetTable)
	}
	if c.targets[targetTable] == nil {
		c.targets[targetTable] = make(map[string]*models.TargetRow)
	}
	cp := *row
	c.targets[targetTable][documentID] = &cp
	return nil
}

// TargetRow returns the stored projection for inspection in tests.
func (c *MemoryClient) TargetRow(targetTable, documentID string) *models.TargetRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.targets[targetTable] == nil {
		return nil
	}
	return c.targets[targetTable][documentID]
}

func (c *MemoryClient) CreateJob(_ context.Context, job *models.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *job
	cp.CreatedAt = time.Now()
	cp.NextRunAt = cp.CreatedAt
	c.jobs[cp.ID] = &cp
	c.jobOrder = append(c.jobOrder, cp.ID)
	return nil
}

func (c *MemoryClient) ClaimNextJob(_ context.Context) (*models.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, id := range c.jobOrder {
		j := c.jobs[id]
		if j.State != models.JobQueued || j.NextRunAt.After(now) {
			continue
		}
		j.State = models.JobProcessing
		started := now
		j.StartedAt = &started
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (c *MemoryClient) RequeueJob(_ context.Context, jobID string, nextRunAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok || j.State != models.JobProcessing {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	j.State = models.JobQueued
	j.AttemptCount++
	j.NextRunAt = nextRunAt
	return nil
}

func (c *MemoryClient) CompleteJob(_ context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok || j.State != models.JobProcessing {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	j.State = models.JobCompleted
	now := time.Now()
	j.FinishedAt = &now
	return nil
}

func (c *MemoryClient) FailJob(_ context.Context, jobID string, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok || j.State != models.JobProcessing {
		return fmt.Errorf("job not in processing state: %s", jobID)
	}
	j.State = models.JobFailed
	j.Error = reason
	j.AttemptCount++
	now := time.Now()
	j.FinishedAt = &now
	return nil
}

func (c *MemoryClient) GetJob(_ context.Context, id string) (*models.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (c *MemoryClient) ListJobs(_ context.Context, filter core.JobFilter) ([]models.Job, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var all []models.Job
	for _, id := range c.jobOrder {
		j := c.jobs[id]
		if filter.State != "" && j.State != filter.State {
			continue
		}
		all = append(all, *j)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (c *MemoryClient) Ping(context.Context) error { return nil }
func (c *MemoryClient) Close() error               { return nil }
