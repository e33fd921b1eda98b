package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/models"
)

func newDoc(id, hash, table string) *models.Document {
	return &models.Document{
		ID:          id,
		SourceType:  models.SourcePDF,
		TargetTable: table,
		ContentHash: hash,
		Status:      models.DocStatusPending,
	}
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	first, err := c.UpsertDocument(ctx, newDoc("doc-1", "hash-a", models.TargetKnowledgeResources))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", first)

	// Same hash and table: the existing document wins, the new ID is ignored.
	second, err := c.UpsertDocument(ctx, newDoc("doc-2", "hash-a", models.TargetKnowledgeResources))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", second)

	// Same hash, different destination: a distinct document.
	third, err := c.UpsertDocument(ctx, newDoc("doc-3", "hash-a", models.TargetJobListings))
	require.NoError(t, err)
	assert.Equal(t, "doc-3", third)
}

func TestReplaceChunksSwapsWholeSet(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	old := []models.DocumentChunk{
		{ID: "c1", DocumentID: "d", SequenceIndex: 0, Content: "old one"},
		{ID: "c2", DocumentID: "d", SequenceIndex: 1, Content: "old two"},
	}
	require.NoError(t, c.ReplaceChunks(ctx, "d", old))

	next := []models.DocumentChunk{{ID: "c3", DocumentID: "d", SequenceIndex: 0, Content: "new"}}
	require.NoError(t, c.ReplaceChunks(ctx, "d", next))

	got, err := c.GetChunksByDocument(ctx, "d")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Content)
}

func TestReplaceChunksFailureKeepsPriorSet(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	old := []models.DocumentChunk{{ID: "c1", DocumentID: "d", SequenceIndex: 0, Content: "survivor"}}
	require.NoError(t, c.ReplaceChunks(ctx, "d", old))

	c.FailNextReplace = true
	err := c.ReplaceChunks(ctx, "d", []models.DocumentChunk{{ID: "c2", DocumentID: "d"}})
	require.Error(t, err)

	got, _ := c.GetChunksByDocument(ctx, "d")
	require.Len(t, got, 1)
	assert.Equal(t, "survivor", got[0].Content)
}

func TestClaimNextJobExclusive(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j1", DocumentID: "d1", State: models.JobQueued, MaxAttempts: 3}))

	first, err := c.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.JobProcessing, first.State)
	assert.NotNil(t, first.StartedAt)

	second, err := c.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, second, "a processing job must not be claimable")
}

func TestClaimRespectsNextRunAt(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j1", State: models.JobQueued, MaxAttempts: 3}))
	claimed, _ := c.ClaimNextJob(ctx)
	require.NotNil(t, claimed)

	require.NoError(t, c.RequeueJob(ctx, "j1", time.Now().Add(time.Hour)))

	got, err := c.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "backoff-delayed jobs are invisible until due")

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j2", State: models.JobQueued, MaxAttempts: 3}))
	got, err = c.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "j2", got.ID)
}

func TestRequeueIncrementsAttempts(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j1", State: models.JobQueued, MaxAttempts: 3}))
	_, _ = c.ClaimNextJob(ctx)
	require.NoError(t, c.RequeueJob(ctx, "j1", time.Now()))

	j, _ := c.GetJob(ctx, "j1")
	assert.Equal(t, models.JobQueued, j.State)
	assert.Equal(t, 1, j.AttemptCount)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j1", State: models.JobQueued, MaxAttempts: 3}))
	_, _ = c.ClaimNextJob(ctx)
	require.NoError(t, c.CompleteJob(ctx, "j1"))

	assert.Error(t, c.CompleteJob(ctx, "j1"))
	assert.Error(t, c.FailJob(ctx, "j1", "nope"))
	assert.Error(t, c.RequeueJob(ctx, "j1", time.Now()))

	j, _ := c.GetJob(ctx, "j1")
	assert.Equal(t, models.JobCompleted, j.State)
}

func TestFailJobRecordsReason(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.CreateJob(ctx, &models.Job{ID: "j1", State: models.JobQueued, MaxAttempts: 3}))
	_, _ = c.ClaimNextJob(ctx)
	require.NoError(t, c.FailJob(ctx, "j1", "fetch_failed: boom"))

	j, _ := c.GetJob(ctx, "j1")
	assert.Equal(t, models.JobFailed, j.State)
	assert.Equal(t, "fetch_failed: boom", j.Error)
	assert.Equal(t, 1, j.AttemptCount)
	assert.NotNil(t, j.FinishedAt)
}

func TestListJobsFilterAndPaging(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(t, c.CreateJob(ctx, &models.Job{ID: id, State: models.JobQueued, MaxAttempts: 3}))
	}
	claimed, _ := c.ClaimNextJob(ctx)
	require.NoError(t, c.CompleteJob(ctx, claimed.ID))

	queued, total, err := c.ListJobs(ctx, core.JobFilter{State: models.JobQueued, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, queued, 2)

	all, total, err := c.ListJobs(ctx, core.JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 2)

	page2, _, err := c.ListJobs(ctx, core.JobFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

func TestGetLatestResumeByUser(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	assert.Nil(t, func() *models.Document {
		d, _ := c.GetLatestResumeByUser(ctx, "u1")
		return d
	}())

	older := newDoc("r1", "h1", models.TargetResumeProfiles)
	older.SourceType = models.SourceResume
	older.UserID = "u1"
	_, err := c.UpsertDocument(ctx, older)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	newer := newDoc("r2", "h2", models.TargetResumeProfiles)
	newer.SourceType = models.SourceResume
	newer.UserID = "u1"
	_, err = c.UpsertDocument(ctx, newer)
	require.NoError(t, err)

	latest, err := c.GetLatestResumeByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "r2", latest.ID)
}
