package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/core/pipeline"
	"github.com/pendocareer/ragpipeline/internal/models"
)

// ResumeHandler manages per-user résumé uploads and lookups.
type ResumeHandler struct {
	manager      *pipeline.Manager
	dbclient     core.DbClient
	objectclient core.ObjectClient
	cfg          *config.Config
	log          *zap.Logger
}

func NewResumeHandler(mgr *pipeline.Manager, db core.DbClient, obj core.ObjectClient, cfg *config.Config, log *zap.Logger) *ResumeHandler {
	return &ResumeHandler{manager: mgr, dbclient: db, objectclient: obj, cfg: cfg, log: log}
}

// Upload handles POST /api/resume/upload: a multipart form with a résumé file
// and the owning user_id. Each upload becomes its own document; the newest
// stored one is the user's current résumé.
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "a resume file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &models.Document{
		SourceType:  models.SourceResume,
		Title:       fmt.Sprintf("Resume: %s", filepath.Base(header.Filename)),
		TargetTable: models.TargetResumeProfiles,
		ContentType: contentType,
		FileName:    filepath.Base(header.Filename),
		UserID:      userID,
		ContentHash: pipeline.HashContent(data),
	}

	key := fmt.Sprintf("resumes/%s/%s/%s", userID, doc.ContentHash, doc.FileName)
	url, err := h.objectclient.UploadFile(r.Context(), key, data, contentType)
	if err != nil {
		h.log.Error("resume upload failed", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "failed to store resume file", http.StatusInternalServerError)
		return
	}
	doc.StorageURL = url

	docID, jobID, err := h.manager.Submit(r.Context(), doc)
	if err != nil {
		h.log.Error("resume submit failed", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "failed to queue resume", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{DocumentID: docID, JobID: jobID, Status: string(models.JobQueued)})
}

type resumeSummary struct {
	HasResume   bool   `json:"has_resume"`
	DocumentID  string `json:"document_id,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Status      string `json:"status,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
	TextPreview string `json:"text_preview,omitempty"`
}

// Get handles GET /api/resume/{user_id}: returns a summary of the user's most
// recent résumé, or has_resume=false when none exists.
func (h *ResumeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	doc, err := h.dbclient.GetLatestResumeByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("resume lookup failed", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "failed to look up resume", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusOK, resumeSummary{HasResume: false})
		return
	}

	summary := resumeSummary{
		HasResume:  true,
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Status:     doc.Status,
		UploadedAt: doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if doc.RawText != nil {
		summary.TextPreview = preview(*doc.RawText, 300)
	}
	writeJSON(w, http.StatusOK, summary)
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
