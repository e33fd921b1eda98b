package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/core/pipeline"
	"github.com/pendocareer/ragpipeline/internal/models"
)

const maxUploadBytes = 64 << 20

var validTargetTables = map[string]bool{
	models.TargetKnowledgeResources: true,
	models.TargetJobListings:        true,
	models.TargetEducationPrograms:  true,
}

// ProcessHandler accepts document submissions and turns them into queued jobs.
type ProcessHandler struct {
	manager      *pipeline.Manager
	objectclient core.ObjectClient
	cfg          *config.Config
	log          *zap.Logger
}

func NewProcessHandler(mgr *pipeline.Manager, obj core.ObjectClient, cfg *config.Config, log *zap.Logger) *ProcessHandler {
	return &ProcessHandler{manager: mgr, objectclient: obj, cfg: cfg, log: log}
}

type submitResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

// Process handles POST /api/process: a multipart form carrying either a PDF
// file or a website URL, plus destination metadata. It stores the raw input,
// queues a job, and returns 202 immediately.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	targetTable := r.FormValue("target_table")
	if !validTargetTables[targetTable] {
		http.Error(w, fmt.Sprintf("invalid target_table %q", targetTable), http.StatusBadRequest)
		return
	}

	doc := &models.Document{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		TargetTable: targetTable,
	}

	sourceURL := strings.TrimSpace(r.FormValue("url"))
	file, header, fileErr := r.FormFile("file")

	switch {
	case sourceURL != "":
		if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
			http.Error(w, "url must be http or https", http.StatusBadRequest)
			return
		}
		doc.SourceType = models.SourceWebsite
		doc.SourceURL = sourceURL
		doc.ContentHash = pipeline.HashContent([]byte(sourceURL))

	case fileErr == nil:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			http.Error(w, "failed to read file", http.StatusBadRequest)
			return
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/pdf"
		}
		doc.SourceType = models.SourcePDF
		doc.FileName = filepath.Base(header.Filename)
		doc.ContentType = contentType
		doc.ContentHash = pipeline.HashContent(data)

		url, err := h.uploadSource(r.Context(), fmt.Sprintf("documents/%s/%s", doc.ContentHash, doc.FileName), data, contentType)
		if err != nil {
			h.log.Error("source upload failed", zap.Error(err))
			http.Error(w, "failed to store uploaded file", http.StatusInternalServerError)
			return
		}
		doc.StorageURL = url

	default:
		http.Error(w, "either a file or a url is required", http.StatusBadRequest)
		return
	}

	docID, jobID, err := h.manager.Submit(r.Context(), doc)
	if err != nil {
		h.log.Error("submit failed", zap.Error(err))
		http.Error(w, "failed to queue document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{DocumentID: docID, JobID: jobID, Status: string(models.JobQueued)})
}

type batchItem struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TargetTable string `json:"target_table"`
}

type batchResult struct {
	URL        string `json:"url"`
	DocumentID string `json:"document_id,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Batch handles POST /api/batch: a JSON array of website submissions. Items
// are validated and queued independently, so one bad entry never blocks the rest.
func (h *ProcessHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var items []batchItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "body must be a JSON array of submissions", http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	results := make([]batchResult, 0, len(items))
	for _, item := range items {
		res := batchResult{URL: item.URL}
		switch {
		case !strings.HasPrefix(item.URL, "http://") && !strings.HasPrefix(item.URL, "https://"):
			res.Status = "rejected"
			res.Error = "url must be http or https"
		case !validTargetTables[item.TargetTable]:
			res.Status = "rejected"
			res.Error = fmt.Sprintf("invalid target_table %q", item.TargetTable)
		default:
			doc := &models.Document{
				SourceType:  models.SourceWebsite,
				Title:       item.Title,
				Description: item.Description,
				TargetTable: item.TargetTable,
				SourceURL:   item.URL,
				ContentHash: pipeline.HashContent([]byte(item.URL)),
			}
			docID, jobID, err := h.manager.Submit(r.Context(), doc)
			if err != nil {
				h.log.Error("batch submit failed", zap.String("url", item.URL), zap.Error(err))
				res.Status = "rejected"
				res.Error = "failed to queue document"
			} else {
				res.DocumentID = docID
				res.JobID = jobID
				res.Status = string(models.JobQueued)
			}
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (h *ProcessHandler) uploadSource(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	return h.objectclient.UploadFile(uploadCtx, key, data, contentType)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
