// Document HTTP handlers.
//
// This file exposes REST endpoints for knowledge-base documents:
//   - POST   /documents                 (upload a PDF, schedules ingestion)
//   - GET    /documents                 (list, paginated, optional service filter)
//   - GET    /documents/{id}           (status polling, includes job state)
//   - POST   /documents/{id}/reprocess (re-run ingestion)
//   - GET    /documents/{id}/download  (presigned download URL)
//   - DELETE /documents/{id}           (soft delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Upload returns 202 Accepted; the
// document reaches READY (or ERROR) asynchronously and clients poll GET.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/services"
	"github.com/supportdesk/go-kb-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// DocumentService defines document lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DocumentService interface {
	// Upload stores a PDF, creates the document in PENDING, and schedules
	// background ingestion.
	Upload(ctx context.Context, serviceID int, title, filename, contentType string, data []byte) (*domain.Document, error)
	// Reprocess purges chunks and re-runs ingestion for a READY or ERROR document.
	Reprocess(ctx context.Context, id string) error
	// Delete soft-deletes a document and removes its chunks.
	Delete(ctx context.Context, id string) error
	// Get returns a document and its current ingestion job state, if known.
	Get(ctx context.Context, id string) (*domain.Document, ingest.JobState, error)
	// ListPage returns a page of documents and the total count; serviceID 0
	// means all services.
	ListPage(ctx context.Context, serviceID, page, pageSize int) ([]domain.Document, int64, error)
	// DownloadURL returns a time-limited URL for the stored file.
	DownloadURL(ctx context.Context, id string) (string, error)
}

// AskService defines the conversational question answering operation.
type AskService interface {
	// Ask answers one question for userID scoped to serviceID.
	Ask(ctx context.Context, userID string, serviceID int, question string) (*services.Answer, error)
}

// AnalyticsService defines the usage dashboard computation.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (*services.Dashboard, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for documents, chat, and analytics.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	docSvc   DocumentService
	askSvc   AskService
	statsSvc AnalyticsService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(docSvc DocumentService, askSvc AskService, statsSvc AnalyticsService) *Handlers {
	return &Handlers{docSvc: docSvc, askSvc: askSvc, statsSvc: statsSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// DocumentResponse is the document resource returned by the API, extending
// the stored row with the in-process ingestion job state when known.
type DocumentResponse struct {
	domain.Document
	// JobState reflects the background job (queued/running/done/failed);
	// empty when no job for this document is known to the process.
	JobState string `json:"job_state,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDocumentsResponse wraps a page of documents and pagination information.
type ListDocumentsResponse struct {
	Documents  []domain.Document `json:"documents"`
	Pagination Pagination        `json:"pagination"`
}

// DownloadResponse carries a presigned, time-limited download URL.
type DownloadResponse struct {
	URL string `json:"url"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failDocError translates document service errors into HTTP responses.
func failDocError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
	case errors.Is(err, services.ErrServiceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
	case errors.Is(err, services.ErrInvalidState):
		fail(c, http.StatusConflict, ErrCodeInvalidState, "document is already queued or processing")
	case errors.Is(err, services.ErrDuplicateDocument):
		fail(c, http.StatusConflict, ErrCodeConflict, "an identical document already exists for this service")
	case errors.Is(err, services.ErrNotPDF):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFile, "only PDF files are accepted")
	case errors.Is(err, services.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file exceeds the upload size limit")
	case errors.Is(err, services.ErrIngestionBusy):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "ingestion queue is full, retry later")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// UploadDocument accepts a multipart form with fields:
//   - file       (required) the PDF to ingest
//   - service_id (required) owning service id
//   - title      (optional) display title; derived from the filename when empty
//
// On success it returns 202 Accepted with the PENDING document; clients poll
// GET /documents/{id} until status becomes READY or ERROR.
func (h *Handlers) UploadDocument(c *gin.Context) {
	serviceID := utils.AtoiDefault(c.PostForm("service_id"), 0)
	if serviceID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service_id must be a positive integer")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}

	doc, err := h.docSvc.Upload(
		c.Request.Context(),
		serviceID,
		c.PostForm("title"),
		fh.Filename,
		fh.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		failDocError(c, err)
		return
	}
	ok(c, http.StatusAccepted, DocumentResponse{Document: *doc, JobState: string(ingest.JobQueued)})
}

// ListDocuments returns a page of documents, optionally filtered by
// ?service_id=.
func (h *Handlers) ListDocuments(c *gin.Context) {
	page, pageSize := clampPagination(c)
	serviceID := utils.AtoiDefault(c.Query("service_id"), 0)

	items, total, err := h.docSvc.ListPage(c.Request.Context(), serviceID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDocumentsResponse{
		Documents: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDocument returns a single document with its ingestion job state. This
// is the status-polling endpoint for uploads and reprocessing.
func (h *Handlers) GetDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	doc, state, err := h.docSvc.Get(c.Request.Context(), id)
	if err != nil {
		failDocError(c, err)
		return
	}
	ok(c, http.StatusOK, DocumentResponse{Document: *doc, JobState: string(state)})
}

// ReprocessDocument schedules a fresh ingestion run for a READY or ERROR
// document. Returns 202 Accepted; progress is observed via GetDocument.
func (h *Handlers) ReprocessDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	if err := h.docSvc.Reprocess(c.Request.Context(), id); err != nil {
		failDocError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// DownloadDocument returns a presigned URL for the original uploaded file.
func (h *Handlers) DownloadDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	url, err := h.docSvc.DownloadURL(c.Request.Context(), id)
	if err != nil {
		failDocError(c, err)
		return
	}
	ok(c, http.StatusOK, DownloadResponse{URL: url})
}

// DeleteDocument soft-deletes a document; its chunks stop matching
// retrieval immediately.
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	if err := h.docSvc.Delete(c.Request.Context(), id); err != nil {
		failDocError(c, err)
		return
	}
	noContent(c)
}
