package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scanflow/internal/config"
	"scanflow/internal/domain"
	"scanflow/internal/pipeline"
	"scanflow/internal/port"
	"scanflow/internal/report"
)

// BatchHandler exposes batch ingestion, inspection and report endpoints.
type BatchHandler struct {
	batches *pipeline.BatchService
	repo    port.BatchRepository
	audit   port.BatchAuditLog
	cfg     *config.Config
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batches *pipeline.BatchService, repo port.BatchRepository, audit port.BatchAuditLog, cfg *config.Config) *BatchHandler {
	return &BatchHandler{batches: batches, repo: repo, audit: audit, cfg: cfg}
}

// Upload handles POST /api/v1/batches. Accepts a multipart PDF upload and
// queues it for processing.
func (h *BatchHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart field 'file' is required")
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		HandleError(c, domain.ErrUnsupportedFileType)
		return
	}
	maxBytes := h.cfg.S3.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}

	if err := os.MkdirAll(h.cfg.Server.IncomingDir, 0o755); err != nil {
		HandleError(c, err)
		return
	}
	destPath := filepath.Join(h.cfg.Server.IncomingDir,
		fmt.Sprintf("%s.pdf", uuid.New()))
	if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
		HandleError(c, err)
		return
	}

	batch, err := h.batches.CreateBatch(c.Request.Context(), fileHeader.Filename, destPath)
	if err != nil {
		_ = os.Remove(destPath)
		HandleError(c, err)
		return
	}
	RespondCreated(c, batch)
}

// List handles GET /api/v1/batches
func (h *BatchHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	batches, total, err := h.repo.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, batches, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/batches/:id, returning the batch with its
// grouped documents.
func (h *BatchHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	batch, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, batch)
}

// AuditTrail handles GET /api/v1/batches/:id/audit
func (h *BatchHandler) AuditTrail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	entries, err := h.audit.ListByBatch(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, entries)
}

// ReportCSV handles GET /api/v1/batches/:id/report.csv
func (h *BatchHandler) ReportCSV(c *gin.Context) {
	batch, ok := h.loadFinishedBatch(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	buf.Write(report.BOM)
	w := report.NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		HandleError(c, err)
		return
	}
	if err := w.WriteDocuments(batch.Documents); err != nil {
		HandleError(c, err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		HandleError(c, err)
		return
	}

	filename := report.BuildFilename(batch.SourceFile, "csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ReportXLSX handles GET /api/v1/batches/:id/report.xlsx
func (h *BatchHandler) ReportXLSX(c *gin.Context) {
	batch, ok := h.loadFinishedBatch(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteExcel(&buf, batch); err != nil {
		HandleError(c, err)
		return
	}

	filename := report.BuildFilename(batch.SourceFile, "xlsx")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ArtifactURL handles GET /api/v1/documents/:id/artifact, returning a
// presigned download URL for the document's merged PDF.
func (h *BatchHandler) ArtifactURL(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	url, err := h.batches.ArtifactURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

func (h *BatchHandler) loadFinishedBatch(c *gin.Context) (*domain.Batch, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	batch, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	if batch.State == domain.BatchStateQueued || batch.State == domain.BatchStateProcessing {
		HandleError(c, domain.ErrBatchNotReady)
		return nil, false
	}
	return batch, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
