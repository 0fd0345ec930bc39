package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scanflow/internal/config"
	"scanflow/internal/domain"
	"scanflow/mocks"
)

func newTestRouter(repo *mocks.MockBatchRepository, audit *mocks.MockBatchAuditLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.S3.MaxFileSizeMB = 100
	h := NewBatchHandler(nil, repo, audit, cfg)

	r := gin.New()
	r.GET("/api/v1/batches", h.List)
	r.GET("/api/v1/batches/:id", h.GetByID)
	r.GET("/api/v1/batches/:id/audit", h.AuditTrail)
	r.GET("/api/v1/batches/:id/report.csv", h.ReportCSV)
	return r
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetBatch_OK(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	batch := &domain.Batch{
		ID:         uuid.New(),
		SourceFile: "scan.pdf",
		State:      domain.BatchStatePendingReview,
		TotalPages: 4,
	}
	repo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil)

	r := newTestRouter(repo, new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches/"+batch.ID.String())

	require.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestGetBatch_InvalidID(t *testing.T) {
	r := newTestRouter(new(mocks.MockBatchRepository), new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches/not-a-uuid")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ID", resp.Error.Code)
}

func TestGetBatch_NotFound(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	repo.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	r := newTestRouter(repo, new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches/"+uuid.NewString())

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestListBatches_PaginationClamped(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	repo.On("List", mock.Anything, 0, 20).Return([]domain.Batch{}, 0, nil)

	r := newTestRouter(repo, new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches?offset=-5&limit=9999")

	require.Equal(t, http.StatusOK, w.Code)
	repo.AssertExpectations(t)
}

func TestAuditTrail_OK(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	audit := new(mocks.MockBatchAuditLog)
	batchID := uuid.New()

	repo.On("GetByID", mock.Anything, batchID).Return(&domain.Batch{ID: batchID}, nil)
	audit.On("ListByBatch", mock.Anything, batchID).Return([]domain.BatchAuditEntry{
		{ID: uuid.New(), BatchID: batchID, Level: domain.AuditInfo, Message: "batch queued", CreatedAt: time.Now()},
	}, nil)

	r := newTestRouter(repo, audit)
	w := doRequest(r, http.MethodGet, "/api/v1/batches/"+batchID.String()+"/audit")

	require.Equal(t, http.StatusOK, w.Code)
	audit.AssertExpectations(t)
}

func TestReportCSV_BatchStillProcessing(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	batchID := uuid.New()
	repo.On("GetByID", mock.Anything, batchID).
		Return(&domain.Batch{ID: batchID, State: domain.BatchStateProcessing}, nil)

	r := newTestRouter(repo, new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches/"+batchID.String()+"/report.csv")

	require.Equal(t, http.StatusConflict, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BATCH_NOT_READY", resp.Error.Code)
}

func TestReportCSV_OK(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	batchID := uuid.New()
	batch := &domain.Batch{
		ID:         batchID,
		SourceFile: "marzo.pdf",
		State:      domain.BatchStatePendingReview,
		Documents: []domain.Document{
			{ID: uuid.New(), BatchID: batchID, Type: domain.DocTypeInvoice,
				State: domain.ReviewStateOK, InvoiceNumber: "F-1", Pages: []int{1}},
		},
	}
	repo.On("GetByID", mock.Anything, batchID).Return(batch, nil)

	r := newTestRouter(repo, new(mocks.MockBatchAuditLog))
	w := doRequest(r, http.MethodGet, "/api/v1/batches/"+batchID.String()+"/report.csv")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	body := w.Body.Bytes()
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, body[:3], "report starts with a UTF-8 BOM")
	assert.Contains(t, w.Body.String(), "Document ID")
	assert.Contains(t, w.Body.String(), "F-1")
}

func TestMapDomainError(t *testing.T) {
	status, code, _ := MapDomainError(domain.ErrFileTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "FILE_TOO_LARGE", code)

	status, code, _ = MapDomainError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", code)
}
