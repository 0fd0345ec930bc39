package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scanflow/internal/analysis"
	"scanflow/internal/config"
	"scanflow/internal/domain"
	"scanflow/internal/merging"
	"scanflow/internal/port"
	"scanflow/mocks"
)

type serviceMocks struct {
	repo       *mocks.MockBatchRepository
	audit      *mocks.MockBatchAuditLog
	rasterizer *mocks.MockPageRasterizer
	classifier *mocks.MockPageClassifier
	composer   *mocks.MockPageComposer
	suppliers  *mocks.MockSupplierDirectory
	storage    *mocks.MockObjectStorage
}

func newTestService(t *testing.T) (*BatchService, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		repo:       new(mocks.MockBatchRepository),
		audit:      new(mocks.MockBatchAuditLog),
		rasterizer: new(mocks.MockPageRasterizer),
		classifier: new(mocks.MockPageClassifier),
		composer:   new(mocks.MockPageComposer),
		suppliers:  new(mocks.MockSupplierDirectory),
		storage:    new(mocks.MockObjectStorage),
	}
	cfg := &config.Config{}
	cfg.Processing.ReviewThreshold = 0.7
	cfg.S3.Bucket = "test-bucket"
	cfg.S3.UploadWorkers = 2
	cfg.S3.PresignExpiry = 3600

	analyzer := analysis.NewAnalyzer(m.classifier, analysis.Config{
		MaxConcurrent:   2,
		RetryConcurrent: 1,
		MaxRetries:      1,
		BackoffBase:     time.Millisecond,
		CallTimeout:     time.Second,
		LowConfidence:   0.6,
	})
	merger := merging.NewMerger(m.composer)

	svc := NewBatchService(m.repo, m.audit, m.rasterizer, analyzer, merger,
		m.composer, m.suppliers, m.storage, cfg)
	return svc, m
}

func TestCreateBatch_QueuesBatch(t *testing.T) {
	svc, m := newTestService(t)
	m.composer.On("PageCount", "/incoming/scan.pdf").Return(5, nil)
	m.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.audit.On("Log", mock.Anything, mock.Anything, domain.AuditInfo, mock.Anything).Return(nil)

	batch, err := svc.CreateBatch(context.Background(), "scan.pdf", "/incoming/scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStateQueued, batch.State)
	assert.Equal(t, 5, batch.TotalPages)
	assert.Equal(t, "scan.pdf", batch.SourceFile)
	m.repo.AssertExpectations(t)
}

func TestCreateBatch_EmptyPDF(t *testing.T) {
	svc, m := newTestService(t)
	m.composer.On("PageCount", mock.Anything).Return(0, nil)

	_, err := svc.CreateBatch(context.Background(), "empty.pdf", "/incoming/empty.pdf")
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBatch_PageCountFailure(t *testing.T) {
	svc, m := newTestService(t)
	m.composer.On("PageCount", mock.Anything).Return(0, errors.New("not a PDF"))

	_, err := svc.CreateBatch(context.Background(), "bad.pdf", "/incoming/bad.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")
}

func TestProcessBatch_HappyPath(t *testing.T) {
	svc, m := newTestService(t)
	batch := &domain.Batch{
		ID:         uuid.New(),
		SourceFile: "scan.pdf",
		SourcePath: "/incoming/scan.pdf",
		TotalPages: 1,
		State:      domain.BatchStateProcessing,
	}

	m.repo.On("UpdateState", mock.Anything, batch.ID, domain.BatchStateProcessing).Return(nil)
	m.audit.On("Log", mock.Anything, batch.ID, domain.AuditInfo, mock.Anything).Return(nil)
	m.rasterizer.On("RasterizePages", mock.Anything, batch.SourcePath, mock.Anything).
		Return([]string{"p1.jpg"}, nil)
	m.classifier.On("ClassifyPage", mock.Anything, mock.Anything).Return(&domain.PageResult{
		PageNumber:              1,
		Type:                    domain.DocTypeInvoice,
		SupplierName:            "Carnes del Norte",
		InvoiceNumber:           "F-1",
		ReferencedDeliveryNotes: []string{"ALB-1"},
		Confidence:              0.92,
	}, nil)
	m.composer.On("Compose", mock.Anything, batch.SourcePath, []int{1}, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(3), []byte("%PDF-1.7"), 0o644))
		}).Return(nil)
	m.suppliers.On("Match", mock.Anything, "Carnes del Norte").
		Return(&domain.Supplier{Code: "S-042", Name: "Carnes del Norte", TaxID: "A99999999"}, nil)
	m.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "test-bucket" && strings.HasPrefix(in.Key, "batches/"+batch.ID.String())
	})).Return(&port.UploadOutput{}, nil)

	var saved *domain.Batch
	m.repo.On("SaveResults", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Batch) }).Return(nil)

	require.NoError(t, svc.ProcessBatch(context.Background(), batch))

	require.NotNil(t, saved)
	assert.Equal(t, domain.BatchStatePendingReview, saved.State)
	require.Len(t, saved.Documents, 1)
	doc := saved.Documents[0]
	assert.Equal(t, "S-042", doc.SupplierCode)
	assert.Equal(t, "A99999999", doc.SupplierTaxID)
	assert.NotEmpty(t, doc.ArtifactKey)
	m.repo.AssertExpectations(t)
	m.storage.AssertExpectations(t)
}

func TestProcessBatch_RasterizeFailureArchives(t *testing.T) {
	svc, m := newTestService(t)
	batch := &domain.Batch{ID: uuid.New(), SourcePath: "/incoming/scan.pdf", TotalPages: 2}

	m.repo.On("UpdateState", mock.Anything, batch.ID, domain.BatchStateProcessing).Return(nil)
	m.repo.On("UpdateState", mock.Anything, batch.ID, domain.BatchStateArchived).Return(nil)
	m.audit.On("Log", mock.Anything, batch.ID, domain.AuditInfo, mock.Anything).Return(nil)
	m.audit.On("Log", mock.Anything, batch.ID, domain.AuditError, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "rasterize failed")
	})).Return(nil)
	m.rasterizer.On("RasterizePages", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("mupdf: cannot open"))

	err := svc.ProcessBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rasterize")
	m.repo.AssertExpectations(t)
	m.audit.AssertExpectations(t)
	m.repo.AssertNotCalled(t, "SaveResults", mock.Anything, mock.Anything)
}

func TestProcessBatch_UploadFailureArchives(t *testing.T) {
	svc, m := newTestService(t)
	batch := &domain.Batch{ID: uuid.New(), SourcePath: "/incoming/scan.pdf", TotalPages: 1}

	m.repo.On("UpdateState", mock.Anything, batch.ID, mock.Anything).Return(nil)
	m.audit.On("Log", mock.Anything, batch.ID, mock.Anything, mock.Anything).Return(nil)
	m.rasterizer.On("RasterizePages", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{"p1.jpg"}, nil)
	m.classifier.On("ClassifyPage", mock.Anything, mock.Anything).Return(&domain.PageResult{
		PageNumber: 1, Type: domain.DocTypeDeliveryNote, DeliveryNoteNumber: "ALB-1",
		SupplierName: "Acme", Confidence: 0.9,
	}, nil)
	m.composer.On("Compose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(3), []byte("%PDF-1.7"), 0o644))
		}).Return(nil)
	m.suppliers.On("Match", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	m.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	err := svc.ProcessBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
	m.repo.AssertCalled(t, "UpdateState", mock.Anything, batch.ID, domain.BatchStateArchived)
	m.repo.AssertNotCalled(t, "SaveResults", mock.Anything, mock.Anything)
}

func TestArtifactURL_LinkedNoteResolvesToInvoice(t *testing.T) {
	svc, m := newTestService(t)
	invID := uuid.New()
	noteID := uuid.New()

	m.repo.On("GetDocument", mock.Anything, noteID).
		Return(&domain.Document{ID: noteID, Type: domain.DocTypeDeliveryNote, LinkedInvoiceID: &invID}, nil)
	m.repo.On("GetDocument", mock.Anything, invID).
		Return(&domain.Document{ID: invID, Type: domain.DocTypeInvoice, ArtifactKey: "batches/x/documents/y.pdf"}, nil)
	m.storage.On("GetPresignedURL", mock.Anything, "test-bucket", "batches/x/documents/y.pdf", int64(3600)).
		Return("https://signed.example/doc.pdf", nil)

	url, err := svc.ArtifactURL(context.Background(), noteID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/doc.pdf", url)
}

func TestArtifactURL_NoArtifact(t *testing.T) {
	svc, m := newTestService(t)
	docID := uuid.New()
	m.repo.On("GetDocument", mock.Anything, docID).
		Return(&domain.Document{ID: docID, Type: domain.DocTypeUnknown}, nil)

	_, err := svc.ArtifactURL(context.Background(), docID)
	assert.ErrorIs(t, err, domain.ErrNoArtifact)
}
