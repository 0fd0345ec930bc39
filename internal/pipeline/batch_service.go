package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scanflow/internal/analysis"
	"scanflow/internal/association"
	"scanflow/internal/config"
	"scanflow/internal/domain"
	"scanflow/internal/grouping"
	"scanflow/internal/merging"
	"scanflow/internal/port"
)

// BatchService runs the full processing pipeline for one batch: rasterize,
// classify, correct, group, associate, merge, resolve suppliers, upload,
// persist.
type BatchService struct {
	repo       port.BatchRepository
	audit      port.BatchAuditLog
	rasterizer port.PageRasterizer
	analyzer   *analysis.Analyzer
	merger     *merging.Merger
	composer   port.PageComposer
	suppliers  port.SupplierDirectory
	storage    port.ObjectStorage
	cfg        *config.Config
}

// NewBatchService wires the pipeline stages together.
func NewBatchService(
	repo port.BatchRepository,
	audit port.BatchAuditLog,
	rasterizer port.PageRasterizer,
	analyzer *analysis.Analyzer,
	merger *merging.Merger,
	composer port.PageComposer,
	suppliers port.SupplierDirectory,
	storage port.ObjectStorage,
	cfg *config.Config,
) *BatchService {
	return &BatchService{
		repo:       repo,
		audit:      audit,
		rasterizer: rasterizer,
		analyzer:   analyzer,
		merger:     merger,
		composer:   composer,
		suppliers:  suppliers,
		storage:    storage,
		cfg:        cfg,
	}
}

// CreateBatch registers an uploaded PDF as a queued batch.
func (s *BatchService) CreateBatch(ctx context.Context, sourceFile, sourcePath string) (*domain.Batch, error) {
	totalPages, err := s.composer.PageCount(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline.CreateBatch: %w", err)
	}
	if totalPages == 0 {
		return nil, domain.ErrEmptyBatch
	}

	batch := &domain.Batch{
		ID:         uuid.New(),
		SourceFile: sourceFile,
		SourcePath: sourcePath,
		TotalPages: totalPages,
		State:      domain.BatchStateQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("pipeline.CreateBatch: %w", err)
	}
	s.logAudit(ctx, batch.ID, domain.AuditInfo,
		fmt.Sprintf("batch queued: %s, %d pages", sourceFile, totalPages))
	return batch, nil
}

// ProcessBatch runs the pipeline end to end. On any stage failure the batch
// is archived with an audit entry and no documents are persisted.
func (s *BatchService) ProcessBatch(ctx context.Context, batch *domain.Batch) error {
	log.Printf("pipeline.ProcessBatch: batch %s (%s, %d pages)", batch.ID, batch.SourceFile, batch.TotalPages)

	if err := s.repo.UpdateState(ctx, batch.ID, domain.BatchStateProcessing); err != nil {
		return fmt.Errorf("pipeline.ProcessBatch: %w", err)
	}
	s.logAudit(ctx, batch.ID, domain.AuditInfo, "processing started")

	workDir, err := os.MkdirTemp("", "scanflow-batch-")
	if err != nil {
		return s.fail(ctx, batch, "workdir", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	images, err := s.rasterizer.RasterizePages(ctx, batch.SourcePath, workDir)
	if err != nil {
		return s.fail(ctx, batch, "rasterize", err)
	}

	pages, err := s.analyzer.AnalyzePages(ctx, images)
	if err != nil {
		return s.fail(ctx, batch, "analyze", err)
	}
	pages = analysis.CorrectContinuations(pages)

	docs := grouping.GroupPages(batch.ID, pages, s.cfg.Processing.ReviewThreshold)
	s.logAudit(ctx, batch.ID, domain.AuditInfo,
		fmt.Sprintf("grouped %d pages into %d documents", len(pages), len(docs)))

	association.Associate(docs)

	if err := s.merger.MergeBatch(ctx, docs, batch.SourcePath, batch.TotalPages, workDir); err != nil {
		return s.fail(ctx, batch, "merge", err)
	}

	s.resolveSuppliers(ctx, docs)

	if err := s.uploadArtifacts(ctx, batch.ID, docs); err != nil {
		return s.fail(ctx, batch, "upload", err)
	}

	batch.Documents = docs
	batch.TotalDocuments = len(docs)
	batch.State = domain.BatchStatePendingReview
	if err := s.repo.SaveResults(ctx, batch); err != nil {
		return s.fail(ctx, batch, "persist", err)
	}

	s.logAudit(ctx, batch.ID, domain.AuditInfo,
		fmt.Sprintf("processing finished: %d documents", len(docs)))
	return nil
}

// fail archives the batch and records the stage that broke it. State and
// audit writes run on a fresh context so a canceled pipeline context still
// leaves a trail.
func (s *BatchService) fail(ctx context.Context, batch *domain.Batch, stage string, cause error) error {
	log.Printf("pipeline.ProcessBatch: batch %s failed at %s: %v", batch.ID, stage, cause)

	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.UpdateState(bg, batch.ID, domain.BatchStateArchived); err != nil {
		log.Printf("pipeline.ProcessBatch: archiving batch %s: %v", batch.ID, err)
	}
	s.logAudit(bg, batch.ID, domain.AuditError, fmt.Sprintf("%s failed: %v", stage, cause))

	return fmt.Errorf("pipeline.ProcessBatch: %s: %w", stage, cause)
}

// resolveSuppliers backfills supplier codes from the master directory.
// A miss is normal; any other lookup failure is logged and skipped so
// directory trouble cannot sink a finished batch.
func (s *BatchService) resolveSuppliers(ctx context.Context, docs []domain.Document) {
	for i := range docs {
		doc := &docs[i]
		if doc.SupplierName == "" {
			continue
		}
		supplier, err := s.suppliers.Match(ctx, doc.SupplierName)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Printf("pipeline.resolveSuppliers: %q: %v", doc.SupplierName, err)
			}
			continue
		}
		doc.SupplierCode = supplier.Code
		if doc.SupplierTaxID == "" {
			doc.SupplierTaxID = supplier.TaxID
		}
	}
}

// uploadArtifacts pushes every produced artifact to object storage and
// records the key on the document.
func (s *BatchService) uploadArtifacts(ctx context.Context, batchID uuid.UUID, docs []domain.Document) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := s.cfg.S3.UploadWorkers
	if workers <= 0 {
		workers = 4
	}
	g.SetLimit(workers)

	for i := range docs {
		doc := &docs[i]
		if doc.ArtifactPath == "" {
			continue
		}
		g.Go(func() error {
			f, err := os.Open(doc.ArtifactPath)
			if err != nil {
				return fmt.Errorf("opening artifact for %s: %w", doc.ID, err)
			}
			defer func() { _ = f.Close() }()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat artifact for %s: %w", doc.ID, err)
			}

			key := fmt.Sprintf("batches/%s/documents/%s.pdf", batchID, doc.ID)
			_, err = s.storage.Upload(gctx, port.UploadInput{
				Bucket:      s.cfg.S3.Bucket,
				Key:         key,
				Body:        f,
				ContentType: "application/pdf",
				Size:        info.Size(),
			})
			if err != nil {
				return fmt.Errorf("uploading artifact %s: %w", filepath.Base(doc.ArtifactPath), err)
			}
			doc.ArtifactKey = key
			return nil
		})
	}
	return g.Wait()
}

// ArtifactURL returns a presigned download URL for a document's stored
// artifact. Linked delivery notes resolve to their invoice's artifact.
func (s *BatchService) ArtifactURL(ctx context.Context, documentID uuid.UUID) (string, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("pipeline.ArtifactURL: %w", err)
	}
	if doc.ArtifactKey == "" && doc.LinkedInvoiceID != nil {
		inv, err := s.repo.GetDocument(ctx, *doc.LinkedInvoiceID)
		if err != nil {
			return "", fmt.Errorf("pipeline.ArtifactURL: %w", err)
		}
		doc = inv
	}
	if doc.ArtifactKey == "" {
		return "", domain.ErrNoArtifact
	}
	url, err := s.storage.GetPresignedURL(ctx, s.cfg.S3.Bucket, doc.ArtifactKey, s.cfg.S3.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("pipeline.ArtifactURL: %w", err)
	}
	return url, nil
}

func (s *BatchService) logAudit(ctx context.Context, batchID uuid.UUID, level domain.AuditLevel, msg string) {
	if err := s.audit.Log(ctx, batchID, level, msg); err != nil {
		log.Printf("pipeline.logAudit: batch %s: %v", batchID, err)
	}
}
