package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"scanflow/internal/analysis"
	"scanflow/internal/classifier"
	"scanflow/internal/classifier/openai"
	"scanflow/internal/config"
	"scanflow/internal/handler"
	"scanflow/internal/merging"
	"scanflow/internal/pdfops"
	"scanflow/internal/pipeline"
	"scanflow/internal/raster"
	"scanflow/internal/repository/postgres"
	"scanflow/internal/router"
	"scanflow/internal/service"
	s3storage "scanflow/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	batchRepo := postgres.NewBatchRepo(db)
	auditLog := postgres.NewBatchAuditRepo(db)
	suppliers := postgres.NewSupplierRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize pipeline stages
	buyerFilter := classifier.NewBuyerFilter(cfg.Buyer.NamePatterns, cfg.Buyer.TaxIDs)
	pageClassifier := openai.NewClassifier(&cfg.Classifier, buyerFilter)
	analyzer := analysis.NewAnalyzer(pageClassifier, analysis.Config{
		MaxConcurrent:   cfg.Processing.MaxConcurrent,
		RetryConcurrent: cfg.Processing.RetryConcurrent,
		MaxRetries:      cfg.Processing.MaxRetries,
		BackoffBase:     time.Duration(cfg.Processing.BackoffBaseMillis) * time.Millisecond,
		CallTimeout:     time.Duration(cfg.Classifier.TimeoutSecs) * time.Second,
		LowConfidence:   cfg.Processing.LowConfidence,
	})
	composer := pdfops.NewComposer()
	merger := merging.NewMerger(composer)
	rasterizer := raster.NewRasterizer(cfg.Processing.RasterQuality)

	batchSvc := pipeline.NewBatchService(
		batchRepo, auditLog, rasterizer, analyzer, merger, composer, suppliers, s3Client, cfg)

	// Initialize handlers
	batchH := handler.NewBatchHandler(batchSvc, batchRepo, auditLog, cfg)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(batchH, healthH, cfg.CORS.AllowedOrigins)

	// Start the queue worker
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewBatchQueueWorker(batchRepo, batchSvc, service.BatchQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		Concurrency:  cfg.Queue.Concurrency,
		BatchTimeout: time.Duration(cfg.Processing.BatchTimeoutMinutes) * time.Minute,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	log.Printf("Server starting on %s", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Printf("shutdown signal received")
		<-workerDone
		return nil
	}
}
