package port

import (
	"context"

	"github.com/google/uuid"

	"scanflow/internal/domain"
)

// BatchRepository persists batches and their grouped documents.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	List(ctx context.Context, offset, limit int) ([]domain.Batch, int, error)
	// ClaimQueued atomically moves up to limit queued batches to processing
	// and returns them. Concurrent workers never claim the same batch.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Batch, error)
	UpdateState(ctx context.Context, id uuid.UUID, state domain.BatchState) error
	// SaveResults stores the batch's documents and finalizes its state in
	// one transaction.
	SaveResults(ctx context.Context, batch *domain.Batch) error
	ListDocuments(ctx context.Context, batchID uuid.UUID) ([]domain.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
}

// BatchAuditLog records processing events for a batch.
type BatchAuditLog interface {
	Log(ctx context.Context, batchID uuid.UUID, level domain.AuditLevel, message string) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BatchAuditEntry, error)
}
