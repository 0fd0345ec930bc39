package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scanflow/internal/domain"
	"scanflow/internal/port"
)

type batchAuditRepo struct {
	db *sqlx.DB
}

// NewBatchAuditRepo creates a new PostgreSQL-backed BatchAuditLog.
func NewBatchAuditRepo(db *sqlx.DB) port.BatchAuditLog {
	return &batchAuditRepo{db: db}
}

func (r *batchAuditRepo) Log(ctx context.Context, batchID uuid.UUID, level domain.AuditLevel, message string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO batch_audit_log (id, batch_id, level, message)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), batchID, level, message)
	if err != nil {
		return fmt.Errorf("batchAuditRepo.Log: %w", err)
	}
	return nil
}

func (r *batchAuditRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BatchAuditEntry, error) {
	var entries []domain.BatchAuditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, batch_id, level, message, created_at
		 FROM batch_audit_log
		 WHERE batch_id = $1
		 ORDER BY created_at`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("batchAuditRepo.ListByBatch: %w", err)
	}
	return entries, nil
}
