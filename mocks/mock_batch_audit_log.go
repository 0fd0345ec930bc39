package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"scanflow/internal/domain"
)

// MockBatchAuditLog is a mock implementation of port.BatchAuditLog.
type MockBatchAuditLog struct {
	mock.Mock
}

func (m *MockBatchAuditLog) Log(ctx context.Context, batchID uuid.UUID, level domain.AuditLevel, message string) error {
	args := m.Called(ctx, batchID, level, message)
	return args.Error(0)
}

func (m *MockBatchAuditLog) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BatchAuditEntry, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BatchAuditEntry), args.Error(1)
}
