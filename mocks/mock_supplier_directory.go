package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanflow/internal/domain"
)

// MockSupplierDirectory is a mock implementation of port.SupplierDirectory.
type MockSupplierDirectory struct {
	mock.Mock
}

func (m *MockSupplierDirectory) Match(ctx context.Context, name string) (*domain.Supplier, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Supplier), args.Error(1)
}
