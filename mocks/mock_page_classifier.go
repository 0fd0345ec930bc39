package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"scanflow/internal/domain"
	"scanflow/internal/port"
)

// MockPageClassifier is a mock implementation of port.PageClassifier.
type MockPageClassifier struct {
	mock.Mock
}

func (m *MockPageClassifier) ClassifyPage(ctx context.Context, input port.ClassifyInput) (*domain.PageResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PageResult), args.Error(1)
}
