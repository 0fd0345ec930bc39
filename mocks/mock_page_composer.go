package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPageComposer is a mock implementation of port.PageComposer.
type MockPageComposer struct {
	mock.Mock
}

func (m *MockPageComposer) PageCount(path string) (int, error) {
	args := m.Called(path)
	return args.Int(0), args.Error(1)
}

func (m *MockPageComposer) Compose(ctx context.Context, source string, pages []int, dest string) error {
	args := m.Called(ctx, source, pages, dest)
	return args.Error(0)
}
