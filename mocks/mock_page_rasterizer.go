package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPageRasterizer is a mock implementation of port.PageRasterizer.
type MockPageRasterizer struct {
	mock.Mock
}

func (m *MockPageRasterizer) RasterizePages(ctx context.Context, pdfPath, outputDir string) ([]string, error) {
	args := m.Called(ctx, pdfPath, outputDir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
