package raster

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"scanflow/internal/port"
)

// Rasterizer implements port.PageRasterizer with MuPDF via go-fitz.
type Rasterizer struct {
	quality int
}

// NewRasterizer creates a Rasterizer writing JPEGs at the given quality.
func NewRasterizer(quality int) *Rasterizer {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Rasterizer{quality: quality}
}

// RasterizePages renders every page of the PDF into outputDir as
// page_001.jpg, page_002.jpg, ... and returns the paths in page order.
func (r *Rasterizer) RasterizePages(ctx context.Context, pdfPath, outputDir string) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("raster.RasterizePages: opening %s: %w", pdfPath, err)
	}
	defer doc.Close()

	paths := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("raster.RasterizePages: %w", err)
		}

		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("raster.RasterizePages: page %d: %w", i+1, err)
		}

		path := filepath.Join(outputDir, fmt.Sprintf("page_%03d.jpg", i+1))
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("raster.RasterizePages: %w", err)
		}
		if err := jpeg.Encode(f, img, &jpeg.Options{Quality: r.quality}); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("raster.RasterizePages: encoding page %d: %w", i+1, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("raster.RasterizePages: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var _ port.PageRasterizer = (*Rasterizer)(nil)
