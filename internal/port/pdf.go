package port

import "context"

// PageRasterizer renders PDF pages into work images for classification.
type PageRasterizer interface {
	// RasterizePages renders every page of the PDF at pdfPath into outputDir
	// and returns the image paths in page order.
	RasterizePages(ctx context.Context, pdfPath, outputDir string) ([]string, error)
}

// PageComposer performs page-accurate PDF assembly.
type PageComposer interface {
	PageCount(path string) (int, error)
	// Compose writes a new PDF at dest containing exactly the given 1-based
	// pages of source, in the order given.
	Compose(ctx context.Context, source string, pages []int, dest string) error
}
