package merging

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"scanflow/internal/domain"
	"scanflow/internal/port"
)

// Merger writes one PDF artifact per unlinked document, pulling the pages
// out of the batch source file.
type Merger struct {
	composer port.PageComposer
}

// NewMerger creates a Merger over the given composer.
func NewMerger(composer port.PageComposer) *Merger {
	return &Merger{composer: composer}
}

// MergeBatch produces the artifact for every document that stands on its
// own. Delivery notes linked to an invoice emit nothing: their pages travel
// inside the invoice's artifact, after the invoice's own pages. Page
// numbers outside 1..totalPages are dropped silently. Each produced
// document gets its ArtifactPath set.
func (m *Merger) MergeBatch(ctx context.Context, docs []domain.Document, sourcePDF string, totalPages int, outputDir string) error {
	for i := range docs {
		doc := &docs[i]
		if doc.LinkedInvoiceID != nil {
			continue
		}

		pages := collectPages(doc, docs, totalPages)
		if len(pages) == 0 {
			log.Printf("merging.MergeBatch: document %s has no pages in range, skipping", doc.ID)
			continue
		}

		dest := filepath.Join(outputDir, fmt.Sprintf("doc_%s.pdf", shortID(doc.ID)))
		if err := m.composer.Compose(ctx, sourcePDF, pages, dest); err != nil {
			return fmt.Errorf("merging.MergeBatch: document %s: %w", doc.ID, err)
		}
		doc.ArtifactPath = dest
	}
	return nil
}

// collectPages resolves a document's final page set: its own pages
// ascending, then for invoices each linked note's pages in document order.
func collectPages(doc *domain.Document, all []domain.Document, totalPages int) []int {
	pages := filterPages(doc.Pages, totalPages)

	if doc.Type == domain.DocTypeInvoice {
		for i := range all {
			note := &all[i]
			if note.LinkedInvoiceID != nil && *note.LinkedInvoiceID == doc.ID {
				pages = append(pages, filterPages(note.Pages, totalPages)...)
			}
		}
	}
	return pages
}

func filterPages(pages []int, totalPages int) []int {
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p >= 1 && p <= totalPages {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
