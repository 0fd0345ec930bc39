package grouping

import (
	"time"

	"github.com/google/uuid"

	"scanflow/internal/domain"
)

// accumulator builds one document from a run of pages.
type accumulator struct {
	doc   domain.Document
	sum   float64
	count int
}

func newAccumulator(batchID uuid.UUID, page *domain.PageResult) *accumulator {
	acc := &accumulator{
		doc: domain.Document{
			ID:                  uuid.New(),
			BatchID:             batchID,
			Type:                page.Type,
			SupplierName:        page.SupplierName,
			SupplierTaxID:       page.SupplierTaxID,
			InvoiceNumber:       page.InvoiceNumber,
			DeliveryNoteNumber:  page.DeliveryNoteNumber,
			PurchaseOrderNumber: page.PurchaseOrderNumber,
			DocumentDate:        page.DocumentDate,
			CreatedAt:           time.Now().UTC(),
		},
	}
	acc.appendPage(page)
	return acc
}

func (a *accumulator) appendPage(page *domain.PageResult) {
	a.doc.Pages = append(a.doc.Pages, page.PageNumber)
	a.doc.PageImages = append(a.doc.PageImages, page.ImagePath)
	a.sum += page.Confidence
	a.count++

	// Later pages fill only what the earlier ones left blank.
	if a.doc.SupplierName == "" {
		a.doc.SupplierName = page.SupplierName
	}
	if a.doc.SupplierTaxID == "" {
		a.doc.SupplierTaxID = page.SupplierTaxID
	}
	if a.doc.InvoiceNumber == "" {
		a.doc.InvoiceNumber = page.InvoiceNumber
	}
	if a.doc.DeliveryNoteNumber == "" {
		a.doc.DeliveryNoteNumber = page.DeliveryNoteNumber
	}
	if a.doc.PurchaseOrderNumber == "" {
		a.doc.PurchaseOrderNumber = page.PurchaseOrderNumber
	}
	if a.doc.DocumentDate == nil {
		a.doc.DocumentDate = page.DocumentDate
	}
	for _, ref := range page.ReferencedDeliveryNotes {
		if !contains(a.doc.ReferencedDeliveryNotes, ref) {
			a.doc.ReferencedDeliveryNotes = append(a.doc.ReferencedDeliveryNotes, ref)
		}
	}
}

func (a *accumulator) close(threshold float64) domain.Document {
	a.doc.Confidence = a.sum / float64(a.count)
	a.doc.State = reviewState(&a.doc, threshold)
	return a.doc
}

// GroupPages folds the corrected page sequence into logical documents.
// A page flagged as a continuation joins the open document; any other page
// closes it and opens a new one. Every page lands in exactly one document
// and each document's pages are a contiguous ascending run.
func GroupPages(batchID uuid.UUID, pages []domain.PageResult, threshold float64) []domain.Document {
	if len(pages) == 0 {
		return nil
	}

	var docs []domain.Document
	var open *accumulator
	for i := range pages {
		page := &pages[i]
		if open != nil && page.Continuation {
			open.appendPage(page)
			continue
		}
		if open != nil {
			docs = append(docs, open.close(threshold))
		}
		open = newAccumulator(batchID, page)
	}
	docs = append(docs, open.close(threshold))
	return docs
}

// reviewState decides how a freshly grouped document enters review.
// The checks run in priority order; the first hit wins.
func reviewState(doc *domain.Document, threshold float64) domain.ReviewState {
	switch {
	case doc.Confidence < threshold:
		return domain.ReviewStateNeedsReview
	case doc.Type == domain.DocTypeUnknown:
		return domain.ReviewStateNeedsReview
	case doc.Type == domain.DocTypeInvoice && doc.InvoiceNumber == "":
		return domain.ReviewStateNeedsReview
	case doc.SupplierName == "":
		return domain.ReviewStateNeedsReview
	default:
		return domain.ReviewStateOK
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
