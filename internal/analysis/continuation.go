package analysis

import "scanflow/internal/domain"

// continuationConfidence is the ceiling under which a sparse page may be
// re-flagged as a continuation of its predecessor.
const continuationConfidence = 0.7

// CorrectContinuations repairs the continuation flags the classifier set on
// individual pages, using the page sequence as context. The input slice is
// never modified; the pass is idempotent.
//
// Two independent checks run per page:
//  1. A page flagged as a continuation that carries a document number of its
//     own, different from its predecessor's, starts a new document after all.
//     Both number fields count here regardless of the page's classified type:
//     extracted numbers survive even when the type tag was not recognized.
//  2. A page not flagged as a continuation, with no document number and no
//     supplier of its own, the same type as its predecessor and low
//     confidence, is most likely an overflow page and gets the flag set.
//
// The second check reads the flag as originally classified, so a flag
// cleared by the first check never feeds it.
func CorrectContinuations(pages []domain.PageResult) []domain.PageResult {
	out := make([]domain.PageResult, len(pages))
	copy(out, pages)

	for i := range out {
		if i == 0 {
			out[0].Continuation = false
			continue
		}
		prev := &pages[i-1]

		if out[i].Continuation && startsNewDocument(&out[i], prev) {
			out[i].Continuation = false
		}

		if !pages[i].Continuation &&
			prev.Type != domain.DocTypeUnknown &&
			out[i].InvoiceNumber == "" &&
			out[i].DeliveryNoteNumber == "" &&
			out[i].SupplierName == "" &&
			out[i].Type == prev.Type &&
			out[i].Confidence < continuationConfidence {
			out[i].Continuation = true
		}
	}
	return out
}

// startsNewDocument reports whether a page carries a document number that
// differs from its predecessor's in the same field.
func startsNewDocument(p, prev *domain.PageResult) bool {
	if p.InvoiceNumber != "" && p.InvoiceNumber != prev.InvoiceNumber {
		return true
	}
	return p.DeliveryNoteNumber != "" && p.DeliveryNoteNumber != prev.DeliveryNoteNumber
}
