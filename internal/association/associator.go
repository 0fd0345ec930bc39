package association

import (
	"strings"

	"scanflow/internal/domain"
)

// Match tiers, strongest first.
const (
	TierExact    = "exact"
	TierDigit    = "digit"
	TierSupplier = "supplier"
)

// maxDateGapDays bounds the supplier-tier date tie-break.
const maxDateGapDays = 30

// Associate links every delivery note in docs to the invoice that references
// it, when one can be found. Links are recorded on the note's
// LinkedInvoiceID; invoices and unknown documents are never linked to
// anything. Runs only when the batch holds both kinds.
func Associate(docs []domain.Document) {
	var invoices []*domain.Document
	var notes []*domain.Document
	for i := range docs {
		switch docs[i].Type {
		case domain.DocTypeInvoice:
			invoices = append(invoices, &docs[i])
		case domain.DocTypeDeliveryNote:
			notes = append(notes, &docs[i])
		}
	}
	if len(invoices) == 0 || len(notes) == 0 {
		return
	}

	for _, note := range notes {
		if inv, _ := MatchInvoice(note, invoices); inv != nil {
			id := inv.ID
			note.LinkedInvoiceID = &id
		}
	}
}

// MatchInvoice finds the invoice a delivery note belongs to, trying the
// matcher tiers in order of strength. The returned tier names the strategy
// that produced the link; both are zero when the note stays unassociated.
func MatchInvoice(note *domain.Document, invoices []*domain.Document) (*domain.Document, string) {
	if note.DeliveryNoteNumber != "" {
		if inv := matchExact(note, invoices); inv != nil {
			return inv, TierExact
		}
		if inv := matchDigits(note, invoices); inv != nil {
			return inv, TierDigit
		}
	}
	if inv := matchSupplier(note, invoices); inv != nil {
		return inv, TierSupplier
	}
	return nil, ""
}

// matchExact compares the note number against every referenced number on
// every invoice: normalized equality first, then containment either way.
func matchExact(note *domain.Document, invoices []*domain.Document) *domain.Document {
	nn := normalizeNumber(note.DeliveryNoteNumber)
	if nn == "" {
		return nil
	}
	for _, inv := range invoices {
		for _, ref := range inv.ReferencedDeliveryNotes {
			if normalizeNumber(ref) == nn {
				return inv
			}
		}
	}
	for _, inv := range invoices {
		for _, ref := range inv.ReferencedDeliveryNotes {
			rn := normalizeNumber(ref)
			if rn == "" {
				continue
			}
			shorter := nn
			if len(rn) < len(shorter) {
				shorter = rn
			}
			if len(shorter) < 3 {
				continue
			}
			if strings.Contains(nn, rn) || strings.Contains(rn, nn) {
				return inv
			}
		}
	}
	return nil
}

// matchDigits compares digit sequences only, tolerating the prefixes and
// separators suppliers decorate their numbers with. The highest-scoring
// invoice wins; ties keep the first seen.
func matchDigits(note *domain.Document, invoices []*domain.Document) *domain.Document {
	nd := digitsOnly(note.DeliveryNoteNumber)
	if len(nd) < 3 {
		return nil
	}

	var best *domain.Document
	bestScore := 0
	for _, inv := range invoices {
		for _, ref := range inv.ReferencedDeliveryNotes {
			score := digitScore(nd, digitsOnly(ref))
			if score > bestScore {
				best = inv
				bestScore = score
			}
		}
	}
	return best
}

// digitScore rates how well two digit strings identify the same number.
// Equality scores the full length; containment (both at least 4 digits)
// scores the contained string's length; a shared trailing run of at least
// 4 digits scores the run.
func digitScore(nd, rd string) int {
	if nd == "" || rd == "" {
		return 0
	}
	if nd == rd {
		return len(nd)
	}
	if len(nd) >= 4 && len(rd) >= 4 {
		if strings.Contains(nd, rd) {
			return len(rd)
		}
		if strings.Contains(rd, nd) {
			return len(nd)
		}
	}
	if run := commonSuffixLen(nd, rd); run >= 4 {
		return run
	}
	return 0
}

func commonSuffixLen(a, b string) int {
	i, j := len(a)-1, len(b)-1
	n := 0
	for i >= 0 && j >= 0 && a[i] == b[j] {
		n++
		i--
		j--
	}
	return n
}

// matchSupplier is the fallback for notes whose number matched nothing (or
// that carry no number at all): same supplier, disambiguated by date.
func matchSupplier(note *domain.Document, invoices []*domain.Document) *domain.Document {
	var candidates []*domain.Document
	for _, inv := range invoices {
		if sameSupplier(note, inv) {
			candidates = append(candidates, inv)
		}
	}
	switch {
	case len(candidates) == 0:
		return nil
	case len(candidates) == 1:
		return candidates[0]
	}

	if note.DocumentDate == nil {
		return nil
	}
	var best *domain.Document
	bestGap := maxDateGapDays + 1
	for _, inv := range candidates {
		if inv.DocumentDate == nil {
			continue
		}
		gap := int(note.DocumentDate.Sub(*inv.DocumentDate).Hours() / 24)
		if gap < 0 {
			gap = -gap
		}
		if gap <= maxDateGapDays && gap < bestGap {
			best = inv
			bestGap = gap
		}
	}
	return best
}

func sameSupplier(note, inv *domain.Document) bool {
	if note.SupplierTaxID != "" && inv.SupplierTaxID != "" {
		if normalizeNumber(note.SupplierTaxID) == normalizeNumber(inv.SupplierTaxID) {
			return true
		}
	}
	nn, in := normalizeName(note.SupplierName), normalizeName(inv.SupplierName)
	if nn == "" || in == "" {
		return false
	}
	return nn == in || strings.Contains(nn, in) || strings.Contains(in, nn)
}

// normalizeNumber uppercases and strips the separators suppliers put in
// document numbers.
func normalizeNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '-', '.', '/', '\t':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
