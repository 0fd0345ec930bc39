package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"scanflow/internal/domain"
)

// BuyerFilter blanks out supplier fields when the extracted supplier is
// actually the buying organization's own letterhead.
type BuyerFilter struct {
	patterns []string
	taxIDs   map[string]struct{}
}

// NewBuyerFilter builds a filter from configured name patterns and tax ids.
func NewBuyerFilter(patterns, taxIDs []string) *BuyerFilter {
	f := &BuyerFilter{taxIDs: make(map[string]struct{}, len(taxIDs))}
	for _, p := range patterns {
		if folded := foldString(p); folded != "" {
			f.patterns = append(f.patterns, folded)
		}
	}
	for _, id := range taxIDs {
		if norm := normalizeTaxID(id); norm != "" {
			f.taxIDs[norm] = struct{}{}
		}
	}
	return f
}

// Apply nulls the supplier name and tax id on the result when either
// identifies the buyer. The result is modified in place.
func (f *BuyerFilter) Apply(result *domain.PageResult) {
	if result == nil {
		return
	}
	if f.IsBuyer(result.SupplierName, result.SupplierTaxID) {
		result.SupplierName = ""
		result.SupplierTaxID = ""
	}
}

// IsBuyer reports whether the given supplier name or tax id matches the
// buying organization.
func (f *BuyerFilter) IsBuyer(name, taxID string) bool {
	if taxID != "" {
		if _, ok := f.taxIDs[normalizeTaxID(taxID)]; ok {
			return true
		}
	}
	if name == "" {
		return false
	}
	folded := foldString(name)
	for _, p := range f.patterns {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldString lowercases and strips diacritics so "Hernández" matches
// "HERNANDEZ".
func foldString(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func normalizeTaxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
