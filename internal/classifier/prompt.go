package classifier

import "strings"

const pagePrompt = `You are analyzing one page of a scanned batch of purchase paperwork.
The page is either a supplier invoice (factura), a delivery note (albarán), or something else.

Return ONLY a JSON object with exactly these keys:
{
  "type": "invoice" | "delivery_note" | "unknown",
  "supplier_name": string or null,
  "supplier_tax_id": string or null,
  "invoice_number": string or null,
  "delivery_note_number": string or null,
  "referenced_delivery_notes": array of strings (delivery note numbers listed on an invoice), or [],
  "purchase_order_number": string or null,
  "document_date": "YYYY-MM-DD" or null,
  "continuation": true if this page continues the previous page's document (no own document number, no supplier header, line items or totals only),
  "confidence": number between 0 and 1
}

The supplier is the party issuing the document, never the recipient.
If a field is not present on the page, use null. Do not invent values.`

// BuildPagePrompt returns the classification prompt, with an optional
// escalation hint appended for second-pass calls.
func BuildPagePrompt(hint string) string {
	if hint == "" {
		return pagePrompt
	}
	return pagePrompt + "\n\n" + strings.TrimSpace(hint)
}

// EscalationHint is the extra guidance used when re-classifying an invoice
// page that yielded no referenced delivery note numbers.
const EscalationHint = `Look carefully for delivery note (albarán) numbers referenced in the line
items or footer of the invoice. They often appear as "Albarán", "Alb.", "N. Albarán" or a column
of numbers next to dates. List every one you find in referenced_delivery_notes.`
