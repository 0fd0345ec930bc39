package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"scanflow/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row.
var columns = []string{
	"Document ID",
	"Type",
	"State",
	"Supplier Name",
	"Supplier Code",
	"Supplier Tax ID",
	"Invoice Number",
	"Delivery Note Number",
	"Purchase Order Number",
	"Document Date",
	"Referenced Delivery Notes",
	"Pages",
	"Page Count",
	"Confidence",
	"Linked Invoice",
	"Artifact Key",
	"Created At",
}

// Writer wraps csv.Writer for exporting a batch's documents as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteDocuments converts a batch's documents to CSV rows and writes them.
func (w *Writer) WriteDocuments(docs []domain.Document) error {
	for i := range docs {
		if err := w.csv.Write(documentToRow(&docs[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func documentToRow(doc *domain.Document) []string {
	row := make([]string, len(columns))
	row[0] = doc.ID.String()
	row[1] = string(doc.Type)
	row[2] = string(doc.State)
	row[3] = doc.SupplierName
	row[4] = doc.SupplierCode
	row[5] = doc.SupplierTaxID
	row[6] = doc.InvoiceNumber
	row[7] = doc.DeliveryNoteNumber
	row[8] = doc.PurchaseOrderNumber
	row[9] = formatDate(doc.DocumentDate)
	row[10] = strings.Join(doc.ReferencedDeliveryNotes, " ")
	row[11] = formatPages(doc.Pages)
	row[12] = strconv.Itoa(len(doc.Pages))
	row[13] = strconv.FormatFloat(doc.Confidence, 'f', 3, 64)
	if doc.LinkedInvoiceID != nil {
		row[14] = doc.LinkedInvoiceID.String()
	}
	row[15] = doc.ArtifactKey
	row[16] = doc.CreatedAt.Format(time.RFC3339)
	return row
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, " ")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a batch source name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized download filename with the given
// extension, e.g. batch_2026-08-30.csv.
func BuildFilename(sourceName, ext string) string {
	sanitized := SanitizeFilename(strings.TrimSuffix(sourceName, ".pdf"))
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}
