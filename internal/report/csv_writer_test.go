package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scanflow/internal/domain"
)

func sampleDocuments() []domain.Document {
	invID := uuid.New()
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return []domain.Document{
		{
			ID:                      invID,
			Type:                    domain.DocTypeInvoice,
			State:                   domain.ReviewStateOK,
			SupplierName:            "Carnes del Norte",
			SupplierCode:            "S-042",
			SupplierTaxID:           "A99999999",
			InvoiceNumber:           "F-2026/0042",
			ReferencedDeliveryNotes: []string{"ALB-100", "ALB-101"},
			DocumentDate:            &date,
			Pages:                   []int{1, 2},
			Confidence:              0.923456,
			ArtifactKey:             "batches/b/documents/d.pdf",
			CreatedAt:               time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:                 uuid.New(),
			Type:               domain.DocTypeDeliveryNote,
			State:              domain.ReviewStateNeedsReview,
			DeliveryNoteNumber: "ALB-100",
			Pages:              []int{3},
			Confidence:         0.5,
			LinkedInvoiceID:    &invID,
			CreatedAt:          time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriter_RowsMatchDocuments(t *testing.T) {
	docs := sampleDocuments()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteDocuments(docs))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Document ID", rows[0][0])
	assert.Equal(t, "Created At", rows[0][16])

	inv := rows[1]
	assert.Equal(t, docs[0].ID.String(), inv[0])
	assert.Equal(t, "invoice", inv[1])
	assert.Equal(t, "ok", inv[2])
	assert.Equal(t, "ALB-100 ALB-101", inv[10])
	assert.Equal(t, "1 2", inv[11])
	assert.Equal(t, "2", inv[12])
	assert.Equal(t, "0.923", inv[13])
	assert.Equal(t, "2026-03-15", inv[9])
	assert.Empty(t, inv[14])

	note := rows[2]
	assert.Equal(t, "delivery_note", note[1])
	assert.Equal(t, docs[0].ID.String(), note[14], "linked invoice column carries the invoice id")
	assert.Empty(t, note[9], "missing date renders empty")
}

func TestWriteExcel_HeaderAndRows(t *testing.T) {
	batch := &domain.Batch{ID: uuid.New(), Documents: sampleDocuments()}

	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, batch))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := f.GetCellValue("Documents", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Document ID", got)

	typ, err := f.GetCellValue("Documents", "B2")
	require.NoError(t, err)
	assert.Equal(t, "invoice", typ)

	rows, err := f.GetRows("Documents")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "marzo_albaranes_2026", SanitizeFilename("marzo  albaranes (2026)"))
	assert.Equal(t, "scan", SanitizeFilename("__scan__"))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 200)), 100)
}

func TestBuildFilename(t *testing.T) {
	name := BuildFilename("marzo scan.pdf", "csv")
	assert.True(t, strings.HasPrefix(name, "marzo_scan_"), name)
	assert.True(t, strings.HasSuffix(name, ".csv"), name)
	assert.NotContains(t, name, ".pdf")
}
