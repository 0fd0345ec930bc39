package domain

import (
	"time"

	"github.com/google/uuid"
)

// PageResult is the classification of a single scanned page.
type PageResult struct {
	PageNumber             int          `json:"page_number"`
	Type                   DocumentType `json:"type"`
	SupplierName           string       `json:"supplier_name,omitempty"`
	SupplierTaxID          string       `json:"supplier_tax_id,omitempty"`
	InvoiceNumber          string       `json:"invoice_number,omitempty"`
	DeliveryNoteNumber     string       `json:"delivery_note_number,omitempty"`
	ReferencedDeliveryNotes []string    `json:"referenced_delivery_notes,omitempty"`
	PurchaseOrderNumber    string       `json:"purchase_order_number,omitempty"`
	DocumentDate           *time.Time   `json:"document_date,omitempty"`
	Continuation           bool         `json:"continuation"`
	Confidence             float64      `json:"confidence"`
	ImagePath              string       `json:"-"`
}

// Document is a logical document assembled from one or more pages of a batch.
type Document struct {
	ID                      uuid.UUID    `json:"id"`
	BatchID                 uuid.UUID    `json:"batch_id"`
	Type                    DocumentType `json:"type"`
	SupplierName            string       `json:"supplier_name,omitempty"`
	SupplierCode            string       `json:"supplier_code,omitempty"`
	SupplierTaxID           string       `json:"supplier_tax_id,omitempty"`
	InvoiceNumber           string       `json:"invoice_number,omitempty"`
	DeliveryNoteNumber      string       `json:"delivery_note_number,omitempty"`
	PurchaseOrderNumber     string       `json:"purchase_order_number,omitempty"`
	DocumentDate            *time.Time   `json:"document_date,omitempty"`
	ReferencedDeliveryNotes []string     `json:"referenced_delivery_notes,omitempty"`
	Pages                   []int        `json:"pages"`
	PageImages              []string     `json:"-"`
	Confidence              float64      `json:"confidence"`
	State                   ReviewState  `json:"state"`
	LinkedInvoiceID         *uuid.UUID   `json:"linked_invoice_id,omitempty"`
	ArtifactPath            string       `json:"-"`
	ArtifactKey             string       `json:"artifact_key,omitempty"`
	CreatedAt               time.Time    `json:"created_at"`
}

// Batch is one ingested multi-page PDF and everything derived from it.
type Batch struct {
	ID             uuid.UUID  `json:"id"`
	SourceFile     string     `json:"source_file"`
	SourcePath     string     `json:"-"`
	TotalPages     int        `json:"total_pages"`
	TotalDocuments int        `json:"total_documents"`
	State          BatchState `json:"state"`
	Documents      []Document `json:"documents,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Supplier is an entry in the supplier master directory.
type Supplier struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id,omitempty"`
}

// BatchAuditEntry records a processing event for a batch.
type BatchAuditEntry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	BatchID   uuid.UUID  `db:"batch_id" json:"batch_id"`
	Level     AuditLevel `db:"level" json:"level"`
	Message   string     `db:"message" json:"message"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
