package domain

// DocumentType classifies a page or a grouped document.
type DocumentType string

const (
	DocTypeInvoice      DocumentType = "invoice"
	DocTypeDeliveryNote DocumentType = "delivery_note"
	DocTypeUnknown      DocumentType = "unknown"
)

// ParseDocumentType maps a classifier type tag to a DocumentType,
// defaulting to unknown for anything unrecognized.
func ParseDocumentType(s string) DocumentType {
	switch DocumentType(s) {
	case DocTypeInvoice, DocTypeDeliveryNote:
		return DocumentType(s)
	default:
		return DocTypeUnknown
	}
}

// ReviewState represents the review lifecycle of a grouped document.
type ReviewState string

const (
	ReviewStateOK          ReviewState = "ok"
	ReviewStateNeedsReview ReviewState = "needs_review"
	ReviewStateCorrected   ReviewState = "corrected"
	ReviewStateArchived    ReviewState = "archived"
)

// BatchState represents the lifecycle of an ingested batch.
type BatchState string

const (
	BatchStateQueued        BatchState = "queued"
	BatchStateProcessing    BatchState = "processing"
	BatchStatePendingReview BatchState = "pending_review"
	BatchStateArchived      BatchState = "archived"
)

// DetailLevel selects the image fidelity requested from the vision model.
type DetailLevel string

const (
	DetailLow  DetailLevel = "low"
	DetailHigh DetailLevel = "high"
)

// AuditLevel classifies a batch audit entry.
type AuditLevel string

const (
	AuditInfo  AuditLevel = "info"
	AuditError AuditLevel = "error"
)
