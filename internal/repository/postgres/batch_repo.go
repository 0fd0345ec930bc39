package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scanflow/internal/domain"
	"scanflow/internal/port"
)

type batchRepo struct {
	db *sqlx.DB
}

// NewBatchRepo creates a new PostgreSQL-backed BatchRepository.
func NewBatchRepo(db *sqlx.DB) port.BatchRepository {
	return &batchRepo{db: db}
}

type batchRow struct {
	ID             uuid.UUID `db:"id"`
	SourceFile     string    `db:"source_file"`
	SourcePath     string    `db:"source_path"`
	TotalPages     int       `db:"total_pages"`
	TotalDocuments int       `db:"total_documents"`
	State          string    `db:"state"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *batchRow) toDomain() domain.Batch {
	return domain.Batch{
		ID:             r.ID,
		SourceFile:     r.SourceFile,
		SourcePath:     r.SourcePath,
		TotalPages:     r.TotalPages,
		TotalDocuments: r.TotalDocuments,
		State:          domain.BatchState(r.State),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type documentRow struct {
	ID                      uuid.UUID  `db:"id"`
	BatchID                 uuid.UUID  `db:"batch_id"`
	DocType                 string     `db:"doc_type"`
	SupplierName            string     `db:"supplier_name"`
	SupplierCode            string     `db:"supplier_code"`
	SupplierTaxID           string     `db:"supplier_tax_id"`
	InvoiceNumber           string     `db:"invoice_number"`
	DeliveryNoteNumber      string     `db:"delivery_note_number"`
	PurchaseOrderNumber     string     `db:"purchase_order_number"`
	DocumentDate            *time.Time `db:"document_date"`
	ReferencedDeliveryNotes []byte     `db:"referenced_delivery_notes"`
	Pages                   []byte     `db:"pages"`
	FirstPage               int        `db:"first_page"`
	Confidence              float64    `db:"confidence"`
	State                   string     `db:"state"`
	LinkedInvoiceID         *uuid.UUID `db:"linked_invoice_id"`
	ArtifactKey             string     `db:"artifact_key"`
	CreatedAt               time.Time  `db:"created_at"`
}

func (r *documentRow) toDomain() (domain.Document, error) {
	doc := domain.Document{
		ID:                  r.ID,
		BatchID:             r.BatchID,
		Type:                domain.DocumentType(r.DocType),
		SupplierName:        r.SupplierName,
		SupplierCode:        r.SupplierCode,
		SupplierTaxID:       r.SupplierTaxID,
		InvoiceNumber:       r.InvoiceNumber,
		DeliveryNoteNumber:  r.DeliveryNoteNumber,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		DocumentDate:        r.DocumentDate,
		Confidence:          r.Confidence,
		State:               domain.ReviewState(r.State),
		LinkedInvoiceID:     r.LinkedInvoiceID,
		ArtifactKey:         r.ArtifactKey,
		CreatedAt:           r.CreatedAt,
	}
	if len(r.Pages) > 0 {
		if err := json.Unmarshal(r.Pages, &doc.Pages); err != nil {
			return doc, fmt.Errorf("decoding pages: %w", err)
		}
	}
	if len(r.ReferencedDeliveryNotes) > 0 {
		if err := json.Unmarshal(r.ReferencedDeliveryNotes, &doc.ReferencedDeliveryNotes); err != nil {
			return doc, fmt.Errorf("decoding referenced notes: %w", err)
		}
	}
	return doc, nil
}

func (r *batchRepo) Create(ctx context.Context, batch *domain.Batch) error {
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO batches (id, source_file, source_path, total_pages, total_documents, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		batch.ID, batch.SourceFile, batch.SourcePath, batch.TotalPages, batch.TotalDocuments,
		batch.State, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("batchRepo.Create: %w", err)
	}
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var row batchRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("batchRepo.GetByID: %w", err)
	}

	batch := row.toDomain()
	docs, err := r.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	batch.Documents = docs
	return &batch, nil
}

func (r *batchRepo) List(ctx context.Context, offset, limit int) ([]domain.Batch, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM batches`); err != nil {
		return nil, 0, fmt.Errorf("batchRepo.List count: %w", err)
	}

	var rows []batchRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM batches ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("batchRepo.List: %w", err)
	}

	batches := make([]domain.Batch, len(rows))
	for i := range rows {
		batches[i] = rows[i].toDomain()
	}
	return batches, total, nil
}

func (r *batchRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Batch, error) {
	var rows []batchRow
	err := r.db.SelectContext(ctx, &rows,
		`UPDATE batches SET state = $1, updated_at = now()
		 WHERE id IN (
		     SELECT id FROM batches
		     WHERE state = $2
		     ORDER BY created_at
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		domain.BatchStateProcessing, domain.BatchStateQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("batchRepo.ClaimQueued: %w", err)
	}

	batches := make([]domain.Batch, len(rows))
	for i := range rows {
		batches[i] = rows[i].toDomain()
	}
	return batches, nil
}

func (r *batchRepo) UpdateState(ctx context.Context, id uuid.UUID, state domain.BatchState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE batches SET state = $1, updated_at = now() WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("batchRepo.UpdateState: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveResults stores the batch's documents and finalizes its state in one
// transaction. Unlinked documents go in first so the linked-invoice foreign
// key always resolves.
func (r *batchRepo) SaveResults(ctx context.Context, batch *domain.Batch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveResults: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE batches SET state = $1, total_documents = $2, updated_at = now() WHERE id = $3`,
		batch.State, len(batch.Documents), batch.ID)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveResults batch: %w", err)
	}

	for pass := 0; pass < 2; pass++ {
		for i := range batch.Documents {
			doc := &batch.Documents[i]
			linked := doc.LinkedInvoiceID != nil
			if (pass == 0) == linked {
				continue
			}
			if err := insertDocument(ctx, tx, doc); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batchRepo.SaveResults commit: %w", err)
	}
	return nil
}

func insertDocument(ctx context.Context, tx *sqlx.Tx, doc *domain.Document) error {
	pagesJSON, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveResults encoding pages: %w", err)
	}
	refs := doc.ReferencedDeliveryNotes
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveResults encoding referenced notes: %w", err)
	}
	firstPage := 0
	if len(doc.Pages) > 0 {
		firstPage = doc.Pages[0]
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (
		     id, batch_id, doc_type, supplier_name, supplier_code, supplier_tax_id,
		     invoice_number, delivery_note_number, purchase_order_number, document_date,
		     referenced_delivery_notes, pages, first_page, confidence, state,
		     linked_invoice_id, artifact_key, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		doc.ID, doc.BatchID, doc.Type, doc.SupplierName, doc.SupplierCode, doc.SupplierTaxID,
		doc.InvoiceNumber, doc.DeliveryNoteNumber, doc.PurchaseOrderNumber, doc.DocumentDate,
		refsJSON, pagesJSON, firstPage, doc.Confidence, doc.State,
		doc.LinkedInvoiceID, doc.ArtifactKey, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveResults document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *batchRepo) ListDocuments(ctx context.Context, batchID uuid.UUID) ([]domain.Document, error) {
	var rows []documentRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM documents WHERE batch_id = $1 ORDER BY first_page`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batchRepo.ListDocuments: %w", err)
	}

	docs := make([]domain.Document, len(rows))
	for i := range rows {
		doc, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("batchRepo.ListDocuments: %w", err)
		}
		docs[i] = doc
	}
	return docs, nil
}

func (r *batchRepo) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("batchRepo.GetDocument: %w", err)
	}
	doc, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("batchRepo.GetDocument: %w", err)
	}
	return &doc, nil
}
