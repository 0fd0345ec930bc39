package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"scanflow/internal/domain"
	"scanflow/internal/port"
)

type supplierRepo struct {
	db *sqlx.DB
}

// NewSupplierRepo creates a PostgreSQL-backed SupplierDirectory. It resolves
// normalized-exact and containment matches against the supplier master;
// anything fuzzier belongs to an external directory implementation.
func NewSupplierRepo(db *sqlx.DB) port.SupplierDirectory {
	return &supplierRepo{db: db}
}

type supplierRow struct {
	Code  string `db:"code"`
	Name  string `db:"name"`
	TaxID string `db:"tax_id"`
}

func (r *supplierRepo) Match(ctx context.Context, name string) (*domain.Supplier, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, domain.ErrNotFound
	}

	var row supplierRow
	err := r.db.GetContext(ctx, &row,
		`SELECT code, name, tax_id FROM suppliers WHERE name_normalized = $1 LIMIT 1`,
		normalized)
	if err == nil {
		return &domain.Supplier{Code: row.Code, Name: row.Name, TaxID: row.TaxID}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("supplierRepo.Match: %w", err)
	}

	// Containment either way, longest master name wins.
	err = r.db.GetContext(ctx, &row,
		`SELECT code, name, tax_id FROM suppliers
		 WHERE position(name_normalized IN $1) > 0 OR position($1 IN name_normalized) > 0
		 ORDER BY length(name_normalized) DESC
		 LIMIT 1`,
		normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("supplierRepo.Match: %w", err)
	}
	return &domain.Supplier{Code: row.Code, Name: row.Name, TaxID: row.TaxID}, nil
}
