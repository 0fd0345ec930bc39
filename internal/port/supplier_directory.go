package port

import (
	"context"

	"scanflow/internal/domain"
)

// SupplierDirectory resolves an extracted supplier name against the
// supplier master. Returns domain.ErrNotFound when nothing matches.
type SupplierDirectory interface {
	Match(ctx context.Context, name string) (*domain.Supplier, error)
}
