package port

import (
	"context"

	"scanflow/internal/domain"
)

// ClassifyInput describes one page image sent to the vision model.
type ClassifyInput struct {
	ImagePath  string
	PageNumber int
	Detail     domain.DetailLevel
	// Hint is extra prompt guidance for escalated calls, e.g. asking the
	// model to look harder for referenced delivery note numbers.
	Hint string
}

// PageClassifier classifies a single scanned page.
//
// A non-nil error means the call itself failed (network, HTTP status) and
// may be retried. A syntactically broken model reply is not an error: the
// adapter degrades it to an unknown-type result with zero confidence.
type PageClassifier interface {
	ClassifyPage(ctx context.Context, input ClassifyInput) (*domain.PageResult, error)
}
