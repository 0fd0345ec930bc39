package pdfops

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"scanflow/internal/port"
)

// Composer implements port.PageComposer on pdfcpu.
type Composer struct {
	conf *model.Configuration
}

// NewComposer creates a Composer. Validation is relaxed because scanner
// output frequently fails strict validation.
func NewComposer() *Composer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Composer{conf: conf}
}

func (c *Composer) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdfops.PageCount: %w", err)
	}
	return n, nil
}

// Compose writes dest containing exactly the given 1-based pages of source,
// in the order given. Collect, unlike Trim, preserves ordering and repeats.
func (c *Composer) Compose(ctx context.Context, source string, pages []int, dest string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pdfops.Compose: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("pdfops.Compose: no pages selected")
	}

	selected := make([]string, len(pages))
	for i, p := range pages {
		selected[i] = strconv.Itoa(p)
	}
	if err := api.CollectFile(source, dest, selected, c.conf); err != nil {
		return fmt.Errorf("pdfops.Compose: %w", err)
	}
	return nil
}

var _ port.PageComposer = (*Composer)(nil)
