package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"scanflow/internal/classifier"
	"scanflow/internal/domain"
	"scanflow/internal/port"
)

// Config holds the two-pass analysis settings.
type Config struct {
	MaxConcurrent   int
	RetryConcurrent int
	MaxRetries      int
	BackoffBase     time.Duration
	CallTimeout     time.Duration
	LowConfidence   float64
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.RetryConcurrent <= 0 {
		c.RetryConcurrent = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 90 * time.Second
	}
	if c.LowConfidence <= 0 {
		c.LowConfidence = 0.6
	}
	return c
}

// Analyzer runs the two-pass page classification over a batch.
type Analyzer struct {
	classifier port.PageClassifier
	cfg        Config
}

// NewAnalyzer creates an Analyzer over the given classifier.
func NewAnalyzer(classifier port.PageClassifier, cfg Config) *Analyzer {
	return &Analyzer{classifier: classifier, cfg: cfg.withDefaults()}
}

// AnalyzePages classifies every page image and escalates weak results.
// The returned slice is always ordered by page index and has one entry per
// input image; pages whose calls fail past all retries come back as
// unknown with zero confidence.
func (a *Analyzer) AnalyzePages(ctx context.Context, imagePaths []string) ([]domain.PageResult, error) {
	if len(imagePaths) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	results := make([]domain.PageResult, len(imagePaths))

	sem := make(chan struct{}, a.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for i, path := range imagePaths {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, fmt.Errorf("analysis.AnalyzePages: %w", ctx.Err())
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = a.classifyWithRetry(ctx, port.ClassifyInput{
				ImagePath:  path,
				PageNumber: i + 1,
				Detail:     domain.DetailLow,
			}, a.cfg.CallTimeout)
		}(i, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis.AnalyzePages: %w", err)
	}

	a.escalate(ctx, imagePaths, results)
	return results, nil
}

// escalate re-runs weak pages at high detail and keeps the better result.
func (a *Analyzer) escalate(ctx context.Context, imagePaths []string, results []domain.PageResult) {
	var targets []int
	for i := range results {
		if a.needsEscalation(&results[i]) {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return
	}
	log.Printf("analysis.Analyzer: escalating %d of %d pages", len(targets), len(results))

	sem := make(chan struct{}, a.cfg.RetryConcurrent)
	var wg sync.WaitGroup
	for _, i := range targets {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			input := port.ClassifyInput{
				ImagePath:  imagePaths[i],
				PageNumber: i + 1,
				Detail:     domain.DetailHigh,
			}
			if results[i].Type == domain.DocTypeInvoice {
				input.Hint = classifier.EscalationHint
			}
			retried := a.classifyWithRetry(ctx, input, 2*a.cfg.CallTimeout)
			if betterResult(&results[i], &retried) {
				results[i] = retried
			}
		}(i)
	}
	wg.Wait()
}

func (a *Analyzer) needsEscalation(r *domain.PageResult) bool {
	if r.Confidence < a.cfg.LowConfidence {
		return true
	}
	return r.Type == domain.DocTypeInvoice && len(r.ReferencedDeliveryNotes) == 0
}

// betterResult decides whether an escalated result replaces the original.
// A replacement must not be strictly worse: equal or higher confidence,
// more referenced note numbers, or newly found supplier identity all count.
func betterResult(old, retried *domain.PageResult) bool {
	if retried.Confidence >= old.Confidence {
		return true
	}
	if len(retried.ReferencedDeliveryNotes) > len(old.ReferencedDeliveryNotes) {
		return true
	}
	if old.SupplierName == "" && retried.SupplierName != "" {
		return true
	}
	if old.SupplierTaxID == "" && retried.SupplierTaxID != "" {
		return true
	}
	return false
}

// classifyWithRetry calls the classifier with a per-call timeout, retrying
// transport failures with doubling backoff. Exhaustion degrades the page to
// unknown so the batch can still complete.
func (a *Analyzer) classifyWithRetry(ctx context.Context, input port.ClassifyInput, timeout time.Duration) domain.PageResult {
	backoff := a.cfg.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := a.classifier.ClassifyPage(callCtx, input)
		cancel()
		if err == nil {
			result.ImagePath = input.ImagePath
			return *result
		}
		lastErr = err
		log.Printf("analysis.Analyzer: page %d attempt %d/%d failed: %v",
			input.PageNumber, attempt, a.cfg.MaxRetries, err)

		if attempt == a.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			attempt = a.cfg.MaxRetries
		}
	}

	log.Printf("analysis.Analyzer: page %d degraded to unknown: %v", input.PageNumber, lastErr)
	return domain.PageResult{
		PageNumber: input.PageNumber,
		Type:       domain.DocTypeUnknown,
		Confidence: 0.0,
		ImagePath:  input.ImagePath,
	}
}
