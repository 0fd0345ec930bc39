package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scanflow/internal/domain"
	"scanflow/internal/port"
	"scanflow/mocks"
)

func fastConfig() Config {
	return Config{
		MaxConcurrent:   4,
		RetryConcurrent: 2,
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		CallTimeout:     time.Second,
		LowConfidence:   0.6,
	}
}

func forPage(n int) interface{} {
	return mock.MatchedBy(func(in port.ClassifyInput) bool { return in.PageNumber == n })
}

func invoiceResult(page int, conf float64, refs ...string) *domain.PageResult {
	return &domain.PageResult{
		PageNumber:              page,
		Type:                    domain.DocTypeInvoice,
		SupplierName:            "Acme",
		InvoiceNumber:           "F-1",
		ReferencedDeliveryNotes: refs,
		Confidence:              conf,
	}
}

func TestAnalyzePages_EmptyBatch(t *testing.T) {
	a := NewAnalyzer(new(mocks.MockPageClassifier), fastConfig())
	_, err := a.AnalyzePages(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestAnalyzePages_ResultsStayInPageOrder(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	for p := 1; p <= 3; p++ {
		cl.On("ClassifyPage", mock.Anything, forPage(p)).
			Return(invoiceResult(p, 0.9, "ALB-1"), nil)
	}

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg", "p2.jpg", "p3.jpg"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.PageNumber)
	}
	cl.AssertExpectations(t)
}

func TestAnalyzePages_RetryExhaustionDegradesToUnknown(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	cl.On("ClassifyPage", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Times(3)
	// Exhausted pages are unknown with zero confidence, so escalation
	// re-attempts them with the full retry allowance.
	cl.On("ClassifyPage", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.DocTypeUnknown, results[0].Type)
	assert.Zero(t, results[0].Confidence)
	assert.Equal(t, 1, results[0].PageNumber)
}

func TestAnalyzePages_TransientFailureRecovers(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	cl.On("ClassifyPage", mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	cl.On("ClassifyPage", mock.Anything, mock.Anything).
		Return(invoiceResult(1, 0.95, "ALB-7"), nil)

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, domain.DocTypeInvoice, results[0].Type)
	assert.InDelta(t, 0.95, results[0].Confidence, 1e-9)
}

func TestAnalyzePages_LowConfidenceEscalatesAtHighDetail(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	lowDetail := mock.MatchedBy(func(in port.ClassifyInput) bool { return in.Detail == domain.DetailLow })
	highDetail := mock.MatchedBy(func(in port.ClassifyInput) bool { return in.Detail == domain.DetailHigh })

	weak := &domain.PageResult{PageNumber: 1, Type: domain.DocTypeDeliveryNote, DeliveryNoteNumber: "ALB-3", Confidence: 0.3}
	strong := &domain.PageResult{PageNumber: 1, Type: domain.DocTypeDeliveryNote, DeliveryNoteNumber: "ALB-3", SupplierName: "Acme", Confidence: 0.9}

	cl.On("ClassifyPage", mock.Anything, lowDetail).Return(weak, nil).Once()
	cl.On("ClassifyPage", mock.Anything, highDetail).Return(strong, nil).Once()

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, results[0].Confidence, 1e-9)
	assert.Equal(t, "Acme", results[0].SupplierName)
	cl.AssertExpectations(t)
}

func TestAnalyzePages_InvoiceWithoutRefsEscalatesWithHint(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	first := invoiceResult(1, 0.9) // confident, but no referenced notes
	second := invoiceResult(1, 0.7, "ALB-1", "ALB-2")

	cl.On("ClassifyPage", mock.Anything, mock.MatchedBy(func(in port.ClassifyInput) bool {
		return in.Detail == domain.DetailLow
	})).Return(first, nil).Once()
	cl.On("ClassifyPage", mock.Anything, mock.MatchedBy(func(in port.ClassifyInput) bool {
		return in.Detail == domain.DetailHigh && in.Hint != ""
	})).Return(second, nil).Once()

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg"})
	require.NoError(t, err)
	// Lower confidence, but strictly more referenced numbers: accepted.
	assert.Equal(t, []string{"ALB-1", "ALB-2"}, results[0].ReferencedDeliveryNotes)
	cl.AssertExpectations(t)
}

func TestAnalyzePages_WorseEscalationDiscarded(t *testing.T) {
	cl := new(mocks.MockPageClassifier)
	first := &domain.PageResult{PageNumber: 1, Type: domain.DocTypeDeliveryNote, SupplierName: "Acme", DeliveryNoteNumber: "ALB-1", Confidence: 0.5}
	worse := &domain.PageResult{PageNumber: 1, Type: domain.DocTypeUnknown, Confidence: 0.2}

	cl.On("ClassifyPage", mock.Anything, mock.MatchedBy(func(in port.ClassifyInput) bool {
		return in.Detail == domain.DetailLow
	})).Return(first, nil).Once()
	cl.On("ClassifyPage", mock.Anything, mock.MatchedBy(func(in port.ClassifyInput) bool {
		return in.Detail == domain.DetailHigh
	})).Return(worse, nil).Once()

	a := NewAnalyzer(cl, fastConfig())
	results, err := a.AnalyzePages(context.Background(), []string{"p1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", results[0].SupplierName)
	assert.InDelta(t, 0.5, results[0].Confidence, 1e-9)
}

func TestBetterResult(t *testing.T) {
	base := &domain.PageResult{Confidence: 0.5, SupplierName: "Acme", ReferencedDeliveryNotes: []string{"A"}}

	assert.True(t, betterResult(base, &domain.PageResult{Confidence: 0.5}), "equal confidence is enough")
	assert.True(t, betterResult(base, &domain.PageResult{Confidence: 0.9}))
	assert.True(t, betterResult(base, &domain.PageResult{Confidence: 0.1, ReferencedDeliveryNotes: []string{"A", "B"}}))
	assert.False(t, betterResult(base, &domain.PageResult{Confidence: 0.4, ReferencedDeliveryNotes: []string{"A"}}))

	noSupplier := &domain.PageResult{Confidence: 0.5}
	assert.True(t, betterResult(noSupplier, &domain.PageResult{Confidence: 0.2, SupplierName: "Acme"}))
}
