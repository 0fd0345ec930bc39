package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"scanflow/internal/classifier"
	"scanflow/internal/config"
	"scanflow/internal/domain"
	"scanflow/internal/port"
)

const (
	apiURL = "https://api.openai.com/v1/chat/completions"
)

// Classifier implements port.PageClassifier using the OpenAI Chat Completions API.
type Classifier struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	filter   *classifier.BuyerFilter
}

// NewClassifier creates an OpenAI-based page classifier.
func NewClassifier(cfg *config.ClassifierConfig, filter *classifier.BuyerFilter) *Classifier {
	return newClassifier(cfg, filter, apiURL)
}

// NewClassifierWithEndpoint creates a classifier pointing at a custom API endpoint (for testing).
func NewClassifierWithEndpoint(cfg *config.ClassifierConfig, filter *classifier.BuyerFilter, endpoint string) *Classifier {
	return newClassifier(cfg, filter, endpoint)
}

func newClassifier(cfg *config.ClassifierConfig, filter *classifier.BuyerFilter, endpoint string) *Classifier {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Classifier{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		filter:   filter,
	}
}

func (c *Classifier) ClassifyPage(ctx context.Context, input port.ClassifyInput) (*domain.PageResult, error) {
	imageBytes, err := os.ReadFile(input.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("reading page image: %w", err)
	}

	prompt := classifier.BuildPagePrompt(input.Hint)
	detail := input.Detail
	if detail == "" {
		detail = domain.DetailLow
	}

	dataURI := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(imageBytes))
	reqBody := map[string]interface{}{
		"model":                 c.model,
		"max_completion_tokens": 2048,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image_url",
						"image_url": map[string]interface{}{
							"url":    dataURI,
							"detail": string(detail),
						},
					},
					{
						"type": "text",
						"text": prompt,
					},
				},
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	result := c.parseResponse(respBody, input.PageNumber)
	c.filter.Apply(result)
	return result, nil
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// pageReply is the JSON object the model is instructed to return.
type pageReply struct {
	Type                    *string   `json:"type"`
	SupplierName            *string   `json:"supplier_name"`
	SupplierTaxID           *string   `json:"supplier_tax_id"`
	InvoiceNumber           *string   `json:"invoice_number"`
	DeliveryNoteNumber      *string   `json:"delivery_note_number"`
	ReferencedDeliveryNotes []*string `json:"referenced_delivery_notes"`
	PurchaseOrderNumber     *string   `json:"purchase_order_number"`
	DocumentDate            *string   `json:"document_date"`
	Continuation            bool      `json:"continuation"`
	Confidence              float64   `json:"confidence"`
}

// parseResponse never fails: any reply the model produces that cannot be
// decoded degrades to an unknown page with zero confidence, so a broken
// reply for one page cannot sink a whole batch.
func (c *Classifier) parseResponse(body []byte, pageNumber int) *domain.PageResult {
	unknown := &domain.PageResult{PageNumber: pageNumber, Type: domain.DocTypeUnknown, Confidence: 0.0}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Choices) == 0 {
		return unknown
	}

	text := trimFences(resp.Choices[0].Message.Content)

	var reply pageReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return unknown
	}

	result := &domain.PageResult{
		PageNumber:          pageNumber,
		Type:                domain.ParseDocumentType(cleanString(reply.Type)),
		SupplierName:        cleanString(reply.SupplierName),
		SupplierTaxID:       cleanString(reply.SupplierTaxID),
		InvoiceNumber:       cleanString(reply.InvoiceNumber),
		DeliveryNoteNumber:  cleanString(reply.DeliveryNoteNumber),
		PurchaseOrderNumber: cleanString(reply.PurchaseOrderNumber),
		Continuation:        reply.Continuation,
		Confidence:          clampConfidence(reply.Confidence),
	}
	for _, ref := range reply.ReferencedDeliveryNotes {
		if s := cleanString(ref); s != "" {
			result.ReferencedDeliveryNotes = append(result.ReferencedDeliveryNotes, s)
		}
	}
	if dateStr := cleanString(reply.DocumentDate); dateStr != "" {
		if t, ok := parseDate(dateStr); ok {
			result.DocumentDate = &t
		}
	}
	return result
}

// trimFences strips a markdown code fence that some models wrap around
// their JSON despite response_format.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// cleanString maps JSON null and the literal strings "null"/"none" (which
// vision models emit for absent fields) to the empty string.
func cleanString(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	switch strings.ToLower(s) {
	case "null", "none", "n/a":
		return ""
	}
	return s
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
