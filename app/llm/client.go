package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-lite"

	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Error wraps a failure from the generative backend. Transient failures
// (network errors, rate limits, 5xx responses) are retried with backoff
// before being surfaced; everything else fails immediately.
type Error struct {
	Message   string
	Transient bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		baseURL:    cmp.Or(config.BaseURL, DefaultBaseURL),
		apiKey:     config.APIKey,
		model:      cmp.Or(config.Model, DefaultModel),
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryDelay: cmp.Or(config.RetryDelay, defaultRetryDelay),
	}
}

type GenerateConfig struct {
	Temperature     *float64
	MaxOutputTokens int
}

type Response struct {
	Text         string
	TokenCount   *int
	ModelName    string
	FinishReason string
}

type StructuredResponse struct {
	Data       json.RawMessage
	TokenCount *int
	ModelName  string
}

// Schema describes the expected shape of a structured response, in the
// generateContent responseSchema format.
type Schema struct {
	Type             string             `json:"type"`
	Description      string             `json:"description,omitempty"`
	Properties       map[string]*Schema `json:"properties,omitempty"`
	Required         []string           `json:"required,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
	Items            *Schema            `json:"items,omitempty"`
}

const (
	TypeObject = "OBJECT"
	TypeString = "STRING"
)

// Generate produces free-form text for a prompt, retrying transient
// backend failures with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string, config GenerateConfig) (*Response, error) {
	body := c.buildRequest(prompt, config, nil)

	resp, err := c.generateWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	text, finishReason := firstCandidate(resp)
	if text == "" {
		return nil, &Error{Message: "no text content in response"}
	}

	return &Response{
		Text:         text,
		TokenCount:   totalTokens(resp),
		ModelName:    c.model,
		FinishReason: finishReason,
	}, nil
}

// GenerateStructured produces a JSON document constrained by schema.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *Schema, config GenerateConfig) (*StructuredResponse, error) {
	body := c.buildRequest(prompt, config, schema)

	resp, err := c.generateWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	text, _ := firstCandidate(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Message: "no structured content in response"}
	}
	if !json.Valid([]byte(text)) {
		return nil, &Error{Message: "structured response is not valid JSON"}
	}

	return &StructuredResponse{
		Data:       json.RawMessage(text),
		TokenCount: totalTokens(resp),
		ModelName:  c.model,
	}, nil
}

func (c *Client) generateWithRetry(ctx context.Context, body generateRequest) (*generateResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * (1 << (attempt - 1))
			slog.Warn("Generation attempt failed, retrying",
				"model", c.model, "attempt", attempt, "max_retries", c.maxRetries,
				"delay", delay.String(), "error", lastErr)

			select {
			case <-ctx.Done():
				return nil, &Error{Message: "generation cancelled", Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := c.doGenerate(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var llmErr *Error
		if !errors.As(err, &llmErr) || !llmErr.Transient {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doGenerate(ctx context.Context, body generateRequest) (*generateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Message: "failed to marshal request", Cause: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: "request failed", Transient: true, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: "failed to read response body", Transient: true, Cause: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &Error{
			Message:   fmt.Sprintf("backend error %d: %s", resp.StatusCode, truncate(data, 256)),
			Transient: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Message: fmt.Sprintf("backend error %d: %s", resp.StatusCode, truncate(data, 256)),
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &Error{Message: "failed to decode response", Cause: err}
	}

	return &parsed, nil
}

func (c *Client) buildRequest(prompt string, config GenerateConfig, schema *Schema) generateRequest {
	request := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	generation := &generationConfig{
		Temperature:     config.Temperature,
		MaxOutputTokens: config.MaxOutputTokens,
	}
	if schema != nil {
		generation.ResponseMIMEType = "application/json"
		generation.ResponseSchema = schema
	}
	request.GenerationConfig = generation

	return request
}

func firstCandidate(resp *generateResponse) (text, finishReason string) {
	if len(resp.Candidates) == 0 {
		return "", ""
	}
	candidate := resp.Candidates[0]

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		builder.WriteString(part.Text)
	}
	return builder.String(), candidate.FinishReason
}

func totalTokens(resp *generateResponse) *int {
	if resp.UsageMetadata == nil {
		return nil
	}
	count := resp.UsageMetadata.TotalTokenCount
	return &count
}

func truncate(data []byte, limit int) string {
	text := strings.TrimSpace(string(data))
	if len(text) > limit {
		return text[:limit]
	}
	return text
}

// Wire types for the generateContent REST API.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	TotalTokenCount int `json:"totalTokenCount"`
}
