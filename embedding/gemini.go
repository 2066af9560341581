package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-embedding-001"
	defaultDimensions    = 768
	batchSize            = 100 // Google's API limit
	maxRetries           = 3
	initialBackoff       = time.Second
)

// EmbeddingRequest represents an embedding API request
type EmbeddingRequest struct {
	Model                string       `json:"model"`
	Content              ContentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

// ContentInput represents content for embedding
type ContentInput struct {
	Parts []PartInput `json:"parts"`
}

// PartInput represents a part of content
type PartInput struct {
	Text string `json:"text"`
}

// EmbeddingResponse represents an embedding API response
type EmbeddingResponse struct {
	Embedding EmbeddingData `json:"embedding"`
}

// EmbeddingData contains the embedding values
type EmbeddingData struct {
	Values []float64 `json:"values"`
}

// BatchEmbeddingRequest wraps several embedding requests
type BatchEmbeddingRequest struct {
	Requests []EmbeddingRequest `json:"requests"`
}

// BatchEmbeddingResponse is returned by batchEmbedContents (no nested "embedding" key)
type BatchEmbeddingResponse struct {
	Embeddings []EmbeddingData `json:"embeddings"`
}

// GeminiEmbedder calls the Gemini embedding REST API
type GeminiEmbedder struct {
	apiKey         string
	model          string
	dimensions     int
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
}

// GeminiOption is a functional option for GeminiEmbedder
type GeminiOption func(*GeminiEmbedder)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) GeminiOption {
	return func(e *GeminiEmbedder) {
		e.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(client *http.Client) GeminiOption {
	return func(e *GeminiEmbedder) {
		e.httpClient = client
	}
}

// WithRetry sets the attempt budget and the first backoff delay
func WithRetry(attempts int, backoff time.Duration) GeminiOption {
	return func(e *GeminiEmbedder) {
		if attempts > 0 {
			e.maxRetries = attempts
		}
		e.initialBackoff = backoff
	}
}

// NewGeminiEmbedder creates a new Gemini embedder
func NewGeminiEmbedder(apiKey, model string, dimensions int, opts ...GeminiOption) *GeminiEmbedder {
	if model == "" {
		model = defaultGeminiModel
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	e := &GeminiEmbedder{
		apiKey:         apiKey,
		model:          model,
		dimensions:     dimensions,
		baseURL:        defaultGeminiBaseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the embedding model name
func (e *GeminiEmbedder) Model() string { return e.model }

// Dimensions returns the output dimensionality
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }

// EmbedQuery generates an embedding for a retrieval query
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	reqBody := e.request(text, "RETRIEVAL_QUERY")

	var apiResp EmbeddingResponse
	if err := e.post(ctx, ":embedContent", reqBody, &apiResp); err != nil {
		return nil, err
	}
	return e.finish(apiResp.Embedding.Values)
}

// EmbedDocuments embeds corpus texts through the batch API
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := BatchEmbeddingRequest{Requests: make([]EmbeddingRequest, 0, end-i)}
		for _, text := range texts[i:end] {
			batch.Requests = append(batch.Requests, e.request(text, "RETRIEVAL_DOCUMENT"))
		}

		var apiResp BatchEmbeddingResponse
		if err := e.post(ctx, ":batchEmbedContents", batch, &apiResp); err != nil {
			return nil, err
		}
		if len(apiResp.Embeddings) != end-i {
			return nil, fmt.Errorf("mismatch: got %d embeddings for %d texts in batch", len(apiResp.Embeddings), end-i)
		}

		for _, emb := range apiResp.Embeddings {
			vec, err := e.finish(emb.Values)
			if err != nil {
				return nil, err
			}
			out = append(out, vec)
		}
	}

	return out, nil
}

func (e *GeminiEmbedder) request(text, taskType string) EmbeddingRequest {
	return EmbeddingRequest{
		Model: "models/" + e.model,
		Content: ContentInput{
			Parts: []PartInput{{Text: text}},
		},
		TaskType:             taskType,
		OutputDimensionality: e.dimensions,
	}
}

func (e *GeminiEmbedder) finish(values []float64) ([]float64, error) {
	if len(values) != e.dimensions {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingFailed, e.dimensions, len(values))
	}
	Normalize(values)
	return values, nil
}

// post sends body to the model endpoint with retry and exponential backoff
func (e *GeminiEmbedder) post(ctx context.Context, method string, body, out interface{}) error {
	if e.apiKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set", ErrEmbeddingFailed)
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	url := e.baseURL + "/models/" + e.model + method

	backoff := e.initialBackoff
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == e.maxRetries-1 {
				return fmt.Errorf("failed to send request after %d attempts: %w", e.maxRetries, err)
			}
			continue
		}

		bodyBytes, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK && readErr == nil {
			if err := json.Unmarshal(bodyBytes, out); err != nil {
				if attempt == e.maxRetries-1 {
					return fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			return nil
		}

		// Don't retry on client errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: API error: %d", ErrEmbeddingFailed, resp.StatusCode)
		}

		log.Printf("Warning: embedding API returned %d (attempt %d/%d)", resp.StatusCode, attempt+1, e.maxRetries)
		if attempt == e.maxRetries-1 {
			return fmt.Errorf("%w: API error after %d attempts: %d", ErrEmbeddingFailed, e.maxRetries, resp.StatusCode)
		}
	}

	return ErrEmbeddingFailed
}
