package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// RESTClient calls the Gemini generateContent endpoint directly
type RESTClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// RESTOption is a functional option for RESTClient
type RESTOption func(*RESTClient)

// WithRESTBaseURL points the client at another endpoint
func WithRESTBaseURL(baseURL string) RESTOption {
	return func(c *RESTClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRESTHTTPClient sets the HTTP client
func WithRESTHTTPClient(client *http.Client) RESTOption {
	return func(c *RESTClient) {
		c.httpClient = client
	}
}

// NewRESTClient creates a REST client for model
func NewRESTClient(apiKey, model string, opts ...RESTOption) (*RESTClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = defaultModel
	}
	c := &RESTClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type restPart struct {
	Text string `json:"text"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restRequest struct {
	SystemInstruction *restContent  `json:"systemInstruction,omitempty"`
	Contents          []restContent `json:"contents"`
	GenerationConfig  struct {
		Temperature      float64 `json:"temperature"`
		ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type restResponse struct {
	Candidates []struct {
		Content struct {
			Parts []restPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Generate implements Client
func (c *RESTClient) Generate(ctx context.Context, req Request) (string, error) {
	body := restRequest{
		Contents: []restContent{{Role: "user", Parts: []restPart{{Text: req.Prompt}}}},
	}
	body.GenerationConfig.Temperature = req.Temperature
	if req.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		body.SystemInstruction = &restContent{Parts: []restPart{{Text: req.System}}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Gemini API error: Status %d, Body: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(bodyBytes), 500)}
	}

	var apiResp restResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}
	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, apiResp.PromptFeedback.BlockReason)
	}
	if len(apiResp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := apiResp.Candidates[0]
	if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
		log.Printf("Warning: Candidate finished with reason: %s", candidate.FinishReason)
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
