// Package llm is the text-generation transport used by the compliance judge.
package llm

import (
	"context"
	"errors"
	"fmt"
)

const defaultModel = "gemini-2.5-flash"

var (
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set")
	ErrBlocked       = errors.New("prompt blocked by model")
	ErrEmptyResponse = errors.New("model returned no text")
)

// Request is a single generation call
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	JSON        bool // ask for an application/json response
}

// Client generates text for a prompt. Implementations must honor ctx
// cancellation and deadlines.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// APIError is a non-200 response from the model endpoint
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// Config selects and configures a transport
type Config struct {
	Transport string `mapstructure:"transport"` // sdk or rest
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
}

// New builds the client named by cfg.Transport. The SDK client must be
// closed by the caller when done.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Transport {
	case "", "sdk":
		client, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "rest":
		opts := []RESTOption{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithRESTBaseURL(cfg.BaseURL))
		}
		client, err := NewRESTClient(cfg.APIKey, cfg.Model, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported judge transport: %s", cfg.Transport)
	}
}
