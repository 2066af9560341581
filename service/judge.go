package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"offerguard-backend/llm"
	"offerguard-backend/models"
)

// JudgeConfig bounds the judge's latency and prompt size
type JudgeConfig struct {
	Temperature        float64       `mapstructure:"temperature"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryTimeout       time.Duration `mapstructure:"retry_timeout"`
	MaxDocumentChars   int           `mapstructure:"max_document_chars"`
	RetryDocumentChars int           `mapstructure:"retry_document_chars"`
	RetryMaxLaws       int           `mapstructure:"retry_max_laws"`
	MaxLawTextChars    int           `mapstructure:"max_law_text_chars"`
}

// DefaultJudgeConfig returns conservative defaults
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Temperature:        0.1,
		Timeout:            20 * time.Second,
		RetryTimeout:       10 * time.Second,
		MaxDocumentChars:   12000,
		RetryDocumentChars: 4000,
		RetryMaxLaws:       3,
		MaxLawTextChars:    1200,
	}
}

// LLMJudge is the language-model detection layer
type LLMJudge struct {
	client llm.Client
	cfg    JudgeConfig
}

// NewLLMJudge creates a judge over client. Zero config fields take defaults.
func NewLLMJudge(client llm.Client, cfg JudgeConfig) *LLMJudge {
	d := DefaultJudgeConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = d.RetryTimeout
	}
	if cfg.MaxDocumentChars <= 0 {
		cfg.MaxDocumentChars = d.MaxDocumentChars
	}
	if cfg.RetryDocumentChars <= 0 {
		cfg.RetryDocumentChars = d.RetryDocumentChars
	}
	if cfg.RetryMaxLaws <= 0 {
		cfg.RetryMaxLaws = d.RetryMaxLaws
	}
	if cfg.MaxLawTextChars <= 0 {
		cfg.MaxLawTextChars = d.MaxLawTextChars
	}
	return &LLMJudge{client: client, cfg: cfg}
}

// Detect implements Detector. Failures are reported on the result and never
// returned as errors.
func (j *LLMJudge) Detect(ctx context.Context, in DetectionInput) DetectionResult {
	result := DetectionResult{Layer: models.LayerLLM, Candidates: []models.ViolationCandidate{}}

	candidates, err := j.Judge(ctx, in.DocumentText, in.Jurisdiction, in.Laws)
	if err != nil {
		result.Err = err
		return result
	}
	result.Candidates = candidates
	result.Available = true
	return result
}

// Judge asks the model for violations. It makes at most two calls: the full
// prompt, then on a transport failure or timeout a shorter one.
func (j *LLMJudge) Judge(ctx context.Context, documentText, jurisdiction string, laws []models.RetrievalResult) ([]models.ViolationCandidate, error) {
	if j == nil || j.client == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrJudgeUnavailable)
	}

	full := buildJudgePrompt(jurisdiction, documentText, laws, promptOptions{
		maxDocumentChars: j.cfg.MaxDocumentChars,
		includeFullText:  true,
		maxLawTextChars:  j.cfg.MaxLawTextChars,
	})
	raw, err := j.call(ctx, full, j.cfg.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyJudgeError(ctx.Err())
		}
		log.Printf("Warning: judge attempt 1 failed, retrying with a shorter prompt: %v", err)

		short := buildJudgePrompt(jurisdiction, documentText, laws, promptOptions{
			maxDocumentChars: j.cfg.RetryDocumentChars,
			maxLaws:          j.cfg.RetryMaxLaws,
		})
		raw, err = j.call(ctx, short, j.cfg.RetryTimeout)
		if err != nil {
			return nil, classifyJudgeError(err)
		}
	}

	return ParseJudgeResponse(raw, laws)
}

func (j *LLMJudge) call(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return j.client.Generate(callCtx, llm.Request{
		System:      judgeSystemPrompt,
		Prompt:      prompt,
		Temperature: j.cfg.Temperature,
		JSON:        true,
	})
}

func classifyJudgeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrJudgeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
}
