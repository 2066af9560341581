package service

import (
	"context"
	"sync"
	"testing"

	"offerguard-backend/corpus"
	"offerguard-backend/embedding"
	"offerguard-backend/llm"
	"offerguard-backend/models"
)

const caNonCompeteOffer = `Dear Jordan,

We are pleased to offer you the position of Senior Software Engineer at Acme Corp. Your annual base salary will be $150,000, paid bi-weekly.

As a condition of employment, you agree to a non-compete covenant: for 24 months after your employment ends you shall not work for any competitor of the Company.

Sincerely,
Acme Corp`

const cleanOffer = `Dear Jordan,

We are pleased to offer you the position of Senior Software Engineer at Acme Corp. Your annual base salary will be $150,000, paid bi-weekly.

You will be eligible for medical, dental and vision benefits and 401(k) matching.

Your employment with Acme is at-will, meaning either you or the Company may end it at any time.

Sincerely,
Acme Corp`

func seedCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c := corpus.New(corpus.SeedSource{}, embedding.NewHashEmbedder(1024))
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload seed corpus: %v", err)
	}
	return c
}

func defaultMatcher(t *testing.T) *PatternMatcher {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	return NewPatternMatcher(rules)
}

// fakeClient is a scripted llm.Client
type fakeClient struct {
	mu       sync.Mutex
	calls    int
	requests []llm.Request
	respond  func(ctx context.Context, call int, req llm.Request) (string, error)
}

func (f *fakeClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, call, req)
}

func staticClient(response string) *fakeClient {
	return &fakeClient{respond: func(context.Context, int, llm.Request) (string, error) {
		return response, nil
	}}
}

func lawFor(topic, citation string) models.RetrievalResult {
	return models.RetrievalResult{Law: &models.LawRecord{
		Jurisdiction: "CA",
		Topic:        topic,
		Citation:     citation,
		Summary:      topic + " summary",
		FullText:     topic + " full text",
	}}
}
