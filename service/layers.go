package service

import (
	"context"

	"offerguard-backend/models"
)

// Retriever finds the statutes relevant to a document
type Retriever interface {
	Retrieve(ctx context.Context, documentText, jurisdiction string) ([]models.RetrievalResult, error)
}

// DetectionInput is what a detection layer sees for one analysis
type DetectionInput struct {
	DocumentText string
	Jurisdiction string
	Laws         []models.RetrievalResult
}

// DetectionResult is the output of one detection layer. A layer that could
// not run reports Available=false and the reason in Err.
type DetectionResult struct {
	Layer      models.Layer
	Candidates []models.ViolationCandidate
	Available  bool
	Err        error
}

// Detector is a single violation detection layer
type Detector interface {
	Detect(ctx context.Context, in DetectionInput) DetectionResult
}

// Reconciler merges the pattern and LLM layers into the final violations
type Reconciler interface {
	Reconcile(pattern, llm []models.ViolationCandidate, minConfidence float64) []models.Violation
}
