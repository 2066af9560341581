package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"offerguard-backend/corpus"
	"offerguard-backend/models"
	"offerguard-backend/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxDocumentChars = 200000
	runSaveTimeout          = 5 * time.Second
	maxListedRuns           = 100
)

// RunStore persists analysis audit records
type RunStore interface {
	Create(ctx context.Context, run *models.AnalysisRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error)
	ListByJurisdiction(ctx context.Context, jurisdiction string, limit int) ([]models.AnalysisRun, error)
}

// ComplianceService runs the layered analysis of one offer document
type ComplianceService struct {
	corpus           *corpus.Corpus
	retriever        Retriever
	patterns         Detector
	judge            Detector
	reconciler       Reconciler
	runs             RunStore
	minConfidence    float64
	maxDocumentChars int
}

// ComplianceServiceOption is a functional option for ComplianceService
type ComplianceServiceOption func(*ComplianceService)

// ComplianceWithCorpus sets the statute corpus
func ComplianceWithCorpus(c *corpus.Corpus) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.corpus = c
	}
}

// ComplianceWithRetriever sets the statute retriever
func ComplianceWithRetriever(r Retriever) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.retriever = r
	}
}

// ComplianceWithPatternDetector sets the rule-based layer
func ComplianceWithPatternDetector(d Detector) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.patterns = d
	}
}

// ComplianceWithJudge sets the LLM layer. Without one every report is
// pattern-only.
func ComplianceWithJudge(d Detector) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.judge = d
	}
}

// ComplianceWithReconciler sets how the layers are merged
func ComplianceWithReconciler(r Reconciler) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.reconciler = r
	}
}

// ComplianceWithRunRepository enables persisting analysis runs
func ComplianceWithRunRepository(runs RunStore) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.runs = runs
	}
}

// ComplianceWithMinConfidence sets the default confidence floor
func ComplianceWithMinConfidence(minConfidence float64) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.minConfidence = minConfidence
	}
}

// ComplianceWithMaxDocumentChars sets the largest accepted document
func ComplianceWithMaxDocumentChars(n int) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.maxDocumentChars = n
	}
}

// NewComplianceService creates a new compliance service
func NewComplianceService(opts ...ComplianceServiceOption) *ComplianceService {
	s := &ComplianceService{
		minConfidence:    DefaultMinConfidence,
		maxDocumentChars: DefaultMaxDocumentChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retriever == nil && s.corpus != nil {
		s.retriever = NewHybridRetriever(s.corpus, DefaultRetrieverConfig())
	}
	if s.patterns == nil {
		s.patterns = NewPatternMatcher(nil)
	}
	if s.reconciler == nil {
		s.reconciler = NewCrossValidator(DefaultBoostFactor)
	}
	return s
}

// AnalyzeRequest represents a request to analyze a document
type AnalyzeRequest struct {
	DocumentText  string
	Jurisdiction  string
	MinConfidence *float64 // Optional, overrides the service default
}

// Analyze runs retrieval and pattern matching in parallel, then the judge,
// then reconciles the layers. Only invalid input and unknown jurisdictions
// are returned as errors; layer failures, including the caller's deadline
// expiring mid-pipeline, degrade the report instead.
func (s *ComplianceService) Analyze(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	started := time.Now()

	if s.corpus == nil || s.retriever == nil {
		return nil, ErrCorpusNotSet
	}

	minConfidence, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	jurisdiction := models.NormalizeJurisdiction(req.Jurisdiction)
	if _, err := s.corpus.Load(jurisdiction); err != nil {
		return nil, err
	}

	analysisID := uuid.New()

	var laws []models.RetrievalResult
	var patternResult DetectionResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		retrieved, err := s.retriever.Retrieve(gctx, req.DocumentText, jurisdiction)
		if err != nil {
			if errors.Is(err, ErrUnknownJurisdiction) {
				return err
			}
			log.Printf("Warning: analysis %s: retrieval failed: %v", analysisID, err)
			return nil
		}
		laws = retrieved
		return nil
	})
	g.Go(func() error {
		patternResult = s.patterns.Detect(gctx, DetectionInput{
			DocumentText: req.DocumentText,
			Jurisdiction: jurisdiction,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(laws) == 0 {
		log.Printf("Warning: analysis %s: no statutes retrieved for %s, judging without statutes", analysisID, jurisdiction)
	}

	layers := []models.Layer{models.LayerPattern}
	if len(laws) > 0 {
		layers = append(layers, models.LayerRetrieval)
	}

	var llmCandidates []models.ViolationCandidate
	if s.judge != nil {
		judged := s.judge.Detect(ctx, DetectionInput{
			DocumentText: req.DocumentText,
			Jurisdiction: jurisdiction,
			Laws:         laws,
		})
		if judged.Available {
			layers = append(layers, models.LayerLLM)
			llmCandidates = judged.Candidates
		} else {
			log.Printf("Warning: analysis %s: judge unavailable, reporting pattern layer only: %v", analysisID, judged.Err)
		}
	}

	violations := s.reconciler.Reconcile(patternResult.Candidates, llmCandidates, minConfidence)
	isCompliant, risk, avg := Summarize(violations)

	result := &models.AnalysisResult{
		ID:            analysisID,
		Jurisdiction:  jurisdiction,
		Violations:    violations,
		LayersUsed:    models.SortLayers(layers),
		IsCompliant:   isCompliant,
		OverallRisk:   risk,
		ConfidenceAvg: avg,
		AnalyzedAt:    started.UTC(),
		Duration:      time.Since(started),
	}

	s.saveRun(ctx, result, req.DocumentText)
	return result, nil
}

func (s *ComplianceService) validate(req AnalyzeRequest) (float64, error) {
	text := req.DocumentText
	switch {
	case strings.TrimSpace(text) == "":
		return 0, fmt.Errorf("%w: document_text is empty", ErrInvalidDocumentInput)
	case !utf8.ValidString(text):
		return 0, fmt.Errorf("%w: document_text is not valid UTF-8", ErrInvalidDocumentInput)
	case strings.ContainsRune(text, 0):
		return 0, fmt.Errorf("%w: document_text contains binary data", ErrInvalidDocumentInput)
	case s.maxDocumentChars > 0 && utf8.RuneCountInString(text) > s.maxDocumentChars:
		return 0, fmt.Errorf("%w: document_text exceeds %d characters", ErrInvalidDocumentInput, s.maxDocumentChars)
	}

	minConfidence := s.minConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
		if math.IsNaN(minConfidence) || minConfidence < 0 || minConfidence > 1 {
			return 0, fmt.Errorf("%w: min_confidence must be between 0 and 1", ErrInvalidDocumentInput)
		}
	}
	return minConfidence, nil
}

func (s *ComplianceService) saveRun(ctx context.Context, result *models.AnalysisResult, documentText string) {
	if s.runs == nil {
		return
	}
	// The run is recorded even if the caller has already gone away
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runSaveTimeout)
	defer cancel()

	run := models.NewAnalysisRun(result, DocumentHash(documentText), utf8.RuneCountInString(documentText))
	if err := s.runs.Create(saveCtx, run); err != nil {
		log.Printf("Warning: Failed to save analysis run %s: %v", result.ID, err)
	}
}

// DocumentHash identifies a document without storing it
func DocumentHash(documentText string) string {
	sum := blake2b.Sum256([]byte(documentText))
	return hex.EncodeToString(sum[:])
}

// GetRun returns a persisted analysis run
func (s *ComplianceService) GetRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	if s.runs == nil {
		return nil, ErrRunsDisabled
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs for a jurisdiction, newest first.
// limit is clamped to [1, 100].
func (s *ComplianceService) ListRuns(ctx context.Context, jurisdiction string, limit int) ([]models.AnalysisRun, error) {
	if s.runs == nil {
		return nil, ErrRunsDisabled
	}
	if limit <= 0 || limit > maxListedRuns {
		limit = maxListedRuns
	}
	runs, err := s.runs.ListByJurisdiction(ctx, models.NormalizeJurisdiction(jurisdiction), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.AnalysisRun{}
	}
	return runs, nil
}

// SearchStatutes ranks a jurisdiction's statutes against free text
func (s *ComplianceService) SearchStatutes(ctx context.Context, jurisdiction, query string) ([]models.RetrievalResult, error) {
	if s.retriever == nil {
		return nil, ErrCorpusNotSet
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidDocumentInput)
	}
	return s.retriever.Retrieve(ctx, query, jurisdiction)
}

// ListStatutes returns every statute loaded for a jurisdiction
func (s *ComplianceService) ListStatutes(jurisdiction string) ([]models.LawRecord, error) {
	if s.corpus == nil {
		return nil, ErrCorpusNotSet
	}
	return s.corpus.Load(jurisdiction)
}

// Jurisdictions lists the jurisdictions with a loaded corpus
func (s *ComplianceService) Jurisdictions() []string {
	if s.corpus == nil {
		return []string{}
	}
	return s.corpus.Jurisdictions()
}

// ReloadCorpus rebuilds the statute corpus from its source and swaps it in
func (s *ComplianceService) ReloadCorpus(ctx context.Context) (corpus.Stats, error) {
	if s.corpus == nil {
		return corpus.Stats{}, ErrCorpusNotSet
	}
	if err := s.corpus.Reload(ctx); err != nil {
		return s.corpus.Stats(), err
	}
	return s.corpus.Stats(), nil
}

// CorpusStats describes the active corpus snapshot
func (s *ComplianceService) CorpusStats() corpus.Stats {
	if s.corpus == nil {
		return corpus.Stats{}
	}
	return s.corpus.Stats()
}
