package service

import (
	"errors"

	"offerguard-backend/corpus"
)

var (
	ErrInvalidDocumentInput = errors.New("invalid document input")
	ErrUnknownJurisdiction  = corpus.ErrUnknownJurisdiction
	ErrRunNotFound          = errors.New("analysis run not found")
	ErrRunsDisabled         = errors.New("analysis run storage not configured")
	ErrCorpusNotSet         = errors.New("statute corpus not set")

	// Judge failures. These never reach the caller of Analyze; they are
	// reported on the judge's DetectionResult and degrade the report.
	ErrJudgeTimeout           = errors.New("judge timed out")
	ErrJudgeUnavailable       = errors.New("judge unavailable")
	ErrJudgeMalformedResponse = errors.New("judge returned malformed response")
)
