package repository

import (
	"context"
	"errors"
	"fmt"

	"offerguard-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRunRepository handles database operations for analysis runs
type AnalysisRunRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRunRepository creates a new analysis run repository
func NewAnalysisRunRepository(db *pgxpool.Pool) *AnalysisRunRepository {
	return &AnalysisRunRepository{db: db}
}

// Create stores an analysis run
func (r *AnalysisRunRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, jurisdiction, document_hash, document_chars, layers_used,
			violations, is_compliant, overall_risk, confidence_avg,
			duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(
		ctx, query,
		run.ID,
		run.Jurisdiction,
		run.DocumentHash,
		run.DocumentChars,
		run.LayersUsed,
		run.Violations,
		run.IsCompliant,
		run.OverallRisk,
		run.ConfidenceAvg,
		run.DurationMS,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return nil
}

const selectRunColumns = `
	SELECT id, jurisdiction, document_hash, document_chars, layers_used,
		violations, is_compliant, overall_risk, confidence_avg,
		duration_ms, created_at
	FROM analysis_runs`

func scanRun(row pgx.Row) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{}
	err := row.Scan(
		&run.ID,
		&run.Jurisdiction,
		&run.DocumentHash,
		&run.DocumentChars,
		&run.LayersUsed,
		&run.Violations,
		&run.IsCompliant,
		&run.OverallRisk,
		&run.ConfidenceAvg,
		&run.DurationMS,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if run.Violations == nil {
		run.Violations = make(models.RunViolations, 0)
	}
	return run, nil
}

// GetByID retrieves an analysis run by ID
func (r *AnalysisRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, selectRunColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

// ListByJurisdiction returns the most recent runs for a jurisdiction
func (r *AnalysisRunRepository) ListByJurisdiction(ctx context.Context, jurisdiction string, limit int) ([]models.AnalysisRun, error) {
	rows, err := r.db.Query(ctx, selectRunColumns+`
		WHERE jurisdiction = $1
		ORDER BY created_at DESC
		LIMIT $2`, models.NormalizeJurisdiction(jurisdiction), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}

	return runs, nil
}
