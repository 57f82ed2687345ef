package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"shipment-consolidator/internal/models"
)

// ErrRunNotFound is returned when no run matches the id
var ErrRunNotFound = errors.New("run not found")

// SaveRun stores a finished run summary, replacing an earlier save of the same run
func (s *Store) SaveRun(ctx context.Context, summary *models.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	query := `
		INSERT INTO consolidation_runs (run_id, outcome, no_op, instructions, error_count, started_at, finished_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			no_op = EXCLUDED.no_op,
			instructions = EXCLUDED.instructions,
			error_count = EXCLUDED.error_count,
			finished_at = EXCLUDED.finished_at,
			summary = EXCLUDED.summary`

	_, err = s.db.ExecContext(ctx, query,
		summary.RunID, summary.Outcome, summary.NoOp, summary.Instructions, len(summary.Errors),
		summary.StartedAt, summary.FinishedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", summary.RunID, err)
	}
	return nil
}

// GetRun retrieves a run summary by id
func (s *Store) GetRun(ctx context.Context, runID string) (*models.RunSummary, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, "SELECT summary FROM consolidation_runs WHERE run_id = $1", runID)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var summary models.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &summary, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var payloads [][]byte
	err := s.db.SelectContext(ctx, &payloads,
		"SELECT summary FROM consolidation_runs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}

	runs := make([]models.RunSummary, 0, len(payloads))
	for _, p := range payloads {
		var summary models.RunSummary
		if err := json.Unmarshal(p, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, summary)
	}
	return runs, nil
}
