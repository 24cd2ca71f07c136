package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (
			id, session_id, media_kind, total_requested, status, cost_info
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		batch.ID, batch.SessionID, batch.MediaKind, batch.TotalRequested,
		batch.Status, batch.CostInfo,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

func (db *DB) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT id, session_id, media_kind, total_requested, status,
		       cost_info, results, error_message, created_at, updated_at
		FROM batches
		WHERE id = $1
	`

	batch := &models.Batch{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &batch.SessionID, &batch.MediaKind, &batch.TotalRequested,
		&batch.Status, &batch.CostInfo, &batch.Results, &batch.ErrorMessage,
		&batch.CreatedAt, &batch.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return batch, nil
}

func (db *DB) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status models.BatchStatus) error {
	query := `UPDATE batches SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (db *DB) UpdateBatchCost(ctx context.Context, id uuid.UUID, cost models.JSONB) error {
	query := `UPDATE batches SET cost_info = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, cost, time.Now(), id)
	return err
}

// UpdateBatchResults stores the terminal per-task outcomes so the report
// endpoint can enumerate every requested task, failures included.
func (db *DB) UpdateBatchResults(ctx context.Context, id uuid.UUID, results models.JSONB) error {
	query := `UPDATE batches SET results = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, results, time.Now(), id)
	return err
}

func (db *DB) UpdateBatchError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE batches
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.BatchStatusFailed, errorMessage, time.Now(), id)
	return err
}
