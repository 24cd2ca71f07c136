package db

import (
	"context"
	"fmt"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (
			id, batch_id, session_id, kind, language, variation,
			style, font_style, orientation, resolution, file_path, url, audio_dropped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		artifact.ID, artifact.BatchID, artifact.SessionID, artifact.Kind,
		artifact.Language, artifact.Variation, artifact.Style, artifact.FontStyle,
		artifact.Orientation, artifact.Resolution, artifact.FilePath, artifact.URL,
		artifact.AudioDropped,
	).Scan(&artifact.CreatedAt)
}

func (db *DB) GetBatchArtifacts(ctx context.Context, batchID uuid.UUID) ([]models.Artifact, error) {
	return db.queryArtifacts(ctx, `
		SELECT id, batch_id, session_id, kind, language, variation,
		       style, font_style, orientation, resolution, file_path, url,
		       audio_dropped, created_at
		FROM artifacts
		WHERE batch_id = $1
		ORDER BY language, variation, created_at
	`, batchID)
}

func (db *DB) GetSessionArtifacts(ctx context.Context, sessionID uuid.UUID) ([]models.Artifact, error) {
	return db.queryArtifacts(ctx, `
		SELECT id, batch_id, session_id, kind, language, variation,
		       style, font_style, orientation, resolution, file_path, url,
		       audio_dropped, created_at
		FROM artifacts
		WHERE session_id = $1
		ORDER BY language, variation, created_at
	`, sessionID)
}

func (db *DB) queryArtifacts(ctx context.Context, query string, key uuid.UUID) ([]models.Artifact, error) {
	rows, err := db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		var a models.Artifact
		err := rows.Scan(
			&a.ID, &a.BatchID, &a.SessionID, &a.Kind, &a.Language, &a.Variation,
			&a.Style, &a.FontStyle, &a.Orientation, &a.Resolution,
			&a.FilePath, &a.URL, &a.AudioDropped, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}
