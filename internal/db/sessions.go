package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			id, title, description, extracted_text, text_language, english_translation
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		session.ID, session.Title, session.Description, session.ExtractedText,
		session.TextLanguage, session.EnglishTranslation,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, title, description, extracted_text, text_language,
		       english_translation, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	session := &models.Session{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.Title, &session.Description, &session.ExtractedText,
		&session.TextLanguage, &session.EnglishTranslation,
		&session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListSessions returns the most recent sessions with their artifact counts.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT s.id, s.title, s.description, s.extracted_text, s.text_language,
		       s.english_translation, COUNT(a.id), s.created_at, s.updated_at
		FROM sessions s
		LEFT JOIN artifacts a ON a.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.ExtractedText, &s.TextLanguage,
			&s.EnglishTranslation, &s.ArtifactCount, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (db *DB) TouchSession(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET updated_at = $1 WHERE id = $2`
	_, err := db.ExecContext(ctx, query, time.Now(), id)
	return err
}

func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM sessions WHERE id = $1`
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}
