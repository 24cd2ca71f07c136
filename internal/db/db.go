package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn}, nil
}

// EnsureSchema creates the tables if they do not exist. The schema is small
// enough that idempotent DDL at startup beats a migration toolchain here.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			extracted_text TEXT,
			text_language TEXT,
			english_translation TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY,
			session_id UUID REFERENCES sessions(id) ON DELETE CASCADE,
			media_kind TEXT NOT NULL,
			total_requested INTEGER NOT NULL,
			status TEXT NOT NULL,
			cost_info JSONB,
			results JSONB,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS artifacts (
			id UUID PRIMARY KEY,
			batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			session_id UUID REFERENCES sessions(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			language TEXT NOT NULL,
			variation INTEGER NOT NULL,
			style TEXT,
			font_style TEXT,
			orientation TEXT,
			resolution TEXT,
			file_path TEXT NOT NULL,
			url TEXT NOT NULL,
			audio_dropped BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_batch ON artifacts(batch_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
		CREATE INDEX IF NOT EXISTS idx_batches_session ON batches(session_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
