package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"learned/internal/models"
)

const (
	defaultGenerationLimit = 50
	maxGenerationLimit     = 500
)

// GenerationLog persists one row per backend call.
type GenerationLog struct {
	db *sql.DB
}

func NewGenerationLog(db *sql.DB) *GenerationLog {
	return &GenerationLog{db: db}
}

// Record assigns an id and timestamp when missing and inserts the row.
func (l *GenerationLog) Record(ctx context.Context, g models.Generation) (models.Generation, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO generations (
			id, session_id, action, provider, model, prompt_chars, output_chars, stage,
			mcq_count, flashcard_count, block_count, error, raw_output, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, g.ID, g.SessionID, string(g.Action), g.Provider, g.Model, g.PromptChars, g.OutputChars, g.Stage,
		g.MCQCount, g.FlashcardCount, g.BlockCount, g.Error, g.RawOutput, g.DurationMS, g.CreatedAt)
	if err != nil {
		return models.Generation{}, fmt.Errorf("insert generation: %w", err)
	}
	return g, nil
}

// List returns the most recent generations first. Non-positive limits use the default.
func (l *GenerationLog) List(ctx context.Context, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = defaultGenerationLimit
	}
	if limit > maxGenerationLimit {
		limit = maxGenerationLimit
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, action, provider, model, prompt_chars, output_chars, stage,
			mcq_count, flashcard_count, block_count, error, raw_output, duration_ms, created_at
		FROM generations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Generation, 0)
	for rows.Next() {
		var (
			g      models.Generation
			action string
		)
		if err := rows.Scan(&g.ID, &g.SessionID, &action, &g.Provider, &g.Model, &g.PromptChars, &g.OutputChars,
			&g.Stage, &g.MCQCount, &g.FlashcardCount, &g.BlockCount, &g.Error, &g.RawOutput, &g.DurationMS,
			&g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Action = models.Action(action)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}
