package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/repository"
)

// GenerationDB implements repository.GenerationRepository.
//
// The table is append-only by construction: this type exposes no update or
// delete method, mirroring the API surface of generation history.
type GenerationDB struct {
	conn *sql.DB
}

var _ repository.GenerationRepository = (*GenerationDB)(nil)

func (g *GenerationDB) Create(ctx context.Context, generation *model.Generation) error {
	generation.ID = xid.New().String()
	generation.CreatedAt = time.Now()

	if generation.CharacterMentions == nil {
		generation.CharacterMentions = []model.CharacterMention{}
	}
	mentions, err := json.Marshal(generation.CharacterMentions)
	if err != nil {
		return fmt.Errorf("sqlite: encoding character mentions: %w", err)
	}

	_, err = g.conn.ExecContext(ctx,
		`INSERT INTO generations
		 (id, user_id, prompt, character_mentions, reference_image_id, generated_image_id, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		generation.ID, generation.UserID, generation.Prompt, string(mentions),
		generation.ReferenceImageID, generation.GeneratedImageID,
		string(generation.Model), generation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating generation: %w", err)
	}

	return nil
}

func (g *GenerationDB) GetByID(ctx context.Context, id string) (*model.Generation, error) {
	var (
		generation model.Generation
		mentions   string
	)
	err := g.conn.QueryRowContext(ctx,
		`SELECT id, user_id, prompt, character_mentions, reference_image_id,
		        generated_image_id, model, created_at
		 FROM generations WHERE id = ?`, id,
	).Scan(
		&generation.ID, &generation.UserID, &generation.Prompt, &mentions,
		&generation.ReferenceImageID, &generation.GeneratedImageID,
		&generation.Model, &generation.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("generation", id)
		}
		return nil, fmt.Errorf("sqlite: getting generation %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(mentions), &generation.CharacterMentions); err != nil {
		return nil, fmt.Errorf("sqlite: decoding mentions for generation %s: %w", id, err)
	}

	return &generation, nil
}

func (g *GenerationDB) ListByUser(ctx context.Context, userID string, limit int) ([]model.Generation, error) {
	query := `SELECT id, user_id, prompt, character_mentions, reference_image_id,
	                 generated_image_id, model, created_at
	          FROM generations
	          WHERE user_id = ?
	          ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := g.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing generations: %w", err)
	}
	defer rows.Close()

	generations := []model.Generation{}
	for rows.Next() {
		var (
			generation model.Generation
			mentions   string
		)
		if err := rows.Scan(
			&generation.ID, &generation.UserID, &generation.Prompt, &mentions,
			&generation.ReferenceImageID, &generation.GeneratedImageID,
			&generation.Model, &generation.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning generation row: %w", err)
		}
		if err := json.Unmarshal([]byte(mentions), &generation.CharacterMentions); err != nil {
			return nil, fmt.Errorf("sqlite: decoding mentions for generation %s: %w", generation.ID, err)
		}
		generations = append(generations, generation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating generations: %w", err)
	}

	return generations, nil
}
