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

// CharacterDB implements repository.CharacterRepository.
//
// image_ids is persisted as a JSON array. SQLite has no native array type
// and the IDs are only ever read back as a whole, never queried
// individually, so a serialized column beats a join table here.
type CharacterDB struct {
	conn *sql.DB
}

var _ repository.CharacterRepository = (*CharacterDB)(nil)

func (c *CharacterDB) Create(ctx context.Context, character *model.Character) error {
	character.ID = xid.New().String()
	character.CreatedAt = time.Now()

	imageIDs, err := json.Marshal(character.ImageIDs)
	if err != nil {
		return fmt.Errorf("sqlite: encoding image ids: %w", err)
	}

	_, err = c.conn.ExecContext(ctx,
		`INSERT INTO characters (id, user_id, name, image_ids, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		character.ID, character.UserID, character.Name, string(imageIDs), character.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating character: %w", err)
	}

	return nil
}

func (c *CharacterDB) GetByID(ctx context.Context, id string) (*model.Character, error) {
	var (
		character model.Character
		imageIDs  string
	)
	err := c.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, image_ids, created_at
		 FROM characters WHERE id = ?`, id,
	).Scan(&character.ID, &character.UserID, &character.Name, &imageIDs, &character.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("character", id)
		}
		return nil, fmt.Errorf("sqlite: getting character %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(imageIDs), &character.ImageIDs); err != nil {
		return nil, fmt.Errorf("sqlite: decoding image ids for character %s: %w", id, err)
	}

	return &character, nil
}

// ListByUser returns the user's characters newest first. The id tiebreak
// keeps ordering deterministic for records created in the same instant
// (xid is time-ordered).
func (c *CharacterDB) ListByUser(ctx context.Context, userID string) ([]model.Character, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT id, user_id, name, image_ids, created_at
		 FROM characters
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing characters: %w", err)
	}
	defer rows.Close()

	characters := []model.Character{}
	for rows.Next() {
		var (
			character model.Character
			imageIDs  string
		)
		if err := rows.Scan(
			&character.ID, &character.UserID, &character.Name, &imageIDs, &character.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning character row: %w", err)
		}
		if err := json.Unmarshal([]byte(imageIDs), &character.ImageIDs); err != nil {
			return nil, fmt.Errorf("sqlite: decoding image ids for character %s: %w", character.ID, err)
		}
		characters = append(characters, character)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating characters: %w", err)
	}

	return characters, nil
}

func (c *CharacterDB) Update(ctx context.Context, character *model.Character) error {
	imageIDs, err := json.Marshal(character.ImageIDs)
	if err != nil {
		return fmt.Errorf("sqlite: encoding image ids: %w", err)
	}

	result, err := c.conn.ExecContext(ctx,
		`UPDATE characters SET name = ?, image_ids = ? WHERE id = ?`,
		character.Name, string(imageIDs), character.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating character %s: %w", character.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("character", character.ID)
	}

	return nil
}

func (c *CharacterDB) Delete(ctx context.Context, id string) error {
	result, err := c.conn.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting character %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("character", id)
	}

	return nil
}
