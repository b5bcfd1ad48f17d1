package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meltforce/liftlog/internal/models"
)

// ErrNotFound is returned when a requested document does not exist for the
// given owner.
var ErrNotFound = errors.New("not found")

// SaveTemplate upserts a template document, owner-scoped. Last write wins.
func (db *DB) SaveTemplate(ctx context.Context, t *models.WorkoutTemplate) error {
	exercises, err := json.Marshal(t.Exercises)
	if err != nil {
		return fmt.Errorf("encoding template exercises: %w", err)
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_templates (id, owner_id, name, description, tags, archived, exercises, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, description = EXCLUDED.description,
		   tags = EXCLUDED.tags, archived = EXCLUDED.archived,
		   exercises = EXCLUDED.exercises, updated_at = EXCLUDED.updated_at`,
		t.ID, t.OwnerID, t.Name, t.Description, t.Tags, t.Archived, exercises, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a single template by owner and id.
func (db *DB) GetTemplate(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, owner_id, name, description, tags, archived, exercises, created_at, updated_at
		 FROM workout_templates
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID)

	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}
	return t, nil
}

// ListTemplates retrieves an owner's templates, newest first. Archived
// templates are excluded unless includeArchived is set.
func (db *DB) ListTemplates(ctx context.Context, ownerID int, includeArchived bool) ([]models.WorkoutTemplate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, owner_id, name, description, tags, archived, exercises, created_at, updated_at
		 FROM workout_templates
		 WHERE owner_id = $1 AND (archived = false OR $2)
		 ORDER BY updated_at DESC`,
		ownerID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// ArchiveTemplate soft-deletes a template. Normal flows archive rather than
// hard-delete.
func (db *DB) ArchiveTemplate(ctx context.Context, ownerID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_templates SET archived = true, updated_at = now()
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("archiving template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.WorkoutTemplate, error) {
	var t models.WorkoutTemplate
	var exercises []byte
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &t.Tags, &t.Archived,
		&exercises, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exercises, &t.Exercises); err != nil {
		return nil, fmt.Errorf("decoding template exercises: %w", err)
	}
	return &t, nil
}
