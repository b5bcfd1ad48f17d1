package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meltforce/liftlog/internal/models"
)

// SaveInstance upserts a workout instance document, owner-scoped.
func (db *DB) SaveInstance(ctx context.Context, w *models.WorkoutInstance) error {
	exercises, err := json.Marshal(w.Exercises)
	if err != nil {
		return fmt.Errorf("encoding instance exercises: %w", err)
	}
	var changes []byte
	if w.Changes != nil {
		changes, err = json.Marshal(w.Changes)
		if err != nil {
			return fmt.Errorf("encoding instance changes: %w", err)
		}
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_instances (id, owner_id, template_id, template_name, started_at, finished_at, is_active, exercises, changes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
		   template_name = EXCLUDED.template_name, finished_at = EXCLUDED.finished_at,
		   is_active = EXCLUDED.is_active, exercises = EXCLUDED.exercises,
		   changes = EXCLUDED.changes`,
		w.ID, w.OwnerID, w.TemplateID, w.TemplateName, w.StartedAt, w.FinishedAt,
		w.IsActive, exercises, changes)
	if err != nil {
		return fmt.Errorf("saving instance: %w", err)
	}
	return nil
}

// GetInstance retrieves a single workout instance by owner and id.
func (db *DB) GetInstance(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutInstance, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, owner_id, template_id, template_name, started_at, finished_at, is_active, exercises, changes
		 FROM workout_instances
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID)

	w, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying instance: %w", err)
	}
	return w, nil
}

// QueryInstances retrieves an owner's workout history in a time range, most
// recent first.
func (db *DB) QueryInstances(ctx context.Context, ownerID int, start, end time.Time) ([]models.WorkoutInstance, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, owner_id, template_id, template_name, started_at, finished_at, is_active, exercises, changes
		 FROM workout_instances
		 WHERE owner_id = $1 AND started_at >= $2 AND started_at < $3
		 ORDER BY started_at DESC`,
		ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// RecentFinishedInstances returns the owner's most recent finished workouts,
// most recent first, capped at limit. Feeds the previous-performance
// resolver; satisfies engine.HistorySource.
func (db *DB) RecentFinishedInstances(ctx context.Context, ownerID, limit int) ([]models.WorkoutInstance, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, owner_id, template_id, template_name, started_at, finished_at, is_active, exercises, changes
		 FROM workout_instances
		 WHERE owner_id = $1 AND is_active = false
		 ORDER BY finished_at DESC NULLS LAST
		 LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying finished instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// DeleteInstance removes a workout from history.
func (db *DB) DeleteInstance(ctx context.Context, ownerID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_instances WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectInstances(rows pgx.Rows) ([]models.WorkoutInstance, error) {
	var result []models.WorkoutInstance
	for rows.Next() {
		w, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func scanInstance(row pgx.Row) (*models.WorkoutInstance, error) {
	var w models.WorkoutInstance
	var exercises, changes []byte
	if err := row.Scan(&w.ID, &w.OwnerID, &w.TemplateID, &w.TemplateName,
		&w.StartedAt, &w.FinishedAt, &w.IsActive, &exercises, &changes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exercises, &w.Exercises); err != nil {
		return nil, fmt.Errorf("decoding instance exercises: %w", err)
	}
	if len(changes) > 0 {
		w.Changes = &models.WorkoutChangeSet{}
		if err := json.Unmarshal(changes, w.Changes); err != nil {
			return nil, fmt.Errorf("decoding instance changes: %w", err)
		}
	}
	return &w, nil
}
