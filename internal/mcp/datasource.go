package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListTemplates(ctx context.Context, ownerID int, includeArchived bool) ([]models.WorkoutTemplate, error)
	GetTemplate(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutTemplate, error)
	QueryInstances(ctx context.Context, ownerID int, start, end time.Time) ([]models.WorkoutInstance, error)
	GetInstance(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutInstance, error)
	RecentFinishedInstances(ctx context.Context, ownerID, limit int) ([]models.WorkoutInstance, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
