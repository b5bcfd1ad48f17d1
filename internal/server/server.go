package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/engine"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// defaultOwnerID scopes all documents in this single-user deployment.
const defaultOwnerID = 1

// Store is the document-store surface the handlers need. *storage.DB
// satisfies it.
type Store interface {
	SaveTemplate(ctx context.Context, t *models.WorkoutTemplate) error
	GetTemplate(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutTemplate, error)
	ListTemplates(ctx context.Context, ownerID int, includeArchived bool) ([]models.WorkoutTemplate, error)
	ArchiveTemplate(ctx context.Context, ownerID int, id uuid.UUID) error

	SaveInstance(ctx context.Context, w *models.WorkoutInstance) error
	GetInstance(ctx context.Context, ownerID int, id uuid.UUID) (*models.WorkoutInstance, error)
	QueryInstances(ctx context.Context, ownerID int, start, end time.Time) ([]models.WorkoutInstance, error)
	RecentFinishedInstances(ctx context.Context, ownerID, limit int) ([]models.WorkoutInstance, error)
	DeleteInstance(ctx context.Context, ownerID int, id uuid.UUID) error
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Store
	sessions *engine.SessionManager
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, sessions *engine.SessionManager, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		sessions: sessions,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", s.handleCreateTemplate)
			r.Get("/", s.handleListTemplates)
			r.Get("/{id}", s.handleGetTemplate)
			r.Delete("/{id}", s.handleArchiveTemplate)
			r.Post("/{id}/duplicate", s.handleDuplicateTemplate)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/current", s.handleCurrentSession)
			r.Delete("/current", s.handleDiscardSession)
			r.Post("/current/commands", s.handleSessionCommand)
			r.Post("/current/pause", s.handlePauseSession)
			r.Post("/current/resume", s.handleResumeSession)
			r.Get("/current/changes", s.handleSessionChanges)
			r.Post("/current/finish", s.handleFinishSession)
		})

		r.Get("/workouts", s.handleQueryWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Delete("/workouts/{id}", s.handleDeleteWorkout)

		r.Get("/previous", s.handlePreviousPerformance)
	})
}
