package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/engine"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

const testAPIKey = "test-key"

// memStore is an in-memory Store for handler tests.
type memStore struct {
	templates map[uuid.UUID]models.WorkoutTemplate
	instances map[uuid.UUID]models.WorkoutInstance

	saveInstanceErr error // when set, SaveInstance fails with it
}

func newMemStore() *memStore {
	return &memStore{
		templates: map[uuid.UUID]models.WorkoutTemplate{},
		instances: map[uuid.UUID]models.WorkoutInstance{},
	}
}

func (m *memStore) SaveTemplate(_ context.Context, t *models.WorkoutTemplate) error {
	m.templates[t.ID] = *t
	return nil
}

func (m *memStore) GetTemplate(_ context.Context, _ int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTemplates(_ context.Context, _ int, includeArchived bool) ([]models.WorkoutTemplate, error) {
	var out []models.WorkoutTemplate
	for _, t := range m.templates {
		if t.Archived && !includeArchived {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) ArchiveTemplate(_ context.Context, _ int, id uuid.UUID) error {
	t, ok := m.templates[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Archived = true
	m.templates[id] = t
	return nil
}

func (m *memStore) SaveInstance(_ context.Context, w *models.WorkoutInstance) error {
	if m.saveInstanceErr != nil {
		return m.saveInstanceErr
	}
	m.instances[w.ID] = *w
	return nil
}

func (m *memStore) GetInstance(_ context.Context, _ int, id uuid.UUID) (*models.WorkoutInstance, error) {
	w, ok := m.instances[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &w, nil
}

func (m *memStore) QueryInstances(_ context.Context, _ int, _, _ time.Time) ([]models.WorkoutInstance, error) {
	var out []models.WorkoutInstance
	for _, w := range m.instances {
		out = append(out, w)
	}
	return out, nil
}

func (m *memStore) RecentFinishedInstances(_ context.Context, _, _ int) ([]models.WorkoutInstance, error) {
	var out []models.WorkoutInstance
	for _, w := range m.instances {
		if !w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) DeleteInstance(_ context.Context, _ int, id uuid.UUID) error {
	if _, ok := m.instances[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

func newTestServer(store Store) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, engine.NewSessionManager(nil, log), testAPIKey, log)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func seedTemplate(t *testing.T, store *memStore) models.WorkoutTemplate {
	t.Helper()
	reps := 5
	weight := 185.0
	tpl := models.WorkoutTemplate{
		ID:      uuid.New(),
		OwnerID: 1,
		Name:    "Push Day",
		Exercises: []models.Exercise{{
			ID: uuid.New(), Name: "Bench Press", Type: models.ExerciseStrength, Position: 1,
			Sets: []models.Set{
				{ID: uuid.New(), Number: 1, TargetReps: &reps, TargetWeightKg: &weight},
				{ID: uuid.New(), Number: 2, TargetReps: &reps, TargetWeightKg: &weight},
			},
		}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	store.templates[tpl.ID] = tpl
	return tpl
}

func TestCreateTemplate(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/templates", map[string]any{
		"name": "Leg Day",
		"exercises": []map[string]any{
			{"name": "Squat", "type": "strength", "sets": []map[string]any{{"target_reps": 5, "target_weight_kg": 140}}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var created models.WorkoutTemplate
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == uuid.Nil || created.OwnerID != 1 {
		t.Errorf("created = %+v, want assigned ID and owner 1", created)
	}
	if created.Exercises[0].ID == uuid.Nil || created.Exercises[0].Position != 1 {
		t.Errorf("exercise IDs/positions not assigned: %+v", created.Exercises[0])
	}
	if created.Exercises[0].Sets[0].Number != 1 {
		t.Errorf("set numbers not assigned: %+v", created.Exercises[0].Sets[0])
	}
}

func TestCreateTemplateRequiresName(t *testing.T) {
	srv := newTestServer(newMemStore())
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/templates", map[string]any{"name": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	srv := newTestServer(newMemStore())
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/templates/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	tpl := seedTemplate(t, store)

	// No session yet.
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("current before start: status = %d, want 404", rec.Code)
	}

	// Start.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var view sessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Instance.IsActive || view.Instance.TemplateID != tpl.ID {
		t.Errorf("started instance = %+v", view.Instance)
	}

	// A second session is refused.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID}); rec.Code != http.StatusConflict {
		t.Fatalf("second start: status = %d, want 409", rec.Code)
	}

	// Edit: record set 1 heavier and complete it.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "record_set", "exercise": 0, "set": 0, "reps": 6, "weight_kg": 190,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("record: status = %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "toggle_complete", "exercise": 0, "set": 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d: %s", rec.Code, rec.Body)
	}

	// Bad command is a 400, not a 500.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "record_set", "exercise": 9, "set": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad command: status = %d, want 400", rec.Code)
	}

	// Live change preview.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current/changes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("changes: status = %d: %s", rec.Code, rec.Body)
	}
	var cs models.WorkoutChangeSet
	if err := json.NewDecoder(rec.Body).Decode(&cs); err != nil {
		t.Fatal(err)
	}
	if len(cs.Modified) != 1 || cs.Modified[0].Name != "Bench Press" {
		t.Errorf("preview changeset = %+v, want Bench Press modified", cs)
	}

	// Pause and resume round-trip.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/pause", nil); rec.Code != http.StatusOK {
		t.Fatalf("pause: status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/resume", nil); rec.Code != http.StatusOK {
		t.Fatalf("resume: status = %d", rec.Code)
	}

	// Finish with template_and_values.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/finish", map[string]any{
		"strategy": "template_and_values",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: status = %d: %s", rec.Code, rec.Body)
	}
	var result struct {
		Instance *models.WorkoutInstance  `json:"instance"`
		Changes  *models.WorkoutChangeSet `json:"changes"`
		Template *models.WorkoutTemplate  `json:"template"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Instance.IsActive || result.Instance.FinishedAt == nil {
		t.Errorf("finished instance = %+v, want inactive with finished_at", result.Instance)
	}
	if result.Template == nil || *result.Template.Exercises[0].Sets[0].TargetReps != 6 {
		t.Errorf("reconciled template = %+v, want set 1 target 6", result.Template)
	}

	// Both documents were persisted.
	if _, ok := store.instances[result.Instance.ID]; !ok {
		t.Error("finished instance not persisted")
	}
	if saved, ok := store.templates[tpl.ID]; !ok || *saved.Exercises[0].Sets[0].TargetReps != 6 {
		t.Error("reconciled template not persisted")
	}

	// Slot is free again.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID}); rec.Code != http.StatusCreated {
		t.Errorf("start after finish: status = %d, want 201", rec.Code)
	}
}

func TestFinishKeepOriginalLeavesTemplate(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	tpl := seedTemplate(t, store)

	doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID})
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "record_set", "exercise": 0, "set": 0, "reps": 8, "weight_kg": 200,
	})
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "toggle_complete", "exercise": 0, "set": 0,
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/finish", map[string]any{"strategy": "keep_original"})
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: status = %d: %s", rec.Code, rec.Body)
	}

	saved := store.templates[tpl.ID]
	if *saved.Exercises[0].Sets[0].TargetReps != 5 {
		t.Errorf("keep_original rewrote the template: %+v", saved.Exercises[0].Sets[0])
	}
	// The workout itself is still in history with its changeset.
	if len(store.instances) != 1 {
		t.Fatalf("instances persisted = %d, want 1", len(store.instances))
	}
	for _, inst := range store.instances {
		if inst.Changes == nil || len(inst.Changes.Modified) != 1 {
			t.Errorf("instance changes = %+v, want Bench Press modified", inst.Changes)
		}
	}
}

func TestFinishRejectsUnknownStrategy(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	tpl := seedTemplate(t, store)
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/finish", map[string]any{"strategy": "merge_all"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	// Session survives the rejected request.
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil); rec.Code != http.StatusOK {
		t.Errorf("session gone after rejected finish: status = %d", rec.Code)
	}
}

func TestFinishSurvivesFailedPersist(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	tpl := seedTemplate(t, store)

	doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID})
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "record_set", "exercise": 0, "set": 0, "reps": 6, "weight_kg": 190,
	})
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/commands", map[string]any{
		"kind": "toggle_complete", "exercise": 0, "set": 0,
	})

	// The store goes down at the worst moment.
	store.saveInstanceErr = errors.New("connection refused")
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/finish", map[string]any{"strategy": "values_only"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("finish during outage: status = %d, want 500", rec.Code)
	}

	// The session must still be there, active, with the edits intact.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session gone after failed persist: status = %d", rec.Code)
	}
	var view sessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Instance.IsActive || view.Instance.FinishedAt != nil {
		t.Errorf("instance after failed finish = %+v, want active", view.Instance)
	}
	if !view.Instance.Exercises[0].Sets[0].Completed {
		t.Error("recorded set lost across the failed finish")
	}

	// The store recovers; the retry succeeds and persists everything.
	store.saveInstanceErr = nil
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/current/finish", map[string]any{"strategy": "values_only"})
	if rec.Code != http.StatusOK {
		t.Fatalf("retry finish: status = %d: %s", rec.Code, rec.Body)
	}
	if len(store.instances) != 1 {
		t.Errorf("instances persisted = %d, want 1", len(store.instances))
	}
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil); rec.Code != http.StatusNotFound {
		t.Errorf("session still active after successful retry: status = %d", rec.Code)
	}
}

func TestDiscardSession(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	tpl := seedTemplate(t, store)
	doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"template_id": tpl.ID})

	if rec := doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/current", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("discard: status = %d, want 204", rec.Code)
	}
	if len(store.instances) != 0 {
		t.Error("discarded session was persisted")
	}
}

func TestPreviousPerformanceEndpoint(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)

	reps := 5
	weight := 190.0
	finished := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	inst := models.WorkoutInstance{
		ID: uuid.New(), OwnerID: 1, StartedAt: finished.Add(-time.Hour), FinishedAt: &finished,
		Exercises: []models.Exercise{{
			ID: uuid.New(), Name: "Bench Press", Type: models.ExerciseStrength,
			Sets: []models.Set{{ID: uuid.New(), Number: 1, ActualReps: &reps, ActualWeightKg: &weight, Completed: true}},
		}},
	}
	store.instances[inst.ID] = inst

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/previous?exercises=Bench+Press,Deadlift", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var got map[string]engine.PreviousPerformance
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if perf, ok := got["bench press"]; !ok || *perf.Sets[0].WeightKg != 190 {
		t.Errorf("result = %+v, want bench press at 190", got)
	}
	if _, ok := got["deadlift"]; ok {
		t.Error("deadlift should be absent (no history)")
	}
}

func TestPreviousPerformanceRequiresParam(t *testing.T) {
	srv := newTestServer(newMemStore())
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/previous", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
