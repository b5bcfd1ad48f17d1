package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/engine"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// sessionView is the wire shape for the active session.
type sessionView struct {
	Instance       *models.WorkoutInstance `json:"instance"`
	ElapsedSeconds int                     `json:"elapsed_seconds"`
	Paused         bool                    `json:"paused"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID uuid.UUID `json:"template_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.TemplateID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template_id is required"})
		return
	}

	tpl, err := s.store.GetTemplate(r.Context(), defaultOwnerID, req.TemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	sess, err := s.sessions.Start(tpl)
	if errors.Is(err, engine.ErrSessionActive) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, s.viewOf(sess))
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Active()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": engine.ErrNoSession.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(sess))
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Discard(); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	var cmd engine.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	err := s.sessions.Apply(cmd)
	if errors.Is(err, engine.ErrNoSession) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(s.sessions.Active()))
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Pause(); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(s.sessions.Active()))
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Resume(); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(s.sessions.Active()))
}

// handleSessionChanges previews what finishing right now would record.
func (s *Server) handleSessionChanges(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Active()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": engine.ErrNoSession.Error()})
		return
	}

	tpl, err := s.store.GetTemplate(r.Context(), defaultOwnerID, sess.Instance.TemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "source template no longer exists"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	cs := engine.DetectChanges(sess.Instance, tpl)
	writeJSON(w, http.StatusOK, cs)
}

// handleFinishSession runs the full reconciliation pipeline: finish the
// session, detect changes against the source template, apply the chosen
// strategy, and persist the instance plus any rewritten template.
func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy models.MergeStrategy `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if !req.Strategy.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown strategy: " + string(req.Strategy)})
		return
	}

	sess := s.sessions.Active()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": engine.ErrNoSession.Error()})
		return
	}

	// The source template may have been archived or deleted mid-session; the
	// workout is still recorded, just without a changeset or template update.
	tpl, err := s.store.GetTemplate(r.Context(), defaultOwnerID, sess.Instance.TemplateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	inst, err := s.sessions.Finish()
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	var updated *models.WorkoutTemplate
	if tpl != nil {
		cs := engine.DetectChanges(inst, tpl)
		inst.Changes = &cs
		updated = engine.ApplyTemplateUpdate(tpl, inst, cs, req.Strategy)
	}

	// The session is released only after both documents are safely stored;
	// a failed write reopens it so the client can retry the finish.
	if err := s.store.SaveInstance(r.Context(), inst); err != nil {
		s.log.Error("persist finished workout", "error", err)
		s.reopenAfterFailedFinish()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if updated != nil {
		if err := s.store.SaveTemplate(r.Context(), updated); err != nil {
			s.log.Error("persist reconciled template", "error", err)
			s.reopenAfterFailedFinish()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	if err := s.sessions.Release(); err != nil {
		s.log.Error("release finished session", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instance": inst,
		"changes":  inst.Changes,
		"template": updated,
	})
}

func (s *Server) reopenAfterFailedFinish() {
	if err := s.sessions.Reopen(); err != nil {
		s.log.Error("reopen session after failed finish", "error", err)
	}
}

func (s *Server) viewOf(sess *engine.Session) sessionView {
	return sessionView{
		Instance:       sess.Instance,
		ElapsedSeconds: sess.Clock.ElapsedSeconds(),
		Paused:         sess.Clock.Paused(),
	}
}
