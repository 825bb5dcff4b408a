package server

import (
	"encoding/json"
	"io"
	"net/http"

	"mathemelody/internal/render"
	"mathemelody/pkg/models"
)

// handleSubmitRender queues an offline WAV render of a visible composition
// and responds 202 with the job for polling.
func (s *Server) handleSubmitRender(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	callerID, _ := userID(r)

	var req struct {
		Loops int `json:"loops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Loops == 0 {
		req.Loops = 1
	}
	if req.Loops < 1 || req.Loops > s.config.Render.MaxLoops {
		s.respondWithValidationError(w, r, &ValidationError{
			Field:   "loops",
			Message: "Loops out of range",
		})
		return
	}

	comp := s.visibleComposition(w, r, id, callerID)
	if comp == nil {
		return
	}

	user, err := s.db.GetUserByID(callerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not load user", err)
		return
	}

	job, err := s.renders.Submit(user, comp, req.Loops)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not start render", err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, job)
}

// handleListRenders returns the caller's render jobs, newest first.
func (s *Server) handleListRenders(w http.ResponseWriter, r *http.Request) {
	callerID, _ := userID(r)
	s.respondJSON(w, http.StatusOK, s.renders.JobsForUser(callerID))
}

// ownRenderJob loads a render job and enforces that the caller owns it,
// writing the error response itself on failure.
func (s *Server) ownRenderJob(w http.ResponseWriter, r *http.Request) *models.RenderJob {
	jobID := r.PathValue("id")
	job, exists := s.renders.GetJob(jobID)
	callerID, _ := userID(r)
	if !exists || job.UserID != callerID {
		s.respondWithError(w, r, http.StatusNotFound, "Render job not found", nil)
		return nil
	}
	return job
}

// handleGetRender returns one of the caller's render jobs.
func (s *Server) handleGetRender(w http.ResponseWriter, r *http.Request) {
	if job := s.ownRenderJob(w, r); job != nil {
		s.respondJSON(w, http.StatusOK, job)
	}
}

// handleRenderFile streams the finished WAV of a completed render.
// http.ServeFile handles range requests for free.
func (s *Server) handleRenderFile(w http.ResponseWriter, r *http.Request) {
	job := s.ownRenderJob(w, r)
	if job == nil {
		return
	}
	if job.Status != render.StatusCompleted || job.OutputPath == "" {
		s.respondWithError(w, r, http.StatusConflict, "Render is not finished", nil)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, job.OutputPath)
}
