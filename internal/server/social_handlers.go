package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mathemelody/internal/database"
	"mathemelody/pkg/models"
)

// visibleComposition loads a composition and enforces public-or-owned
// visibility, writing the error response itself on failure.
func (s *Server) visibleComposition(w http.ResponseWriter, r *http.Request, id, viewerID int) *models.Composition {
	comp, err := s.db.GetComposition(id, viewerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
			return nil
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not load composition", err)
		return nil
	}
	if !comp.Public && comp.OwnerID != viewerID {
		s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
		return nil
	}
	return comp
}

// handleToggleLike flips the caller's like on a visible composition.
func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	callerID, _ := userID(r)

	if comp := s.visibleComposition(w, r, id, callerID); comp == nil {
		return
	}

	liked, count, err := s.db.ToggleLike(id, callerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not toggle like", err)
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"liked":     liked,
		"likeCount": count,
	})
}

// handleAddComment stores a comment on a visible composition.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	callerID, _ := userID(r)

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := validateCommentContent(req.Content); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}

	if comp := s.visibleComposition(w, r, id, callerID); comp == nil {
		return
	}

	comment, err := s.db.AddComment(id, callerID, req.Content)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not add comment", err)
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusCreated, comment)
}

// handleGetComments lists a visible composition's comments, newest first.
func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	viewerID, _ := userID(r)

	if comp := s.visibleComposition(w, r, id, viewerID); comp == nil {
		return
	}

	comments, err := s.db.GetComments(id)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not list comments", err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	s.respondJSON(w, http.StatusOK, comments)
}

// handleDeleteComment removes a comment its author no longer wants. The
// delete is conditional on authorship; zero rows affected splits into 404
// or 403 by an existence probe.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	callerID, _ := userID(r)

	deleted, err := s.db.DeleteComment(id, callerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not delete comment", err)
		return
	}
	if !deleted {
		exists, err := s.db.CommentExists(id)
		if err != nil {
			s.respondWithError(w, r, http.StatusInternalServerError, "Could not check comment", err)
			return
		}
		if exists {
			s.respondWithError(w, r, http.StatusForbidden, "You did not write this comment", nil)
		} else {
			s.respondWithError(w, r, http.StatusNotFound, "Comment not found", nil)
		}
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted"})
}
