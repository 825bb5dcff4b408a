package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mathemelody/internal/database"
	"mathemelody/pkg/models"
)

// compositionRequest is the body for create and update.
type compositionRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Equations   []string        `json:"equations"`
	Settings    models.Settings `json:"settings"`
	Public      bool            `json:"public"`
}

// validate runs every field check and returns the first failure.
func (req *compositionRequest) validate() *ValidationError {
	if verr := validateTitle(req.Title); verr != nil {
		return verr
	}
	if verr := validateDescription(req.Description); verr != nil {
		return verr
	}
	if verr := validateEquations(req.Equations); verr != nil {
		return verr
	}
	return validateSettings(req.Settings)
}

// handleCreateComposition stores a new composition for the caller.
func (s *Server) handleCreateComposition(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := userID(r)

	var req compositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := req.validate(); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}

	id, err := s.db.InsertComposition(&models.Composition{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Equations:   req.Equations,
		Settings:    req.Settings,
		Public:      req.Public,
	})
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not create composition", err)
		return
	}

	comp, err := s.db.GetComposition(id, ownerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not create composition", err)
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusCreated, comp)
}

// handleMyCompositions lists the caller's compositions, newest first.
func (s *Server) handleMyCompositions(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := userID(r)

	compositions, err := s.db.GetCompositionsByOwner(ownerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not list compositions", err)
		return
	}
	if compositions == nil {
		compositions = []models.Composition{}
	}
	s.respondJSON(w, http.StatusOK, compositions)
}

// handleGetComposition fetches one composition if it is public or owned by
// the caller. Private compositions are indistinguishable from missing ones.
// A successful fetch counts as a play.
func (s *Server) handleGetComposition(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	viewerID, _ := userID(r)

	comp, err := s.db.GetComposition(id, viewerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not load composition", err)
		return
	}

	if !comp.Public && comp.OwnerID != viewerID {
		s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
		return
	}

	if err := s.db.IncrementPlayCount(id); err == nil {
		comp.PlayCount++
	}

	s.respondJSON(w, http.StatusOK, comp)
}

// handleUpdateComposition rewrites a composition's content. The update is
// conditional on ownership; zero rows affected splits into 404 or 403 by an
// existence probe.
func (s *Server) handleUpdateComposition(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	ownerID, _ := userID(r)

	var req compositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if verr := req.validate(); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}

	updated, err := s.db.UpdateComposition(models.Composition{
		ID:          id,
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Equations:   req.Equations,
		Settings:    req.Settings,
		Public:      req.Public,
	})
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not update composition", err)
		return
	}
	if !updated {
		s.respondNotOwner(w, r, id, ownerID)
		return
	}

	comp, err := s.db.GetComposition(id, ownerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not update composition", err)
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusOK, comp)
}

// handleDeleteComposition removes a composition the caller owns. Likes and
// comments cascade with it.
func (s *Server) handleDeleteComposition(w http.ResponseWriter, r *http.Request) {
	id, verr := pathID(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	ownerID, _ := userID(r)

	deleted, err := s.db.DeleteComposition(id, ownerID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not delete composition", err)
		return
	}
	if !deleted {
		s.respondNotOwner(w, r, id, ownerID)
		return
	}

	s.gallery.Invalidate()
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Composition deleted"})
}

// respondNotOwner distinguishes "no such composition" from "not yours"
// after a conditional write touched zero rows. The honest 403 is reserved
// for compositions the caller can see; a private composition stays a 404
// so its existence is not leaked by write attempts.
func (s *Server) respondNotOwner(w http.ResponseWriter, r *http.Request, id, callerID int) {
	comp, err := s.db.GetComposition(id, callerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not check composition", err)
		return
	}
	if comp.Public {
		s.respondWithError(w, r, http.StatusForbidden, "You do not own this composition", nil)
	} else {
		s.respondWithError(w, r, http.StatusNotFound, "Composition not found", nil)
	}
}

// handleGallery serves the public feed. Pages are cached per
// sort/limit/offset; the feed carries no viewer-specific fields because the
// endpoint is anonymous.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	sort, limit, offset, verr := s.galleryParams(r)
	if verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}

	if page, ok := s.gallery.GetPage(sort, limit, offset); ok {
		s.respondJSON(w, http.StatusOK, page)
		return
	}

	compositions, total, err := s.db.Gallery(sort, limit, offset, 0)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not load gallery", err)
		return
	}
	if compositions == nil {
		compositions = []models.Composition{}
	}

	page := &models.GalleryPage{
		Compositions: compositions,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		Sort:         sort,
	}
	s.gallery.SetPage(sort, limit, offset, page)
	s.respondJSON(w, http.StatusOK, page)
}
