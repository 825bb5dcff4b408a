package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// handleHome serves the web client's index file from the static dir.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.Server.StaticDir, "index.html"))
}

// respondJSON writes v as the response body with the JSON content type.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// respondWithError sends the API's uniform error body. The underlying cause
// is logged server-side only and never echoed to the client.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	s.respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithValidationError maps a validation failure to a 400 response.
func (s *Server) respondWithValidationError(w http.ResponseWriter, r *http.Request, verr *ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"field":  verr.Field,
	}).Warn("Validation failed")

	s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
}
