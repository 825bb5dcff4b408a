package server

import (
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"mathemelody/internal/engine"
	"mathemelody/internal/synth"
	"mathemelody/pkg/models"
)

// Field limits for user-submitted content
const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxEquationLength    = 256
	maxCommentLength     = 1000
	minUsernameLength    = 3
	maxUsernameLength    = 30
	minPasswordLength    = 8
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// validateUsername checks the username shape: 3-30 word characters.
func validateUsername(username string) *ValidationError {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username must be %d-%d characters", minUsernameLength, maxUsernameLength),
		}
	}

	for _, r := range username {
		isWordChar := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_'
		if !isWordChar {
			return &ValidationError{
				Field:   "username",
				Message: "Username may only contain letters, digits and underscores",
			}
		}
	}

	return nil
}

// validateEmail checks for a parseable address.
func validateEmail(email string) *ValidationError {
	if email == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	return nil
}

// validatePassword enforces the minimum length only; composition rules are
// the user's business.
func validatePassword(password string) *ValidationError {
	if len(password) < minPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength),
		}
	}
	return nil
}

// validateTitle checks a composition title.
func validateTitle(title string) *ValidationError {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if len(title) > maxTitleLength {
		return &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("Title too long (max %d characters)", maxTitleLength),
		}
	}
	return nil
}

// validateDescription checks a composition description.
func validateDescription(description string) *ValidationError {
	if len(description) > maxDescriptionLength {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("Description too long (max %d characters)", maxDescriptionLength),
		}
	}
	return nil
}

// validateEquations enforces the grid bounds on a stored equation list.
// Empty expressions are legal (silent steps); expressions are not parsed
// here because playback tolerates invalid ones.
func validateEquations(equations []string) *ValidationError {
	if len(equations) < engine.MinSlots || len(equations) > engine.MaxSlots {
		return &ValidationError{
			Field:   "equations",
			Message: fmt.Sprintf("Equations must have %d-%d entries", engine.MinSlots, engine.MaxSlots),
		}
	}
	for i, expr := range equations {
		if len(expr) > maxEquationLength {
			return &ValidationError{
				Field:   "equations",
				Message: fmt.Sprintf("Equation %d too long (max %d characters)", i+1, maxEquationLength),
			}
		}
	}
	return nil
}

// validateSettings checks the playback settings blob.
func validateSettings(settings models.Settings) *ValidationError {
	if settings.Tempo < 1 || settings.Tempo > engine.MaxTempo {
		return &ValidationError{
			Field:   "settings",
			Message: fmt.Sprintf("Tempo must be between 1 and %d BPM", engine.MaxTempo),
		}
	}
	if _, err := synth.ParseWave(settings.WaveType); err != nil {
		return &ValidationError{Field: "settings", Message: err.Error()}
	}
	return nil
}

// validateCommentContent checks a comment body.
func validateCommentContent(content string) *ValidationError {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "Comment content is required"}
	}
	if len(content) > maxCommentLength {
		return &ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("Comment too long (max %d characters)", maxCommentLength),
		}
	}
	return nil
}

// pathID parses the {id} path segment as a positive integer.
func pathID(r *http.Request) (int, *ValidationError) {
	idStr := r.PathValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "id", Message: "ID must be a positive integer"}
	}
	return id, nil
}

// galleryParams parses and bounds the gallery query parameters.
func (s *Server) galleryParams(r *http.Request) (sort string, limit, offset int, verr *ValidationError) {
	sort = r.URL.Query().Get("sort")
	if sort == "" {
		sort = "recent"
	}
	switch sort {
	case "recent", "popular", "trending":
	default:
		return "", 0, 0, &ValidationError{
			Field:   "sort",
			Message: "Sort must be one of recent, popular, trending",
		}
	}

	limit = s.config.Gallery.PageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", 0, 0, &ValidationError{Field: "limit", Message: "Limit must be a positive integer"}
		}
		limit = n
	}
	if limit > s.config.Gallery.MaxPageSize {
		limit = s.config.Gallery.MaxPageSize
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return "", 0, 0, &ValidationError{Field: "offset", Message: "Offset must not be negative"}
		}
		offset = n
	}

	return sort, limit, offset, nil
}
