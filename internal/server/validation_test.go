package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"mathemelody/internal/config"
	"mathemelody/pkg/models"

	"github.com/sirupsen/logrus"
)

func createTestValidationServer() *Server {
	cfg := config.DefaultConfig()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	return &Server{
		config: cfg,
		logger: logger,
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		wantError bool
	}{
		{
			name:      "valid username",
			username:  "euler_1707",
			wantError: false,
		},
		{
			name:      "too short",
			username:  "ab",
			wantError: true,
		},
		{
			name:      "too long",
			username:  strings.Repeat("a", 31),
			wantError: true,
		},
		{
			name:      "contains space",
			username:  "not valid",
			wantError: true,
		},
		{
			name:      "contains symbol",
			username:  "user@name",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUsername(tt.username)

			if tt.wantError && err == nil {
				t.Errorf("validateUsername() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateUsername() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		wantError bool
	}{
		{
			name:      "valid email",
			email:     "fourier@example.com",
			wantError: false,
		},
		{
			name:      "empty email",
			email:     "",
			wantError: true,
		},
		{
			name:      "missing domain",
			email:     "fourier@",
			wantError: true,
		},
		{
			name:      "display name form rejected",
			email:     "Joseph Fourier <fourier@example.com>",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEmail(tt.email)

			if tt.wantError && err == nil {
				t.Errorf("validateEmail() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateEmail() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateEquations(t *testing.T) {
	tests := []struct {
		name      string
		equations []string
		wantError bool
	}{
		{
			name:      "single slot",
			equations: []string{"sin(x)"},
			wantError: false,
		},
		{
			name:      "empty slots are legal",
			equations: []string{"", "x^2", ""},
			wantError: false,
		},
		{
			name:      "syntactically broken slot is legal",
			equations: []string{"???"},
			wantError: false,
		},
		{
			name:      "full grid",
			equations: make([]string, 32),
			wantError: false,
		},
		{
			name:      "no slots",
			equations: []string{},
			wantError: true,
		},
		{
			name:      "too many slots",
			equations: make([]string, 33),
			wantError: true,
		},
		{
			name:      "oversized expression",
			equations: []string{strings.Repeat("x+", 200)},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEquations(tt.equations)

			if tt.wantError && err == nil {
				t.Errorf("validateEquations() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateEquations() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name      string
		settings  models.Settings
		wantError bool
	}{
		{
			name:      "valid settings",
			settings:  models.Settings{Tempo: 120, WaveType: "sine"},
			wantError: false,
		},
		{
			name:      "square wave",
			settings:  models.Settings{Tempo: 60, WaveType: "square"},
			wantError: false,
		},
		{
			name:      "zero tempo",
			settings:  models.Settings{Tempo: 0, WaveType: "sine"},
			wantError: true,
		},
		{
			name:      "tempo above ceiling",
			settings:  models.Settings{Tempo: 961, WaveType: "sine"},
			wantError: true,
		},
		{
			name:      "unknown wave",
			settings:  models.Settings{Tempo: 120, WaveType: "theremin"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSettings(tt.settings)

			if tt.wantError && err == nil {
				t.Errorf("validateSettings() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validateSettings() unexpected error: %v", err)
			}
		})
	}
}

func TestGalleryParams(t *testing.T) {
	s := createTestValidationServer()

	tests := []struct {
		name       string
		query      string
		wantSort   string
		wantLimit  int
		wantOffset int
		wantError  bool
	}{
		{
			name:      "defaults",
			query:     "",
			wantSort:  "recent",
			wantLimit: s.config.Gallery.PageSize,
		},
		{
			name:       "explicit params",
			query:      "?sort=popular&limit=5&offset=10",
			wantSort:   "popular",
			wantLimit:  5,
			wantOffset: 10,
		},
		{
			name:      "limit capped at maximum",
			query:     "?limit=10000",
			wantSort:  "recent",
			wantLimit: s.config.Gallery.MaxPageSize,
		},
		{
			name:      "unknown sort",
			query:     "?sort=loudest",
			wantError: true,
		},
		{
			name:      "negative offset",
			query:     "?offset=-1",
			wantError: true,
		},
		{
			name:      "zero limit",
			query:     "?limit=0",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/compositions/public/gallery"+tt.query, nil)
			sort, limit, offset, verr := s.galleryParams(r)

			if tt.wantError {
				if verr == nil {
					t.Fatalf("galleryParams() expected error but got none")
				}
				return
			}
			if verr != nil {
				t.Fatalf("galleryParams() unexpected error: %v", verr)
			}
			if sort != tt.wantSort {
				t.Errorf("sort = %q, want %q", sort, tt.wantSort)
			}
			if limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", limit, tt.wantLimit)
			}
			if offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", offset, tt.wantOffset)
			}
		})
	}
}
