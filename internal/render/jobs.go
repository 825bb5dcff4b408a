package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mathemelody/internal/config"
	"mathemelody/internal/database"
	"mathemelody/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Render job lifecycle states
const (
	StatusPending   = "pending"
	StatusRendering = "rendering"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Manager runs composition renders in the background. Jobs live in memory
// for fast polling and are mirrored to the render_jobs table so history
// survives restarts.
type Manager struct {
	config  *config.RenderConfig
	db      *database.Database
	logger  *logrus.Logger
	jobs    map[string]*models.RenderJob
	jobsMux sync.RWMutex
	sem     chan struct{} // bounds concurrent renders
}

// NewManager creates a render manager, ensures the output directory exists
// and restores persisted job history. Jobs that were mid-render when the
// process died are marked failed.
func NewManager(cfg *config.RenderConfig, db *database.Database, logger *logrus.Logger) (*Manager, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create render output directory: %w", err)
	}

	m := &Manager{
		config: cfg,
		db:     db,
		logger: logger,
		jobs:   make(map[string]*models.RenderJob),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}

	if err := m.restoreJobs(); err != nil {
		return nil, err
	}
	return m, nil
}

// restoreJobs loads persisted jobs into memory at startup.
func (m *Manager) restoreJobs() error {
	jobs, err := m.db.GetRenderJobs()
	if err != nil {
		return fmt.Errorf("failed to load render jobs: %w", err)
	}

	for i := range jobs {
		job := jobs[i]
		if job.Status == StatusPending || job.Status == StatusRendering {
			// Interrupted by a restart; the render goroutine is gone.
			job.Status = StatusFailed
			job.Error = "interrupted by server restart"
			now := time.Now()
			job.CompletedAt = &now
			if err := m.db.UpsertRenderJob(&job); err != nil {
				m.logger.WithError(err).WithField("job_id", job.ID).Warn("Could not persist interrupted render job")
			}
		}
		m.jobs[job.ID] = &job
	}
	return nil
}

// Submit queues a render of the given composition for the given user and
// starts it in the background.
func (m *Manager) Submit(user *models.User, comp *models.Composition, loops int) (*models.RenderJob, error) {
	if loops < 1 || loops > m.config.MaxLoops {
		return nil, fmt.Errorf("loops must be between 1 and %d", m.config.MaxLoops)
	}

	job := &models.RenderJob{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		CompositionID: comp.ID,
		Title:         comp.Title,
		Loops:         loops,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}

	m.jobsMux.Lock()
	m.jobs[job.ID] = job
	m.jobsMux.Unlock()

	if err := m.db.UpsertRenderJob(job); err != nil {
		return nil, err
	}

	doc := models.CompositionFile{
		Title:     comp.Title,
		Equations: comp.Equations,
		Settings:  comp.Settings,
	}

	// Start render in background
	go m.process(job.ID, user.Username, doc, loops)

	return m.snapshot(job.ID), nil
}

// process runs one render end to end: synthesize, encode, persist.
func (m *Manager) process(jobID, username string, doc models.CompositionFile, loops int) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	m.updateJob(jobID, StatusRendering, 10, "", "")

	failedSteps := 0
	buf, err := Render(doc, loops, func(index int, err error) {
		failedSteps++
		m.logger.WithError(err).WithFields(logrus.Fields{
			"job_id": jobID,
			"step":   index + 1,
		}).Debug("Step evaluation failed during render")
	})
	if err != nil {
		m.updateJob(jobID, StatusFailed, 0, err.Error(), "")
		return
	}

	m.updateJob(jobID, StatusRendering, 70, "", "")

	userDir := filepath.Join(m.config.OutputDir, sanitizeUsername(username))
	if err := os.MkdirAll(userDir, 0755); err != nil {
		m.updateJob(jobID, StatusFailed, 0, fmt.Sprintf("failed to create user render folder: %v", err), "")
		return
	}

	outputPath := filepath.Join(userDir, jobID+".wav")
	if err := WriteWAV(outputPath, buf); err != nil {
		m.updateJob(jobID, StatusFailed, 0, err.Error(), "")
		return
	}

	m.updateJob(jobID, StatusCompleted, 100, "", outputPath)
	m.logger.WithFields(logrus.Fields{
		"job_id":       jobID,
		"output_path":  outputPath,
		"failed_steps": failedSteps,
	}).Info("Render completed")
}

// updateJob mutates a job's status and mirrors the change to the database.
func (m *Manager) updateJob(jobID, status string, progress int, errMsg, outputPath string) {
	m.jobsMux.Lock()
	job, exists := m.jobs[jobID]
	if !exists {
		m.jobsMux.Unlock()
		return
	}
	job.Status = status
	job.Progress = progress
	if errMsg != "" {
		job.Error = errMsg
	}
	if outputPath != "" {
		job.OutputPath = outputPath
	}
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
	persisted := *job
	m.jobsMux.Unlock()

	if err := m.db.UpsertRenderJob(&persisted); err != nil {
		m.logger.WithError(err).WithField("job_id", jobID).Warn("Could not persist render job update")
	}
}

// snapshot returns a copy of a job so callers never share the live struct.
func (m *Manager) snapshot(jobID string) *models.RenderJob {
	m.jobsMux.RLock()
	defer m.jobsMux.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil
	}
	copied := *job
	return &copied
}

// GetJob returns a render job by ID.
func (m *Manager) GetJob(jobID string) (*models.RenderJob, bool) {
	job := m.snapshot(jobID)
	return job, job != nil
}

// JobsForUser returns a user's render jobs, newest first.
func (m *Manager) JobsForUser(userID int) []models.RenderJob {
	m.jobsMux.RLock()
	defer m.jobsMux.RUnlock()

	jobs := make([]models.RenderJob, 0)
	for _, job := range m.jobs {
		if job.UserID == userID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// CleanupCompletedJobs removes completed/failed jobs older than maxAge,
// together with their output files and persisted rows.
func (m *Manager) CleanupCompletedJobs(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	m.jobsMux.Lock()
	var removed []*models.RenderJob
	for id, job := range m.jobs {
		if job.Status != StatusCompleted && job.Status != StatusFailed {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			removed = append(removed, job)
			delete(m.jobs, id)
		}
	}
	m.jobsMux.Unlock()

	for _, job := range removed {
		if job.OutputPath != "" {
			if err := os.Remove(job.OutputPath); err != nil && !os.IsNotExist(err) {
				m.logger.WithError(err).WithField("output_path", job.OutputPath).Warn("Could not remove rendered file")
			}
		}
		if err := m.db.DeleteRenderJob(job.ID); err != nil {
			m.logger.WithError(err).WithField("job_id", job.ID).Warn("Could not delete render job record")
		}
	}

	if len(removed) > 0 {
		m.logger.WithField("removed", len(removed)).Info("Cleaned up old render jobs")
	}
}

// sanitizeUsername makes a username safe to use as a folder name.
func sanitizeUsername(username string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "."}
	result := username
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return strings.TrimSpace(result)
}
