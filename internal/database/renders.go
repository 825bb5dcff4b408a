package database

import (
	"database/sql"

	"mathemelody/pkg/models"
)

// UpsertRenderJob inserts or updates a render job record by ID so the job
// history survives restarts.
func (db *Database) UpsertRenderJob(job *models.RenderJob) error {
	_, err := db.conn.Exec(`
		INSERT INTO render_jobs (id, user_id, composition_id, title, loops, status, progress, error, output_path, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			progress=excluded.progress,
			error=excluded.error,
			output_path=excluded.output_path,
			completed_at=excluded.completed_at
	`, job.ID, job.UserID, job.CompositionID, job.Title, job.Loops,
		job.Status, job.Progress, job.Error, job.OutputPath,
		job.CreatedAt, job.CompletedAt)
	if err != nil {
		db.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to upsert render job")
	}
	return err
}

// GetRenderJobs returns all persisted render jobs, newest first.
func (db *Database) GetRenderJobs() ([]models.RenderJob, error) {
	rows, err := db.conn.Query(`
		SELECT id, user_id, composition_id, title, loops, status, progress, error, output_path, created_at, completed_at
		FROM render_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenderJobRows(rows)
}

// DeleteRenderJob removes a persisted render job record.
func (db *Database) DeleteRenderJob(id string) error {
	_, err := db.conn.Exec("DELETE FROM render_jobs WHERE id = ?", id)
	return err
}

func scanRenderJobRows(rows *sql.Rows) ([]models.RenderJob, error) {
	var jobs []models.RenderJob
	for rows.Next() {
		var job models.RenderJob
		var errMsg, outputPath sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&job.ID, &job.UserID, &job.CompositionID, &job.Title,
			&job.Loops, &job.Status, &job.Progress, &errMsg, &outputPath,
			&job.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		job.Error = errMsg.String
		job.OutputPath = outputPath.String
		if completedAt.Valid {
			t := completedAt.Time
			job.CompletedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
