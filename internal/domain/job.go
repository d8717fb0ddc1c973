package domain

import (
	"database/sql"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one durable unit of work: one input transcoded to one target profile.
// A request for "all" profiles fans out into independent Jobs at admission.
type Job struct {
	ID               int64        `db:"id"`
	OwnerID          int64        `db:"owner_id"`
	SourceRef        string       `db:"source_ref"`
	OriginalFilename string       `db:"original_filename"`
	OriginalSize     int64        `db:"original_size"`
	Profile          string       `db:"profile"`
	Status           JobStatus    `db:"status"`
	Progress         float64      `db:"progress"`
	ErrorMessage     string       `db:"error_message"`
	CreatedAt        time.Time    `db:"created_at"`
	StartedAt        sql.NullTime `db:"started_at"`
	CompletedAt      sql.NullTime `db:"completed_at"`
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsActive reports whether the job still occupies a quota slot.
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}
