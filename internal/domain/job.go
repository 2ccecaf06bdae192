package domain

import "time"

// JobStatus enumerates download job lifecycle states.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusError       JobStatus = "error"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Job is one server-tracked download task. The job manager owns the record
// for its lifetime; everything else sees snapshot copies.
type Job struct {
	ID          string         `json:"id"`
	Ref         MediaReference `json:"ref"`
	Selector    string         `json:"selector"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Title       string         `json:"title,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	FileName    string         `json:"file_name,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// ProgressEventType enumerates the kinds of per-job notifications.
type ProgressEventType string

const (
	EventProgress  ProgressEventType = "progress"
	EventCompleted ProgressEventType = "completed"
	EventError     ProgressEventType = "error"
)

// ProgressEvent is an ephemeral notification broadcast to subscribers of a
// single job. Only the most recent event is retained for late subscribers.
type ProgressEvent struct {
	JobID    string            `json:"job_id"`
	Type     ProgressEventType `json:"type"`
	Progress int               `json:"progress"`
	FilePath string            `json:"file_path,omitempty"`
	FileName string            `json:"file_name,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventError
}
