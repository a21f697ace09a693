package model

import "time"

// JobStatus is the lifecycle state of a separation job.
type JobStatus string

const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

// Terminal reports whether no further transitions may leave this status.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job represents one uploaded track and its separation run
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Stems     []string  `json:"stems"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	InputPath string    `json:"-"`
}

// Clone returns a deep copy so callers never share the stored record.
func (j *Job) Clone() Job {
	c := *j
	if j.Stems != nil {
		c.Stems = append([]string(nil), j.Stems...)
	}
	if j.Error != nil {
		msg := *j.Error
		c.Error = &msg
	}
	return c
}
