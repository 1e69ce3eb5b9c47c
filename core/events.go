package core

import "time"

// ProgressEvent describes one observable step of a workflow job. Transfer
// polling publishes one per attempt; other pipelines publish on phase
// boundaries.
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	Operation string    `json:"operation"`
	Phase     string    `json:"phase"`
	Attempt   int       `json:"attempt,omitempty"`
	VIN       VIN       `json:"vin,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
