package models

import "time"

type RunState string

const (
	RunQueued  RunState = "queued"
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "failed"
)

// RunStatus tracks a queued series run.
type RunStatus struct {
	RunID      string            `json:"run_id"`
	Underlying string            `json:"underlying"`
	State      RunState          `json:"state"`
	Points     int               `json:"points"`
	Errors     int               `json:"errors"`
	ErrorKinds map[ErrorKind]int `json:"error_kinds,omitempty"`
	Message    string            `json:"message,omitempty"`
	QueuedAt   time.Time         `json:"queued_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
