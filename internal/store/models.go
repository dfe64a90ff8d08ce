package store

import "time"

// Batch status values
const (
	StatusRunning  = "running"
	StatusDone     = "done"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Batch is one run of sequential visits started by a trigger
type Batch struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Size       int        `json:"size"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Visits     int        `json:"visits"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Visit is a single attempt within a batch
type Visit struct {
	BatchID    string    `json:"batch_id"`
	Seq        int       `json:"seq"`
	Device     string    `json:"device"`
	Referral   string    `json:"referral"`
	IP         string    `json:"ip"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
