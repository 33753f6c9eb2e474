package extractjob

import (
	"time"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

const (
	WorkflowName    = "extraction_job"
	ActivityExtract = "extraction_job_extract"
	QueryStatus     = "status"

	heartbeatInterval = 10 * time.Second
	heartbeatTimeout  = 30 * time.Second
)

type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Input is a URL-only request; uploaded bytes never travel through history.
type Input struct {
	Kind     extraction.SourceKind `json:"kind"`
	URL      string                `json:"url"`
	ForceOCR bool                  `json:"forceOcr,omitempty"`
	Timeout  time.Duration         `json:"timeout,omitempty"`
}

func (in Input) Options() extraction.Options {
	return extraction.Options{ForceOCR: in.ForceOCR, Timeout: in.Timeout}
}

type Status struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	State     State              `json:"state"`
	Attempt   int32              `json:"attempt,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"errorKind,omitempty"`
	Result    *extraction.Result `json:"result,omitempty"`
}
