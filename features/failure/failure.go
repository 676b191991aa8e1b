package failure

import (
	"errors"
	"time"

	"softarchitect/apps/ingest/internal/document"
)

// Failure is the latest recorded error for one knowledge base file.
type Failure struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"created_at"`
}

type Run struct {
	ID             string    `json:"id"`
	Root           string    `json:"root"`
	FilesSeen      int       `json:"files_seen"`
	FilesFailed    int       `json:"files_failed"`
	ChunksProduced int       `json:"chunks_produced"`
	ChunksStored   int       `json:"chunks_stored"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
}

const (
	KindSecurity      = "security"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindInternal      = "internal"
)

// KindOf classifies err by the document error kind it wraps.
func KindOf(err error) string {
	switch {
	case errors.Is(err, document.ErrSecurity):
		return KindSecurity
	case errors.Is(err, document.ErrValidation):
		return KindValidation
	case errors.Is(err, document.ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

func newFailure(runID, path string, cause error) *Failure {
	return &Failure{
		RunID:  runID,
		Path:   path,
		Kind:   KindOf(cause),
		Reason: document.ReasonOf(cause),
		Error:  cause.Error(),
	}
}
