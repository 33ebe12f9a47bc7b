// Package store persists recognition results and audit reports.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/model"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing audit runs.
type RunFilter struct {
	URL    string `json:"url,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Run is a stored audit report with its summary columns.
type Run struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	Score     string          `json:"compliance_score"`
	Partial   bool            `json:"partial"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the persistence interface used by the CLI and the recognition cache.
type Store interface {
	// Recognition cache
	GetRecognition(ctx context.Context, key string) ([]byte, error)
	SetRecognition(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpiredRecognitions(ctx context.Context) (int, error)

	// Audit runs
	SaveRun(ctx context.Context, report *model.Report) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func newRun(report *model.Report, now time.Time) (*Run, error) {
	if report.RunID == "" {
		return nil, eris.New("store: report has no run id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal report")
	}
	return &Run{
		ID:        report.RunID,
		URL:       report.URL,
		Title:     report.Title,
		Score:     report.Verdict.Score,
		Partial:   report.Partial,
		Report:    body,
		CreatedAt: now,
	}, nil
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}
