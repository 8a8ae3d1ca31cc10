package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the ledger state of one utterance
type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Entry is one ledger row
type Entry struct {
	BatchID   string          `json:"batch_id"`
	UttID     string          `json:"utt_id"`
	Status    Status          `json:"status"`
	InputHash string          `json:"input_hash"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Final reports whether e can be reused for an input with hash
func (e Entry) Final(hash string) bool {
	return e.Status == StatusOK && e.InputHash == hash && len(e.Output) > 0
}

// Ledger is the resumable progress store keyed by batch and utterance id
// Implementations must be safe for concurrent use
type Ledger interface {
	// Load returns every entry of a batch keyed by utterance id
	Load(ctx context.Context, batchID string) (map[string]Entry, error)

	// Start marks an utterance running
	Start(ctx context.Context, batchID, uttID, hash string) error

	// Finish stores the output of a finalized utterance
	Finish(ctx context.Context, batchID, uttID, hash string, output json.RawMessage) error

	// Fail records an utterance level failure
	Fail(ctx context.Context, batchID, uttID, hash, errText string) error
}

// LedgerRepo is the transaction bound sql surface behind the postgres ledger
type LedgerRepo interface {
	Load(ctx context.Context, batchID string) ([]Entry, error)
	Upsert(ctx context.Context, e Entry) error
}

// LeaseFunc runs do while holding the batch lease, ErrLeaseHeld when taken
type LeaseFunc func(ctx context.Context, batchID, holder string, do func(context.Context) error) error

// Batch is one run's input. Records keep file order, Rejected carries lines
// that never decoded
type Batch struct {
	ID       string
	Records  []Record
	Rejected []Invalid
}

// RunnerPort is what the cli and other modules call
type RunnerPort interface {
	Run(ctx context.Context, b Batch) (Report, error)
}

// OutputsPort reads stored outputs back, used by the review service
type OutputsPort interface {
	Outputs(ctx context.Context, batchID string) ([]Output, error)
}
