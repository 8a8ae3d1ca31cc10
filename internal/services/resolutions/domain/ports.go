package domain

import "context"

// Store is the append only resolution log
// Implementations must be safe for concurrent use
type Store interface {
	Append(ctx context.Context, r Resolution) error

	// Latest returns the superseding record of one issue, ok false when none
	Latest(ctx context.Context, issueID string) (Resolution, bool, error)

	// LatestMany is Latest for a set of issues; issues without records are absent
	LatestMany(ctx context.Context, issueIDs []string) (map[string]Resolution, error)
}

// Port is the surface the review service and cli call
type Port interface {
	Record(ctx context.Context, r Resolution) error
	Latest(ctx context.Context, issueID string) (Resolution, bool, error)
	LatestMany(ctx context.Context, issueIDs []string) (map[string]Resolution, error)
}
