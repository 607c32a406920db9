package query

import "context"

// Engine provides catalog query operations. Implementations must be safe for
// concurrent readers; the catalog is never written through this interface.
type Engine interface {
	// Summaries returns the classes matching cond ordered by department,
	// course number and class id. An empty slice means no match.
	Summaries(ctx context.Context, cond Condition) ([]ClassSummary, error)

	// Detail returns the full record for classID, or *NotFoundError.
	Detail(ctx context.Context, classID int64) (*ClassDetail, error)

	// Close releases any resources held by the engine.
	Close() error
}
