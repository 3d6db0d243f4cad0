package audit

import (
	"context"
	"time"
)

// Store is the audit trail contract. Implementations are append-only:
// Save with an already-seen auditId is a silent no-op, never an overwrite.
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, auditID string) (Record, error)
	Query(ctx context.Context, filters Filters) (Page, error)
	Count(ctx context.Context, filters Filters) (int64, error)
	// DropExpired reclaims records older than the retention window. The
	// postgres store drops whole monthly partitions rather than deleting
	// rows.
	DropExpired(ctx context.Context, retention time.Duration) error
}

// ValidRetention reports whether the window is inside the allowed
// 90-365 day range.
func ValidRetention(retention time.Duration) bool {
	return retention >= MinRetention && retention <= MaxRetention
}
