// Package audit owns the immutable audit trail: one record per processed
// item, inserted exactly once, queryable with stable cursor pagination and
// expired by dropping whole monthly partitions.
package audit

import (
	"time"

	"github.com/google/uuid"

	"claimgate/internal/pipeline"
)

// MaxPageSize caps a query page regardless of the requested limit.
const MaxPageSize = 1000

// DefaultPageSize applies when a query names no limit.
const DefaultPageSize = 100

// Retention bounds; partitions older than the window are dropped wholesale.
const (
	MinRetention = 90 * 24 * time.Hour
	MaxRetention = 365 * 24 * time.Hour
)

// Record is created once per processed item and never updated. Transforms
// preserves the route's declared execution order.
type Record struct {
	AuditID          uuid.UUID         `json:"auditId"`
	Timestamp        time.Time         `json:"ts"`
	Tenant           string            `json:"tenant"`
	Profile          string            `json:"profile"`
	Route            string            `json:"route"`
	ItemID           string            `json:"itemId"`
	CorrelationID    string            `json:"correlationId"`
	Transforms       []pipeline.Result `json:"transforms"`
	Verdict          pipeline.Verdict  `json:"verdict"`
	LatencyMS        int64             `json:"latencyMs"`
	DegradedMode     bool              `json:"degradedMode"`
	DegradedServices []string          `json:"degradedServices,omitempty"`
}

// Filters narrows queries and counts. Zero values mean "no filter".
type Filters struct {
	Tenant        string
	ItemID        string
	CorrelationID string
	StartDate     *time.Time
	EndDate       *time.Time
	Cursor        string
	Limit         int
}

// matches reports whether the record passes every non-cursor filter.
func (f Filters) matches(r Record) bool {
	if f.Tenant != "" && r.Tenant != f.Tenant {
		return false
	}
	if f.ItemID != "" && r.ItemID != f.ItemID {
		return false
	}
	if f.CorrelationID != "" && r.CorrelationID != f.CorrelationID {
		return false
	}
	if f.StartDate != nil && r.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.Timestamp.After(*f.EndDate) {
		return false
	}
	return true
}

// pageSize resolves the effective page size.
func (f Filters) pageSize() int {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit
}

// Page is one query result page. NextCursor is empty on the last page.
type Page struct {
	Records    []Record `json:"records"`
	NextCursor string   `json:"nextCursor,omitempty"`
}
