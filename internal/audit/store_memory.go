package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"claimgate/pkg/platform/sentinel"
)

// MemoryStore keeps the audit trail in memory. It backs development mode and
// the store contract tests; the postgres store is the durable twin.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.AuditID]; exists {
		// Idempotent insert: duplicates are a no-op, never an overwrite.
		return nil
	}
	s.records[record.AuditID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, auditID string) (Record, error) {
	id, err := uuid.Parse(auditID)
	if err != nil {
		return Record{}, fmt.Errorf("parse audit id: %w", sentinel.ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Query(_ context.Context, filters Filters) (Page, error) {
	var cursor *Cursor
	if filters.Cursor != "" {
		decoded, err := DecodeCursor(filters.Cursor)
		if err != nil {
			return Page{}, err
		}
		cursor = &decoded
	}

	s.mu.RLock()
	matched := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		if filters.matches(record) {
			matched = append(matched, record)
		}
	}
	s.mu.RUnlock()

	// (ts DESC, auditId DESC); the id tie-break keeps pagination stable for
	// records sharing a timestamp.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].AuditID.String() > matched[j].AuditID.String()
	})

	if cursor != nil {
		idx := 0
		for idx < len(matched) && !cursor.after(matched[idx]) {
			idx++
		}
		matched = matched[idx:]
	}

	limit := filters.pageSize()
	page := Page{}
	if len(matched) > limit {
		page.Records = matched[:limit]
		last := page.Records[limit-1]
		page.NextCursor = Cursor{TS: last.Timestamp, AuditID: last.AuditID}.Encode()
	} else {
		page.Records = matched
	}
	return page, nil
}

func (s *MemoryStore) Count(_ context.Context, filters Filters) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, record := range s.records {
		if filters.matches(record) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DropExpired(_ context.Context, retention time.Duration) error {
	if !ValidRetention(retention) {
		return fmt.Errorf("retention %s outside 90-365 day window: %w", retention, sentinel.ErrInvalidState)
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			delete(s.records, id)
		}
	}
	return nil
}
