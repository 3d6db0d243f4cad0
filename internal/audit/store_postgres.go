package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"claimgate/pkg/platform/sentinel"
)

// PostgresStore persists audit records in a monthly range-partitioned table.
// Inserts are idempotent via ON CONFLICT DO NOTHING; retention is enforced
// by dropping whole partitions, never by row deletes.
type PostgresStore struct {
	db *sql.DB

	mu         sync.Mutex
	partitions map[string]bool
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, partitions: make(map[string]bool)}
}

// EnsureSchema creates the partitioned parent table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_records (
			audit_id          UUID        NOT NULL,
			ts                TIMESTAMPTZ NOT NULL,
			tenant            TEXT        NOT NULL,
			profile           TEXT        NOT NULL,
			route             TEXT        NOT NULL,
			item_id           TEXT        NOT NULL,
			correlation_id    TEXT        NOT NULL,
			transforms        JSONB       NOT NULL,
			verdict           JSONB       NOT NULL,
			latency_ms        BIGINT      NOT NULL,
			degraded_mode     BOOLEAN     NOT NULL,
			degraded_services JSONB,
			PRIMARY KEY (audit_id, ts)
		) PARTITION BY RANGE (ts)
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func partitionName(t time.Time) string {
	return fmt.Sprintf("audit_records_%04d%02d", t.Year(), int(t.Month()))
}

// EnsurePartition creates the monthly partition covering t when missing.
func (s *PostgresStore) EnsurePartition(ctx context.Context, t time.Time) error {
	name := partitionName(t.UTC())

	s.mu.Lock()
	created := s.partitions[name]
	s.mu.Unlock()
	if created {
		return nil
	}

	start := time.Date(t.UTC().Year(), t.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s PARTITION OF audit_records
		FOR VALUES FROM ('%s') TO ('%s')
	`, name, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure partition %s: %w", name, err)
	}

	s.mu.Lock()
	s.partitions[name] = true
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	if err := s.EnsurePartition(ctx, record.Timestamp); err != nil {
		return err
	}

	transforms, err := json.Marshal(record.Transforms)
	if err != nil {
		return fmt.Errorf("marshal transforms: %w", err)
	}
	verdict, err := json.Marshal(record.Verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	var degradedServices []byte
	if record.DegradedServices != nil {
		degradedServices, err = json.Marshal(record.DegradedServices)
		if err != nil {
			return fmt.Errorf("marshal degraded services: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			audit_id, ts, tenant, profile, route, item_id, correlation_id,
			transforms, verdict, latency_ms, degraded_mode, degraded_services
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (audit_id, ts) DO NOTHING
	`,
		record.AuditID,
		record.Timestamp,
		record.Tenant,
		record.Profile,
		record.Route,
		record.ItemID,
		record.CorrelationID,
		transforms,
		verdict,
		record.LatencyMS,
		record.DegradedMode,
		degradedServices,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

const selectColumns = `
	audit_id, ts, tenant, profile, route, item_id, correlation_id,
	transforms, verdict, latency_ms, degraded_mode, degraded_services
`

func (s *PostgresStore) Get(ctx context.Context, auditID string) (Record, error) {
	id, err := uuid.Parse(auditID)
	if err != nil {
		return Record{}, fmt.Errorf("parse audit id: %w", sentinel.ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM audit_records WHERE audit_id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get audit record: %w", err)
	}
	return record, nil
}

// buildFilterClauses renders the shared WHERE fragment for Query and Count.
func buildFilterClauses(filters Filters) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filters.Tenant != "" {
		add("tenant = $%d", filters.Tenant)
	}
	if filters.ItemID != "" {
		add("item_id = $%d", filters.ItemID)
	}
	if filters.CorrelationID != "" {
		add("correlation_id = $%d", filters.CorrelationID)
	}
	if filters.StartDate != nil {
		add("ts >= $%d", *filters.StartDate)
	}
	if filters.EndDate != nil {
		add("ts <= $%d", *filters.EndDate)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) Query(ctx context.Context, filters Filters) (Page, error) {
	where, args := buildFilterClauses(filters)

	if filters.Cursor != "" {
		cursor, err := DecodeCursor(filters.Cursor)
		if err != nil {
			return Page{}, err
		}
		args = append(args, cursor.TS, cursor.AuditID)
		predicate := fmt.Sprintf("(ts, audit_id) < ($%d, $%d)", len(args)-1, len(args))
		if where == "" {
			where = " WHERE " + predicate
		} else {
			where += " AND " + predicate
		}
	}

	limit := filters.pageSize()
	args = append(args, limit+1)
	query := `SELECT ` + selectColumns + ` FROM audit_records` + where +
		fmt.Sprintf(` ORDER BY ts DESC, audit_id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate audit records: %w", err)
	}

	page := Page{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		last := page.Records[limit-1]
		page.NextCursor = Cursor{TS: last.Timestamp, AuditID: last.AuditID}.Encode()
	}
	return page, nil
}

func (s *PostgresStore) Count(ctx context.Context, filters Filters) (int64, error) {
	where, args := buildFilterClauses(filters)
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

// DropExpired drops every monthly partition whose range ended before the
// retention cutoff. Dropping partitions reclaims space without row churn.
func (s *PostgresStore) DropExpired(ctx context.Context, retention time.Duration) error {
	if !ValidRetention(retention) {
		return fmt.Errorf("retention %s outside 90-365 day window: %w", retention, sentinel.ErrInvalidState)
	}
	cutoff := time.Now().UTC().Add(-retention)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		JOIN pg_class p ON p.oid = i.inhparent
		WHERE p.relname = 'audit_records'
	`)
	if err != nil {
		return fmt.Errorf("list audit partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan partition name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate partitions: %w", err)
	}

	for _, name := range names {
		var year, month int
		if _, err := fmt.Sscanf(name, "audit_records_%4d%2d", &year, &month); err != nil {
			continue
		}
		end := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		if !end.Before(cutoff) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
			return fmt.Errorf("drop partition %s: %w", name, err)
		}
		s.mu.Lock()
		delete(s.partitions, name)
		s.mu.Unlock()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		record           Record
		transforms       []byte
		verdict          []byte
		degradedServices []byte
	)
	err := row.Scan(
		&record.AuditID,
		&record.Timestamp,
		&record.Tenant,
		&record.Profile,
		&record.Route,
		&record.ItemID,
		&record.CorrelationID,
		&transforms,
		&verdict,
		&record.LatencyMS,
		&record.DegradedMode,
		&degradedServices,
	)
	if err != nil {
		return Record{}, err
	}

	if err := json.Unmarshal(transforms, &record.Transforms); err != nil {
		return Record{}, fmt.Errorf("decode transforms: %w", err)
	}
	if err := json.Unmarshal(verdict, &record.Verdict); err != nil {
		return Record{}, fmt.Errorf("decode verdict: %w", err)
	}
	if len(degradedServices) > 0 {
		if err := json.Unmarshal(degradedServices, &record.DegradedServices); err != nil {
			return Record{}, fmt.Errorf("decode degraded services: %w", err)
		}
	}
	return record, nil
}
