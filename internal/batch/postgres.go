package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// PostgresStore keeps batches in staging_data and logs in import_logs
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. The tables come from database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const batchColumns = `id, filename, module, record_count, data, status, checksum, errors, created_at, completed_at`

func (s *PostgresStore) CreateBatch(ctx context.Context, b *Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rowsOrEmpty(b.Rows))
	if err != nil {
		return fmt.Errorf("error encoding batch rows: %w", err)
	}
	failures, err := json.Marshal(failuresOrEmpty(b.Errors))
	if err != nil {
		return fmt.Errorf("error encoding batch errors: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
	INSERT INTO staging_data (`+batchColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Filename, string(b.EntityType), b.RecordCount, data, string(b.Status),
		b.Checksum, failures, b.CreatedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("error inserting batch %s: %w", b.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*Batch, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM staging_data WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading batch %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE staging_data
	SET status = $2,
		completed_at = CASE WHEN $3 AND completed_at IS NULL THEN now() ELSE completed_at END
	WHERE id = $1`, id, string(status), status.Terminal())
	if err != nil {
		return fmt.Errorf("error updating batch %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) FinishBatch(ctx context.Context, id string, status Status, failures []RowFailure) error {
	if !status.Terminal() {
		return fmt.Errorf("finish batch %s: status %q is not terminal", id, status)
	}
	data, err := json.Marshal(failuresOrEmpty(failures))
	if err != nil {
		return fmt.Errorf("error encoding batch errors: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
	UPDATE staging_data SET status = $2, errors = $3, completed_at = now() WHERE id = $1`,
		id, string(status), data)
	if err != nil {
		return fmt.Errorf("error finishing batch %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListBatchesByStatus(ctx context.Context, status Status) ([]*Batch, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT `+batchColumns+` FROM staging_data WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("error listing batches: %w", err)
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const logColumns = `id, staging_id, filename, module, endpoint, method, record_count, success_count,
	failure_count, status, erpnext_response, errors, response_time, created_at`

func (s *PostgresStore) AppendLog(ctx context.Context, e *LogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var errs []byte
	if len(e.Errors) > 0 {
		var err error
		if errs, err = json.Marshal(e.Errors); err != nil {
			return fmt.Errorf("error encoding log errors: %w", err)
		}
	}
	var response []byte
	if len(e.RemoteResponse) > 0 {
		response = e.RemoteResponse
	}

	_, err := s.pool.Exec(ctx, `
	INSERT INTO import_logs (`+logColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.BatchID, e.Filename, string(e.EntityType), e.Endpoint, e.Method, e.RecordCount,
		e.SuccessCount, e.FailureCount, string(e.Status), response, errs, e.ResponseTimeMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting import log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		return s.queryLogs(ctx, `SELECT `+logColumns+` FROM import_logs ORDER BY created_at DESC, seq DESC`)
	}
	return s.queryLogs(ctx, `SELECT `+logColumns+` FROM import_logs ORDER BY created_at DESC, seq DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListLogsByStatus(ctx context.Context, status LogStatus, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		return s.queryLogs(ctx, `
	SELECT `+logColumns+` FROM import_logs WHERE status = $1 ORDER BY created_at DESC, seq DESC`, string(status))
	}
	return s.queryLogs(ctx, `
	SELECT `+logColumns+` FROM import_logs WHERE status = $1 ORDER BY created_at DESC, seq DESC LIMIT $2`, string(status), limit)
}

func (s *PostgresStore) LogsForBatch(ctx context.Context, batchID string) ([]*LogEntry, error) {
	return s.queryLogs(ctx, `
	SELECT `+logColumns+` FROM import_logs WHERE staging_id = $1 ORDER BY seq`, batchID)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) queryLogs(ctx context.Context, query string, args ...interface{}) ([]*LogEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing import logs: %w", err)
	}
	defer rows.Close()

	out := []*LogEntry{}
	for rows.Next() {
		var (
			e              LogEntry
			module, status string
			response, errs []byte
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Filename, &module, &e.Endpoint, &e.Method,
			&e.RecordCount, &e.SuccessCount, &e.FailureCount, &status, &response, &errs,
			&e.ResponseTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning import log: %w", err)
		}
		e.EntityType = entity.Type(module)
		e.Status = LogStatus(status)
		if len(response) > 0 {
			e.RemoteResponse = json.RawMessage(response)
		}
		if len(errs) > 0 {
			if err := json.Unmarshal(errs, &e.Errors); err != nil {
				return nil, fmt.Errorf("error decoding log errors: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func scanBatch(r pgx.Row) (*Batch, error) {
	var (
		b              Batch
		module, status string
		checksum       *string
		data, failures []byte
	)
	if err := r.Scan(&b.ID, &b.Filename, &module, &b.RecordCount, &data, &status,
		&checksum, &failures, &b.CreatedAt, &b.CompletedAt); err != nil {
		return nil, err
	}
	b.EntityType = entity.Type(module)
	b.Status = Status(status)
	if checksum != nil {
		b.Checksum = *checksum
	}
	if err := json.Unmarshal(data, &b.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &b.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
	}
	return &b, nil
}

func rowsOrEmpty(rows []*row.Row) []*row.Row {
	if rows == nil {
		return []*row.Row{}
	}
	return rows
}

func failuresOrEmpty(f []RowFailure) []RowFailure {
	if f == nil {
		return []RowFailure{}
	}
	return f
}
