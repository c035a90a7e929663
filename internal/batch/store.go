package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists batches and log entries
type Store interface {
	CreateBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// FinishBatch sets a terminal status, CompletedAt and the error list
	FinishBatch(ctx context.Context, id string, status Status, failures []RowFailure) error
	ListBatchesByStatus(ctx context.Context, status Status) ([]*Batch, error)

	AppendLog(ctx context.Context, e *LogEntry) error
	// ListLogs returns the newest entries first
	ListLogs(ctx context.Context, limit int) ([]*LogEntry, error)
	ListLogsByStatus(ctx context.Context, status LogStatus, limit int) ([]*LogEntry, error)
	// LogsForBatch returns a batch's entries oldest first
	LogsForBatch(ctx context.Context, batchID string) ([]*LogEntry, error)

	Ping(ctx context.Context) error
}

// MemoryStore keeps batches and logs in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	logs    []*LogEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]*Batch),
		now:     time.Now,
	}
}

// CreateBatch stores b, assigning an ID and CreatedAt when missing
func (s *MemoryStore) CreateBatch(_ context.Context, b *Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return fmt.Errorf("batch already exists: %s", b.ID)
	}
	s.batches[b.ID] = copyBatch(b)
	return nil
}

// GetBatch returns a copy of the batch
func (s *MemoryStore) GetBatch(_ context.Context, id string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyBatch(b), nil
}

// UpdateStatus changes the status, setting CompletedAt on terminal states
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	b.Status = status
	if status.Terminal() && b.CompletedAt == nil {
		now := s.now()
		b.CompletedAt = &now
	}
	return nil
}

// FinishBatch records the final status and failures
func (s *MemoryStore) FinishBatch(_ context.Context, id string, status Status, failures []RowFailure) error {
	if !status.Terminal() {
		return fmt.Errorf("finish batch %s: status %q is not terminal", id, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := s.now()
	b.Status = status
	b.CompletedAt = &now
	b.Errors = append([]RowFailure(nil), failures...)
	return nil
}

// ListBatchesByStatus returns matching batches oldest first
func (s *MemoryStore) ListBatchesByStatus(_ context.Context, status Status) ([]*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Batch
	for _, b := range s.batches {
		if b.Status == status {
			out = append(out, copyBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendLog validates e and appends it
func (s *MemoryStore) AppendLog(_ context.Context, e *LogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.logs = append(s.logs, &cp)
	return nil
}

// ListLogs returns up to limit entries, newest first. limit <= 0 means all.
func (s *MemoryStore) ListLogs(_ context.Context, limit int) ([]*LogEntry, error) {
	return s.collect(limit, func(*LogEntry) bool { return true }), nil
}

// ListLogsByStatus is ListLogs filtered by status
func (s *MemoryStore) ListLogsByStatus(_ context.Context, status LogStatus, limit int) ([]*LogEntry, error) {
	return s.collect(limit, func(e *LogEntry) bool { return e.Status == status }), nil
}

// LogsForBatch returns the entries of one batch in append order
func (s *MemoryStore) LogsForBatch(_ context.Context, batchID string) ([]*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*LogEntry
	for _, e := range s.logs {
		if e.BatchID != nil && *e.BatchID == batchID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) collect(limit int, keep func(*LogEntry) bool) []*LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*LogEntry{}
	for i := len(s.logs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if keep(s.logs[i]) {
			cp := *s.logs[i]
			out = append(out, &cp)
		}
	}
	return out
}

func copyBatch(b *Batch) *Batch {
	cp := *b
	cp.Rows = append(cp.Rows[:0:0], b.Rows...)
	cp.Errors = append(cp.Errors[:0:0], b.Errors...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
