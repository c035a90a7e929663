// Package batch holds staged imports and their append-only processing log.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// ErrNotFound is returned for unknown batch ids
var ErrNotFound = errors.New("batch not found")

// Status represents the lifecycle state of a batch
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is completed or failed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RowFailure is one row that could not be created, kept on the batch
type RowFailure struct {
	Row              int      `json:"row"`
	Data             *row.Row `json:"data"`
	Error            string   `json:"error"`
	AutoFixAttempted bool     `json:"autoFixAttempted"`
	FixesApplied     []string `json:"fixesApplied,omitempty"`
}

// Batch is a validated upload waiting for, or undergoing, replay
type Batch struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	EntityType  entity.Type  `json:"module"`
	RecordCount int          `json:"recordCount"`
	Rows        []*row.Row   `json:"data"`
	Status      Status       `json:"status"`
	Checksum    string       `json:"checksum,omitempty"`
	Errors      []RowFailure `json:"errors"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// LogStatus is the outcome recorded on a log entry
type LogStatus string

const (
	LogSuccess    LogStatus = "success"
	LogFailed     LogStatus = "failed"
	LogProcessing LogStatus = "processing"
)

// LogError is one structured error on a log entry
type LogError struct {
	Row              int      `json:"row,omitempty"`
	Field            string   `json:"field,omitempty"`
	Message          string   `json:"message"`
	AutoFixAttempted bool     `json:"autoFixAttempted,omitempty"`
	FixesApplied     []string `json:"fixesApplied,omitempty"`
}

// LogEntry records one row outcome or one batch summary. BatchID is nil for
// standalone events.
type LogEntry struct {
	ID             string          `json:"id"`
	BatchID        *string         `json:"stagingId"`
	Filename       string          `json:"filename"`
	EntityType     entity.Type     `json:"module"`
	Endpoint       string          `json:"endpoint"`
	Method         string          `json:"method"`
	RecordCount    int             `json:"recordCount"`
	SuccessCount   int             `json:"successCount"`
	FailureCount   int             `json:"failureCount"`
	Status         LogStatus       `json:"status"`
	RemoteResponse json.RawMessage `json:"erpnextResponse,omitempty"`
	Errors         []LogError      `json:"errors,omitempty"`
	ResponseTimeMs int64           `json:"responseTime"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Validate checks the counting invariant and the status vocabulary
func (e *LogEntry) Validate() error {
	if e.RecordCount < 0 || e.SuccessCount < 0 || e.FailureCount < 0 {
		return fmt.Errorf("log entry counts must not be negative")
	}
	if e.SuccessCount+e.FailureCount != e.RecordCount {
		return fmt.Errorf("log entry counts do not add up: %d success + %d failure != %d records",
			e.SuccessCount, e.FailureCount, e.RecordCount)
	}
	switch e.Status {
	case LogSuccess, LogFailed, LogProcessing:
	default:
		return fmt.Errorf("invalid log status %q", e.Status)
	}
	return nil
}

// Stats summarizes recent log entries
type Stats struct {
	TotalImports      int     `json:"totalImports"`
	SuccessfulImports int     `json:"successfulImports"`
	FailedImports     int     `json:"failedImports"`
	ProcessingImports int     `json:"processingImports"`
	SuccessRate       float64 `json:"successRate"`
}
