package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/autofix"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// Fixer runs auto-fix remediation for a failed row
type Fixer interface {
	ProcessRecord(ctx context.Context, t entity.Type, r *row.Row, message string, maxRetries int) autofix.Result
}

// ProcessorOptions configures a Processor
type ProcessorOptions struct {
	MaxRetries int
	Logger     logrus.FieldLogger
	Metrics    *metrics.Registry
}

// Processor replays one batch row by row
type Processor struct {
	store      batch.Store
	creator    autofix.Creator
	fixer      Fixer
	maxRetries int
	log        logrus.FieldLogger
	metrics    *metrics.Registry
}

func NewProcessor(store batch.Store, creator autofix.Creator, fixer Fixer, opts ProcessorOptions) *Processor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = autofix.DefaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Processor{
		store:      store,
		creator:    creator,
		fixer:      fixer,
		maxRetries: opts.MaxRetries,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
}

// rowOutcome is the result of one row, kept so in-band errors and logs agree
type rowOutcome struct {
	success bool
	failure *batch.RowFailure
	entry   *batch.LogEntry
}

// Process runs the row loop for batchID. Rows are attempted strictly in
// order. Row failures never abort the batch; any other fault marks the batch
// failed through fail.
func (p *Processor) Process(ctx context.Context, batchID string) (err error) {
	b, err := p.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			return err
		}
		return p.fail(ctx, &batch.Batch{ID: batchID, Filename: "unknown"}, nil, err)
	}

	log := p.log.WithFields(logrus.Fields{"batch_id": b.ID, "module": string(b.EntityType)})
	p.metrics.BatchStarted()
	defer p.metrics.BatchDone()

	var failures []batch.RowFailure
	defer func() {
		if r := recover(); r != nil {
			err = p.fail(ctx, b, failures, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.store.UpdateStatus(ctx, b.ID, batch.StatusProcessing); err != nil {
		return p.fail(ctx, b, nil, fmt.Errorf("set processing: %w", err))
	}
	log.WithField("rows", len(b.Rows)).Info("batch processing started")

	successCount := 0
	for i, r := range b.Rows {
		out := p.processRow(ctx, b, i, r)
		if out.success {
			successCount++
		} else {
			failures = append(failures, *out.failure)
		}
		if err := p.store.AppendLog(ctx, out.entry); err != nil {
			return p.fail(ctx, b, failures, fmt.Errorf("append row log: %w", err))
		}
	}

	status := batch.StatusCompleted
	logStatus := batch.LogSuccess
	if len(failures) > 0 {
		status = batch.StatusFailed
		logStatus = batch.LogFailed
	}
	if err := p.store.FinishBatch(ctx, b.ID, status, failures); err != nil {
		return p.fail(ctx, b, failures, fmt.Errorf("finish batch: %w", err))
	}

	summary := p.baseEntry(b)
	summary.RecordCount = len(b.Rows)
	summary.SuccessCount = successCount
	summary.FailureCount = len(failures)
	summary.Status = logStatus
	summary.RemoteResponse = summaryResponse(len(b.Rows))
	for _, f := range failures {
		summary.Errors = append(summary.Errors, batch.LogError{
			Row:              f.Row,
			Field:            autofix.FieldFromMessage(f.Error),
			Message:          f.Error,
			AutoFixAttempted: f.AutoFixAttempted,
			FixesApplied:     f.FixesApplied,
		})
	}
	if err := p.store.AppendLog(ctx, summary); err != nil {
		log.WithError(err).Error("failed to write batch summary log")
		return fmt.Errorf("append summary log: %w", err)
	}

	p.metrics.IncBatchFinished(string(status))
	log.WithFields(logrus.Fields{
		"status":  status,
		"success": successCount,
		"failed":  len(failures),
	}).Info("batch processing finished")
	return nil
}

// processRow attempts one row. A panic is accounted as a row failure.
func (p *Processor) processRow(ctx context.Context, b *batch.Batch, i int, r *row.Row) (out rowOutcome) {
	rowNum := ingest.RowNumber(i)
	start := time.Now()
	entry := p.baseEntry(b)
	entry.RecordCount = 1

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("%v", rec)
			p.log.WithFields(logrus.Fields{"batch_id": b.ID, "row": rowNum}).Errorf("row processing panicked: %s", msg)
			entry.SuccessCount, entry.FailureCount = 0, 1
			entry.Status = batch.LogFailed
			entry.RemoteResponse = nil
			entry.Errors = []batch.LogError{{Row: rowNum, Message: msg}}
			entry.ResponseTimeMs = time.Since(start).Milliseconds()
			out = rowOutcome{
				failure: &batch.RowFailure{Row: rowNum, Data: r, Error: msg},
				entry:   entry,
			}
		}
	}()

	res := p.creator.CreateRecord(ctx, b.EntityType, r)
	if res.Success {
		entry.SuccessCount = 1
		entry.Status = batch.LogSuccess
		entry.RemoteResponse = res.Data
		entry.ResponseTimeMs = res.ResponseTimeMs
		p.metrics.IncRow(string(b.EntityType), "success")
		return rowOutcome{success: true, entry: entry}
	}

	fix := p.fixer.ProcessRecord(ctx, b.EntityType, r, res.Error, p.maxRetries)
	entry.ResponseTimeMs = time.Since(start).Milliseconds()
	if fix.Success {
		entry.SuccessCount = 1
		entry.Status = batch.LogSuccess
		entry.RemoteResponse = fix.Data
		entry.Errors = []batch.LogError{{
			Row:              rowNum,
			Field:            autofix.FieldFromMessage(res.Error),
			Message:          res.Error,
			AutoFixAttempted: true,
			FixesApplied:     fix.FixesApplied,
		}}
		p.metrics.IncRow(string(b.EntityType), "autofixed")
		return rowOutcome{success: true, entry: entry}
	}

	failure := batch.RowFailure{
		Row:              rowNum,
		Data:             r,
		Error:            fix.Error,
		AutoFixAttempted: true,
		FixesApplied:     fix.FixesApplied,
	}
	entry.FailureCount = 1
	entry.Status = batch.LogFailed
	entry.Errors = []batch.LogError{{
		Row:              rowNum,
		Field:            autofix.FieldFromMessage(fix.Error),
		Message:          fix.Error,
		AutoFixAttempted: true,
		FixesApplied:     fix.FixesApplied,
	}}
	p.metrics.IncRow(string(b.EntityType), "failed")
	p.log.WithFields(logrus.Fields{"batch_id": b.ID, "row": rowNum}).Warnf("row failed: %s", fix.Error)
	return rowOutcome{failure: &failure, entry: entry}
}

// fail forces b to failed and writes a summary that counts every row as
// failed. It runs on a context that ignores cancellation so the batch is
// never left in processing.
func (p *Processor) fail(ctx context.Context, b *batch.Batch, failures []batch.RowFailure, cause error) error {
	ctx = context.WithoutCancel(ctx)
	log := p.log.WithField("batch_id", b.ID)
	log.WithError(cause).Error("batch processing failed")

	if err := p.store.FinishBatch(ctx, b.ID, batch.StatusFailed, failures); err != nil {
		log.WithError(err).Error("failed to mark batch failed")
	}

	summary := p.baseEntry(b)
	summary.RecordCount = len(b.Rows)
	summary.FailureCount = len(b.Rows)
	summary.Status = batch.LogFailed
	summary.Errors = []batch.LogError{{Message: "Overall processing failed: " + cause.Error()}}
	if err := p.store.AppendLog(ctx, summary); err != nil {
		log.WithError(err).Error("failed to write failure summary log")
	}

	p.metrics.IncBatchFinished(string(batch.StatusFailed))
	return cause
}

func (p *Processor) baseEntry(b *batch.Batch) *batch.LogEntry {
	id := b.ID
	return &batch.LogEntry{
		BatchID:    &id,
		Filename:   b.Filename,
		EntityType: b.EntityType,
		Endpoint:   b.EntityType.Endpoint(),
		Method:     http.MethodPost,
	}
}

func summaryResponse(n int) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"summary": fmt.Sprintf("Processed %d records", n)})
	return data
}
