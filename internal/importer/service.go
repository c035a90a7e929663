package importer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// ValidationError rejects an upload and carries every issue found
type ValidationError struct {
	Result ingest.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation failed: %d error(s)", len(e.Result.Errors))
}

// UploadRequest is one file to stage
type UploadRequest struct {
	Filename   string
	EntityType entity.Type
	Content    []byte
	// Encoding and Delimiter apply to CSV files only
	Encoding  string
	Delimiter string
	// SkipMapping validates the parsed headers as canonical field names
	SkipMapping bool
}

// UploadResult describes a staged batch
type UploadResult struct {
	StagingID   string         `json:"stagingId"`
	RecordCount int            `json:"recordCount"`
	Checksum    string         `json:"checksum"`
	Warnings    []ingest.Issue `json:"warnings"`
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	AllowedBaseDir string
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
	Metrics        *metrics.Registry
}

// Service validates uploads, stages them and hands them to the workers
type Service struct {
	parser    *ingest.Parser
	mapper    *ingest.Mapper
	validator *ingest.Validator
	store     batch.Store
	queue     *Queue
	processor *Processor

	allowedBaseDir string
	maxBytes       int64
	log            logrus.FieldLogger
	metrics        *metrics.Registry
}

func NewService(store batch.Store, queue *Queue, processor *Processor, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		parser:         ingest.NewParser(),
		mapper:         ingest.NewMapper(opts.Logger),
		validator:      ingest.NewValidator(),
		store:          store,
		queue:          queue,
		processor:      processor,
		allowedBaseDir: opts.AllowedBaseDir,
		maxBytes:       opts.MaxUploadBytes,
		log:            opts.Logger,
		metrics:        opts.Metrics,
	}
}

// Upload parses, maps and validates req. Parse and validation failures
// return *ingest.ParseError or *ValidationError and create no batch. On
// success the batch is stored as pending and queued; a full queue fails the
// batch and returns ErrQueueFull.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	log := s.log.WithFields(logrus.Fields{"filename": req.Filename, "module": string(req.EntityType)})
	if s.maxBytes > 0 && int64(len(req.Content)) > s.maxBytes {
		s.metrics.IncUploadRejected("too_large")
		return nil, ingest.ErrTooLarge
	}

	start := time.Now()
	parsed, err := s.parser.ParseFile(req.Filename, req.Content, ingest.CSVOptions{
		Encoding:  req.Encoding,
		Delimiter: req.Delimiter,
	})
	s.metrics.ObserveStage("parse", time.Since(start))
	if err != nil {
		s.metrics.IncUploadRejected("parse")
		log.WithError(err).Warn("upload rejected: parse error")
		return nil, err
	}

	rows, result := s.mapAndValidate(req, parsed)
	if !result.IsValid {
		s.metrics.IncUploadRejected("validation")
		log.WithField("errors", len(result.Errors)).Warn("upload rejected: validation failed")
		return nil, &ValidationError{Result: result}
	}

	b := &batch.Batch{
		Filename:    req.Filename,
		EntityType:  req.EntityType,
		RecordCount: len(rows),
		Rows:        rows,
		Status:      batch.StatusPending,
		Checksum:    Checksum(req.Content),
	}
	if err := s.store.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if err := s.queue.Enqueue(b.ID); err != nil {
		s.metrics.IncUploadRejected("queue_full")
		_ = s.processor.fail(ctx, b, nil, err)
		return nil, err
	}

	log.WithFields(logrus.Fields{"batch_id": b.ID, "rows": b.RecordCount}).Info("batch staged")
	return &UploadResult{
		StagingID:   b.ID,
		RecordCount: b.RecordCount,
		Checksum:    b.Checksum,
		Warnings:    result.Warnings,
	}, nil
}

// PathRequest stages a file already on the server
type PathRequest struct {
	InputPath  string
	EntityType entity.Type
	Encoding   string
	Delimiter  string
}

// UploadFromPath stages a file that must resolve inside the allowed base dir
func (s *Service) UploadFromPath(ctx context.Context, req PathRequest) (*UploadResult, error) {
	if s.allowedBaseDir == "" {
		return nil, errors.New("path uploads are disabled: no allowed base directory")
	}
	resolved, content, err := ingest.ReadAllowedFile(req.InputPath, s.allowedBaseDir, s.maxBytes)
	if err != nil {
		s.metrics.IncUploadRejected("path")
		return nil, err
	}
	encoding := req.Encoding
	if encoding == "" {
		encoding = detectEncoding(content)
	}
	return s.Upload(ctx, UploadRequest{
		Filename:   filepath.Base(resolved),
		EntityType: req.EntityType,
		Content:    content,
		Encoding:   encoding,
		Delimiter:  req.Delimiter,
	})
}

// ValidateOnly runs parse, map and validate without staging anything
func (s *Service) ValidateOnly(req UploadRequest) (*ingest.Parsed, []*row.Row, ingest.Result, error) {
	parsed, err := s.parser.ParseFile(req.Filename, req.Content, ingest.CSVOptions{
		Encoding:  req.Encoding,
		Delimiter: req.Delimiter,
	})
	if err != nil {
		return nil, nil, ingest.Result{}, err
	}
	rows, result := s.mapAndValidate(req, parsed)
	return parsed, rows, result, nil
}

// mapAndValidate maps parsed rows unless req.SkipMapping is set and
// validates them. Columns that mapping drops are reported as warnings.
func (s *Service) mapAndValidate(req UploadRequest, parsed *ingest.Parsed) ([]*row.Row, ingest.Result) {
	rows := parsed.Rows
	var dropped []string
	if !req.SkipMapping {
		start := time.Now()
		dropped = s.mapper.Unmapped(req.EntityType, parsed.Columns)
		rows = s.mapper.MapRows(req.EntityType, rows)
		s.metrics.ObserveStage("map", time.Since(start))
	}

	start := time.Now()
	result := s.validator.Validate(req.EntityType, rows)
	s.metrics.ObserveStage("validate", time.Since(start))

	for _, col := range dropped {
		result.Warnings = append(result.Warnings, ingest.Issue{
			Row:     1,
			Field:   col,
			Message: fmt.Sprintf("Column %q is not recognized for %s and will not be imported", col, req.EntityType),
		})
	}
	return rows, result
}

// Checksum is the hex xxhash64 of content
func Checksum(content []byte) string {
	h := xxhash.New()
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// detectEncoding guesses a CSV encoding: windows-1251 when the bytes are not
// valid UTF-8
func detectEncoding(content []byte) string {
	if utf8.Valid(content) {
		return "utf-8"
	}
	return "windows-1251"
}
