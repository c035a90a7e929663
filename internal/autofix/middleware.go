// Package autofix retries failed ERPNext creates after applying
// pattern-matched corrections to the row.
package autofix

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// DefaultMaxRetries is used when ProcessRecord gets a non-positive limit
const DefaultMaxRetries = 3

// Creator is the remote create operation the middleware retries
type Creator interface {
	CreateRecord(ctx context.Context, t entity.Type, data *row.Row) client.Result
}

// Result is the outcome of a remediation run
type Result struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
	FixesApplied []string        `json:"fixesApplied"`
	// Attempts counts remote calls made
	Attempts int `json:"attempts"`
	// Row is the last row sent to the remote
	Row *row.Row `json:"-"`
}

// Middleware holds the ordered strategy list
type Middleware struct {
	creator Creator
	log     logrus.FieldLogger
	metrics *metrics.Registry

	mu         sync.RWMutex
	strategies []Strategy
}

// Option configures a Middleware
type Option func(*Middleware)

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Middleware) { m.log = l }
}

// WithMetrics counts applied strategies
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Middleware) { m.metrics = r }
}

// WithClock replaces time.Now in the built-in strategies
func WithClock(now func() time.Time) Option {
	return func(m *Middleware) { m.strategies = DefaultStrategies(now) }
}

// New creates a middleware with the built-in strategies
func New(creator Creator, opts ...Option) *Middleware {
	m := &Middleware{
		creator:    creator,
		log:        logging.Discard(),
		strategies: DefaultStrategies(time.Now),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddStrategy appends s after the existing strategies
func (m *Middleware) AddStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, s)
}

// Strategies returns a copy of the strategy list in priority order
func (m *Middleware) Strategies() []Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Strategy, len(m.strategies))
	copy(out, m.strategies)
	return out
}

// ProcessRecord tries to recover a row whose create failed with message.
// Each outer iteration walks every strategy in order; each one that matches
// the current message and produces a row triggers a remote retry. A success
// returns immediately, a failure replaces the message. At most maxRetries
// remote calls are made. original is never modified.
func (m *Middleware) ProcessRecord(ctx context.Context, t entity.Type, original *row.Row, message string, maxRetries int) Result {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	res := Result{FixesApplied: []string{}, Row: original}
	if !t.Valid() {
		res.Error = fmt.Sprintf("Unsupported module: %s", t)
		return res
	}

	strategies := m.Strategies()
	current := original
	lastErr := message
	log := m.log.WithField("module", string(t))

	for iter := 0; iter < maxRetries && res.Attempts < maxRetries; iter++ {
		applied := false
		for _, s := range strategies {
			if res.Attempts >= maxRetries {
				break
			}
			if !s.Pattern.MatchString(lastErr) {
				continue
			}
			fixed := m.apply(s, current, lastErr)
			if fixed == nil {
				continue
			}

			applied = true
			current = fixed
			res.Row = current
			res.FixesApplied = append(res.FixesApplied, s.Description)
			res.Attempts++
			m.metrics.IncAutoFix(s.Description)
			log.WithFields(logrus.Fields{"strategy": s.Description, "attempt": res.Attempts}).Debug("applying auto-fix strategy")

			out := m.creator.CreateRecord(ctx, t, current)
			if out.Success {
				log.WithField("attempts", res.Attempts).Info("auto-fix succeeded")
				res.Success = true
				res.Data = out.Data
				return res
			}
			lastErr = out.Error
			if lastErr == "" {
				lastErr = "Unknown error after fix attempt"
			}
		}
		// nothing matched or nothing could be fixed: later iterations would
		// see the same message and row
		if !applied {
			break
		}
	}

	res.Error = fmt.Sprintf("Auto-fix failed after %d attempts. Last error: %s", maxRetries, lastErr)
	return res
}

// apply runs s on a copy of r, treating a panic as "cannot act"
func (m *Middleware) apply(s Strategy, r *row.Row, message string) (fixed *row.Row) {
	defer func() {
		if p := recover(); p != nil {
			m.log.WithField("strategy", s.Description).Errorf("auto-fix strategy panicked: %v", p)
			fixed = nil
		}
	}()
	return s.Fix(r.Clone(), message)
}
