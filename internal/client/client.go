package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// ErrNotConfigured is reported (as Result.Error) while credentials are incomplete
var ErrNotConfigured = errors.New("ERPNext client not configured. Please add your API credentials in Settings.")

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Credentials identify an ERPNext site and API user
type Credentials struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// Complete reports whether all three values are set
func (c Credentials) Complete() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.APISecret != ""
}

// CredentialSource supplies credentials when the client (re)initializes
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialSource with fixed values
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// Result is the uniform outcome of every remote call. Transport and HTTP
// failures are reported here, never as Go errors.
type Result struct {
	Success        bool            `json:"success"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
	StatusCode     int             `json:"statusCode"`
	ResponseTimeMs int64           `json:"responseTimeMs"`
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Timeout   time.Duration
	Transport http.RoundTripper
	Metrics   *metrics.Registry
	Logger    logrus.FieldLogger
}

// snapshot is the initialized state shared by in-flight calls. ForceReinit
// replaces the pointer; calls that already hold one finish with it.
type snapshot struct {
	baseURL    string
	authHeader string
	http       *http.Client
}

// Client creates ERPNext documents through the REST resource API
type Client struct {
	source    CredentialSource
	timeout   time.Duration
	transport http.RoundTripper
	metrics   *metrics.Registry
	log       logrus.FieldLogger

	mu         sync.Mutex
	snap       *snapshot
	generation uint64
}

// New creates a client that resolves credentials lazily from source
func New(source CredentialSource, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Client{
		source:    source,
		timeout:   opts.Timeout,
		transport: opts.Transport,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

// ForceReinit drops the cached credentials; the next call reloads them
func (c *Client) ForceReinit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.generation++
	c.log.WithField("generation", c.generation).Info("ERPNext client reset, credentials reload on next call")
}

// Generation counts ForceReinit calls
func (c *Client) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// current returns the cached snapshot, initializing it on first use.
// Incomplete credentials are not cached so a later settings change is
// picked up even without ForceReinit.
func (c *Client) current(ctx context.Context) (*snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil {
		return c.snap, nil
	}
	if c.source == nil {
		return nil, ErrNotConfigured
	}

	creds, err := c.source.Credentials(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to load ERPNext credentials")
		return nil, ErrNotConfigured
	}
	if !creds.Complete() {
		return nil, ErrNotConfigured
	}

	c.snap = &snapshot{
		baseURL:    strings.TrimRight(creds.BaseURL, "/"),
		authHeader: "token " + creds.APIKey + ":" + creds.APISecret,
		http: &http.Client{
			Timeout:   c.timeout,
			Transport: c.transport,
		},
	}
	return c.snap, nil
}

func (c *Client) CreateItem(ctx context.Context, data *row.Row) Result {
	return c.CreateRecord(ctx, entity.Item, data)
}

func (c *Client) CreateCustomer(ctx context.Context, data *row.Row) Result {
	return c.CreateRecord(ctx, entity.Customer, data)
}

func (c *Client) CreateSalesOrder(ctx context.Context, data *row.Row) Result {
	return c.CreateRecord(ctx, entity.SalesOrder, data)
}

func (c *Client) CreateSalesInvoice(ctx context.Context, data *row.Row) Result {
	return c.CreateRecord(ctx, entity.SalesInvoice, data)
}

func (c *Client) CreatePaymentEntry(ctx context.Context, data *row.Row) Result {
	return c.CreateRecord(ctx, entity.PaymentEntry, data)
}

// CreateRecord POSTs data to /api/resource/<doctype>
func (c *Client) CreateRecord(ctx context.Context, t entity.Type, data *row.Row) Result {
	start := time.Now()

	body, err := json.Marshal(data)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal error: %v", err), ResponseTimeMs: since(start)}
	}

	res := c.do(ctx, http.MethodPost, "/api/resource/"+url.PathEscape(string(t)), body, start)
	c.metrics.ObserveRemote(string(t), res.Success, time.Since(start))
	return res
}

// CheckHealth pings the site. Data is {"message": ..., "version": ...}.
func (c *Client) CheckHealth(ctx context.Context) Result {
	start := time.Now()
	res := c.do(ctx, http.MethodGet, "/api/method/ping", nil, start)
	c.metrics.ObserveRemote("ping", res.Success, time.Since(start))
	if !res.Success {
		return res
	}

	var ping struct {
		Message string `json:"message"`
		Version string `json:"version,omitempty"`
	}
	_ = json.Unmarshal(res.Data, &ping)
	if ping.Message == "" {
		ping.Message = "pong"
	}
	res.Data, _ = json.Marshal(ping)
	return res
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, start time.Time) Result {
	snap, err := c.current(ctx)
	if err != nil {
		return Result{Error: err.Error(), ResponseTimeMs: since(start)}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, snap.baseURL+path, reader)
	if err != nil {
		return Result{Error: fmt.Sprintf("create request error: %v", err), ResponseTimeMs: since(start)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", snap.authHeader)

	resp, err := snap.http.Do(req)
	if err != nil {
		return Result{Error: fmt.Sprintf("http error: %v", err), ResponseTimeMs: since(start)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Result{Error: fmt.Sprintf("read response: %v", err), StatusCode: resp.StatusCode, ResponseTimeMs: since(start)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res := Result{Success: true, StatusCode: resp.StatusCode, ResponseTimeMs: since(start)}
		if json.Valid(respBody) {
			res.Data = respBody
		} else if len(respBody) > 0 {
			res.Data, _ = json.Marshal(string(respBody))
		}
		return res
	}

	return Result{
		Error:          (&HTTPError{StatusCode: resp.StatusCode, Body: respBody}).Message(),
		StatusCode:     resp.StatusCode,
		ResponseTimeMs: since(start),
	}
}

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
