package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// mutableSource counts loads and can be changed between calls
type mutableSource struct {
	mu    sync.Mutex
	creds Credentials
	err   error
	loads int
}

func (s *mutableSource) Credentials(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.creds, s.err
}

func (s *mutableSource) set(c Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
}

func TestNotConfiguredMakesNoCall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	c := New(StaticCredentials{BaseURL: server.URL, APIKey: "key"}, Options{})

	res := c.CreateItem(context.Background(), row.FromPairs("item_code", "A"))
	assert.False(t, res.Success)
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)
	assert.Equal(t, 0, res.StatusCode)

	health := c.CheckHealth(context.Background())
	assert.False(t, health.Success)
	assert.Equal(t, ErrNotConfigured.Error(), health.Error)
	assert.Equal(t, 0, health.StatusCode)

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestCreateRecordSendsAuthorizedJSON(t *testing.T) {
	var gotPath, gotEscaped, gotAuth, gotMethod, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotEscaped = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"name":"SO-0001"}}`))
	}))
	defer server.Close()

	c := New(StaticCredentials{BaseURL: server.URL + "/", APIKey: "key", APISecret: "secret"}, Options{})
	res := c.CreateSalesOrder(context.Background(), row.FromPairs("customer", "CUST-1", "qty", 5))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.GreaterOrEqual(t, res.ResponseTimeMs, int64(0))
	assert.JSONEq(t, `{"data":{"name":"SO-0001"}}`, string(res.Data))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/resource/Sales Order", gotPath)
	assert.Equal(t, "/api/resource/Sales%20Order", gotEscaped)
	assert.Equal(t, "token key:secret", gotAuth)
	assert.Equal(t, `{"customer":"CUST-1","qty":5}`, gotBody)
}

func TestEntityShortcutsHitTheirEndpoints(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(StaticCredentials{BaseURL: server.URL, APIKey: "k", APISecret: "s"}, Options{})
	ctx := context.Background()
	r := row.New()
	c.CreateItem(ctx, r)
	c.CreateCustomer(ctx, r)
	c.CreateSalesOrder(ctx, r)
	c.CreateSalesInvoice(ctx, r)
	c.CreatePaymentEntry(ctx, r)

	var want []string
	for _, et := range entity.All() {
		want = append(want, et.Endpoint())
	}
	assert.Equal(t, want, paths)
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "message field",
			status: http.StatusConflict,
			body:   `{"message":"Duplicate entry ITEM-001"}`,
			want:   "Duplicate entry ITEM-001",
		},
		{
			name:   "exception field",
			status: http.StatusExpectationFailed,
			body:   `{"exception":"frappe.exceptions.MandatoryError: field 'territory' is mandatory","exc_type":"MandatoryError"}`,
			want:   "frappe.exceptions.MandatoryError: field 'territory' is mandatory",
		},
		{
			name:   "server messages",
			status: http.StatusExpectationFailed,
			body:   `{"_server_messages":"[\"{\\\"message\\\": \\\"Invalid date format\\\"}\"]"}`,
			want:   "Invalid date format",
		},
		{
			name:   "plain text body",
			status: http.StatusBadGateway,
			body:   "upstream down",
			want:   "HTTP 502: upstream down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(StaticCredentials{BaseURL: server.URL, APIKey: "k", APISecret: "s"}, Options{})
			res := c.CreateCustomer(context.Background(), row.New())
			assert.False(t, res.Success)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.want, res.Error)
		})
	}
}

func TestNetworkFailureBecomesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(StaticCredentials{BaseURL: url, APIKey: "k", APISecret: "s"}, Options{})
	res := c.CreateItem(context.Background(), row.New())
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.StatusCode)
	assert.Contains(t, res.Error, "http error")
}

func TestCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/method/ping", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"message":"pong"}`))
	}))
	defer server.Close()

	c := New(StaticCredentials{BaseURL: server.URL, APIKey: "k", APISecret: "s"}, Options{})
	res := c.CheckHealth(context.Background())
	require.True(t, res.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Equal(t, "pong", data["message"])
}

func TestForceReinitReloadsCredentials(t *testing.T) {
	var lastAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	src := &mutableSource{creds: Credentials{BaseURL: server.URL, APIKey: "old", APISecret: "s"}}
	c := New(src, Options{})
	ctx := context.Background()

	require.True(t, c.CreateItem(ctx, row.New()).Success)
	assert.Equal(t, "token old:s", lastAuth.Load())

	src.set(Credentials{BaseURL: server.URL, APIKey: "new", APISecret: "s"})
	require.True(t, c.CreateItem(ctx, row.New()).Success)
	assert.Equal(t, "token old:s", lastAuth.Load(), "cached until reinit")
	assert.Equal(t, 1, src.loads)

	c.ForceReinit()
	assert.Equal(t, uint64(1), c.Generation())
	require.True(t, c.CreateItem(ctx, row.New()).Success)
	assert.Equal(t, "token new:s", lastAuth.Load())
	assert.Equal(t, 2, src.loads)
}

func TestIncompleteCredentialsAreNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	src := &mutableSource{err: errors.New("settings unavailable")}
	c := New(src, Options{})

	res := c.CreateItem(context.Background(), row.New())
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)

	src.mu.Lock()
	src.err = nil
	src.creds = Credentials{BaseURL: server.URL, APIKey: "k", APISecret: "s"}
	src.mu.Unlock()

	assert.True(t, c.CreateItem(context.Background(), row.New()).Success)
}

func TestForceReinitDuringInFlightCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(StaticCredentials{BaseURL: server.URL, APIKey: "k", APISecret: "s"}, Options{})

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if !c.CreateItem(context.Background(), row.New()).Success {
					atomic.AddInt32(&failures, 1)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.ForceReinit()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&failures))
	assert.Equal(t, uint64(80), c.Generation())
}
