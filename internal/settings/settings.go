// Package settings stores key-value configuration and resolves ERPNext
// credentials from it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
)

const (
	KeyBaseURL   = "erpnext_base_url"
	KeyAPIKey    = "erpnext_api_key"
	KeyAPISecret = "erpnext_api_secret"
)

// ErrIncomplete is returned by Save when a credential is blank
var ErrIncomplete = errors.New("All fields are required")

var descriptions = map[string]string{
	KeyBaseURL:   "ERPNext base URL",
	KeyAPIKey:    "ERPNext API key",
	KeyAPISecret: "ERPNext API secret",
}

// Store is a key-value settings store. Get returns "" for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
}

// MemoryStore is a Store backed by a map
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key, value, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// PostgresStore keeps settings in the settings table
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("error reading setting %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value, description string) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO settings (key, value, description, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
		description = COALESCE(EXCLUDED.description, settings.description),
		updated_at = now()`, key, value, description)
	if err != nil {
		return fmt.Errorf("error writing setting %s: %w", key, err)
	}
	return nil
}

// Resolver is a client.CredentialSource. Each non-empty stored value wins
// over the matching fallback value.
type Resolver struct {
	store    Store
	fallback client.Credentials
}

func NewResolver(store Store, fallback client.Credentials) *Resolver {
	return &Resolver{store: store, fallback: fallback}
}

func (r *Resolver) Credentials(ctx context.Context) (client.Credentials, error) {
	stored, err := r.Stored(ctx)
	if err != nil {
		return client.Credentials{}, err
	}
	return client.Credentials{
		BaseURL:   firstNonEmpty(stored.BaseURL, r.fallback.BaseURL),
		APIKey:    firstNonEmpty(stored.APIKey, r.fallback.APIKey),
		APISecret: firstNonEmpty(stored.APISecret, r.fallback.APISecret),
	}, nil
}

// Stored returns only what the store holds, without the fallback
func (r *Resolver) Stored(ctx context.Context) (client.Credentials, error) {
	var c client.Credentials
	var err error
	if c.BaseURL, err = r.store.Get(ctx, KeyBaseURL); err != nil {
		return client.Credentials{}, err
	}
	if c.APIKey, err = r.store.Get(ctx, KeyAPIKey); err != nil {
		return client.Credentials{}, err
	}
	if c.APISecret, err = r.store.Get(ctx, KeyAPISecret); err != nil {
		return client.Credentials{}, err
	}
	return c, nil
}

// Save writes all three credentials. Every value is required.
func (r *Resolver) Save(ctx context.Context, c client.Credentials) error {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.APISecret = strings.TrimSpace(c.APISecret)
	if !c.Complete() {
		return ErrIncomplete
	}
	for _, kv := range [][2]string{{KeyBaseURL, c.BaseURL}, {KeyAPIKey, c.APIKey}, {KeyAPISecret, c.APISecret}} {
		if err := r.store.Set(ctx, kv[0], kv[1], descriptions[kv[0]]); err != nil {
			return err
		}
	}
	return nil
}

// Mask hides all but the last four characters of a secret
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
