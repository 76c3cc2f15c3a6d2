// Package pgstore persists findings and registrations in PostgreSQL through
// database/sql and the pgx driver.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	driverNameConstant              = "pgx"
	registrationCacheSizeConstant   = 1024
	defaultRegistrationCacheTTL     = 5 * time.Second
	dsnRequiredMessageConstant      = "postgres dsn is required"
	databaseRequiredMessageConstant = "postgres store requires a database handle"
	openErrorTemplateConstant       = "open postgres store: %w"
	pingErrorTemplateConstant       = "ping postgres store: %w"
	schemaErrorTemplateConstant     = "ensure postgres schema: %w"
)

var (
	// ErrDSNRequired indicates Open was called without a connection string.
	ErrDSNRequired = errors.New(dsnRequiredMessageConstant)
	// ErrDatabaseRequired indicates NewStore was called without a database handle.
	ErrDatabaseRequired = errors.New(databaseRequiredMessageConstant)
)

const schemaStatement = `
CREATE TABLE IF NOT EXISTS propaudit_findings (
  id BIGSERIAL PRIMARY KEY,
  owner TEXT NOT NULL,
  project_root TEXT NOT NULL,
  file_name TEXT NOT NULL,
  finding_key TEXT NOT NULL,
  violation TEXT NOT NULL,
  severity TEXT NOT NULL,
  message TEXT NOT NULL,
  line INTEGER NOT NULL,
  column_number INTEGER NOT NULL,
  char_start INTEGER NOT NULL,
  char_end INTEGER NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_propaudit_findings_scope ON propaudit_findings (owner, project_root);

CREATE TABLE IF NOT EXISTS propaudit_registrations (
  project_root TEXT NOT NULL,
  builder TEXT NOT NULL,
  project_name TEXT NOT NULL DEFAULT '',
  registered_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  PRIMARY KEY (project_root, builder)
);
`

// StoreOption customizes a Store.
type StoreOption func(store *Store)

// WithRegistrationCacheTTL bounds how long registration lookups are reused.
// Registrations written by other processes become visible once the entry
// expires. A non-positive ttl disables the cache.
func WithRegistrationCacheTTL(ttl time.Duration) StoreOption {
	return func(store *Store) {
		store.registrationCacheTTL = ttl
	}
}

// Store owns the database handle shared by the finding sink and the registry.
type Store struct {
	db                   *sql.DB
	schemaMutex          sync.Mutex
	schemaReady          bool
	registrationCacheTTL time.Duration
	registrationCache    *expirable.LRU[string, bool]
}

// Open connects to PostgreSQL using dsn and verifies the connection.
func Open(executionContext context.Context, dsn string, options ...StoreOption) (*Store, error) {
	trimmedDSN := strings.TrimSpace(dsn)
	if len(trimmedDSN) == 0 {
		return nil, ErrDSNRequired
	}
	db, openError := sql.Open(driverNameConstant, trimmedDSN)
	if openError != nil {
		return nil, fmt.Errorf(openErrorTemplateConstant, openError)
	}
	if pingError := db.PingContext(executionContext); pingError != nil {
		_ = db.Close()
		return nil, fmt.Errorf(pingErrorTemplateConstant, pingError)
	}
	store, storeError := NewStore(db, options...)
	if storeError != nil {
		_ = db.Close()
		return nil, storeError
	}
	return store, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB, options ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	store := &Store{db: db, registrationCacheTTL: defaultRegistrationCacheTTL}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	if store.registrationCacheTTL > 0 {
		store.registrationCache = expirable.NewLRU[string, bool](registrationCacheSizeConstant, nil, store.registrationCacheTTL)
	}
	return store, nil
}

// EnsureSchema creates the findings and registrations tables when absent.
// A failed attempt is retried on the next call.
func (store *Store) EnsureSchema(executionContext context.Context) error {
	store.schemaMutex.Lock()
	defer store.schemaMutex.Unlock()

	if store.schemaReady {
		return nil
	}
	if _, execError := store.db.ExecContext(executionContext, schemaStatement); execError != nil {
		return fmt.Errorf(schemaErrorTemplateConstant, execError)
	}
	store.schemaReady = true
	return nil
}

func (store *Store) cachedRegistration(projectRoot string) (bool, bool) {
	if store.registrationCache == nil {
		return false, false
	}
	return store.registrationCache.Get(projectRoot)
}

func (store *Store) cacheRegistration(projectRoot string, registered bool) {
	if store.registrationCache != nil {
		store.registrationCache.Add(projectRoot, registered)
	}
}

func (store *Store) forgetRegistration(projectRoot string) {
	if store.registrationCache != nil {
		store.registrationCache.Remove(projectRoot)
	}
}

// Close releases the database handle.
func (store *Store) Close() error {
	return store.db.Close()
}

// FindingSink returns a sink persisting findings in this store.
func (store *Store) FindingSink() *FindingSink {
	return &FindingSink{store: store}
}

// Registry returns a project registry persisted in this store.
func (store *Store) Registry() *Registry {
	return &Registry{store: store}
}
