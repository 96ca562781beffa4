// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides a durable, namespaced key-value store for upstream
// responses. Each namespace is an independent eviction domain with a TTL and
// a byte-size ceiling reclaimed least-recently-used first. Backing-store
// failures degrade to cache misses and are never surfaced to callers;
// caching is an optimization, not a correctness dependency.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Namespaces used by the engine. Each is bounded and evicted independently.
const (
	NamespaceAIResponses  = "ai-responses"
	NamespaceQueryResults = "query-results"
)

const dbFile = "cache.db"

// DefaultSizeLimit is the per-namespace byte ceiling when none is configured.
const DefaultSizeLimit int64 = 500 * 1024 * 1024

// Stats reports usage counters for one namespace.
type Stats struct {
	Count  int   `json:"count"`
	Bytes  int64 `json:"bytes"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Store is a SQLite-backed cache. Safe for concurrent use within one
// process; the read-modify-write sequences around eviction bookkeeping are
// serialized per namespace.
type Store struct {
	db         *sql.DB
	defaultTTL time.Duration
	sizeLimit  int64

	mu         sync.Mutex
	namespaces map[string]*nsState

	// now is the clock, overridable in tests.
	now func() time.Time
}

type nsState struct {
	mu     sync.Mutex
	hits   int64
	misses int64
}

// Open creates or opens the cache database under dir. Initialization sweeps
// expired entries; the sweep is advisory housekeeping, and a Get on an
// expired key reports absent regardless.
func Open(dir string, defaultTTL time.Duration, sizeLimit int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}

	s := &Store{
		db:         db,
		defaultTTL: defaultTTL,
		sizeLimit:  sizeLimit,
		namespaces: make(map[string]*nsState),
		now:        time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	s.sweepExpired()
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			last_access INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_expiry ON entries(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_access ON entries(namespace, last_access)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) ns(name string) *nsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.namespaces[name]
	if !ok {
		st = &nsState{}
		s.namespaces[name] = st
	}
	return st
}

// Get looks up the cached value for the given request parameters and
// unmarshals it into dest. It returns false on a miss, an expired entry,
// or any backing-store error.
func (s *Store) Get(namespace string, params map[string]any, dest any) bool {
	key := Key(params)
	st := s.ns(namespace)
	st.mu.Lock()
	defer st.mu.Unlock()

	var value []byte
	var expiresAt int64
	row := s.db.QueryRow(
		`SELECT value, expires_at FROM entries WHERE namespace = ? AND key = ?`,
		namespace, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		st.misses++
		return false
	}

	nowUnix := s.now().UnixNano()
	if expiresAt <= nowUnix {
		// Treated as absent; physical removal is best-effort.
		s.db.Exec(`DELETE FROM entries WHERE namespace = ? AND key = ?`, namespace, key)
		st.misses++
		return false
	}

	if err := unmarshalValue(value, dest); err != nil {
		st.misses++
		return false
	}

	s.db.Exec(`UPDATE entries SET last_access = ? WHERE namespace = ? AND key = ?`,
		nowUnix, namespace, key)
	st.hits++
	return true
}

// Set writes value under the key derived from params with the given TTL
// (the store default when ttl <= 0), then reclaims space if the namespace
// exceeds its byte ceiling. Failures are silent; the caller proceeds as if
// the write never happened.
func (s *Store) Set(namespace string, params map[string]any, value any, ttl time.Duration) {
	data, err := marshalValue(value)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	key := Key(params)
	now := s.now()

	st := s.ns(namespace)
	st.mu.Lock()
	defer st.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO entries
			(namespace, key, value, size_bytes, created_at, expires_at, last_access)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		namespace, key, data, int64(len(data)),
		now.UnixNano(), now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return
	}

	s.evict(namespace)
}

// evict removes least-recently-accessed entries until the namespace is at
// or below its byte ceiling. Caller holds the namespace lock.
func (s *Store) evict(namespace string) {
	for {
		var bytes int64
		row := s.db.QueryRow(
			`SELECT COALESCE(SUM(size_bytes), 0) FROM entries WHERE namespace = ?`,
			namespace)
		if err := row.Scan(&bytes); err != nil {
			return
		}
		if bytes <= s.sizeLimit {
			return
		}

		res, err := s.db.Exec(
			`DELETE FROM entries WHERE namespace = ?1 AND key =
				(SELECT key FROM entries WHERE namespace = ?1
				 ORDER BY last_access ASC LIMIT 1)`,
			namespace)
		if err != nil {
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return
		}
	}
}

// Stats returns usage counters for the namespace. Hit and miss counts are
// per-process; count and bytes reflect the durable state.
func (s *Store) Stats(namespace string) Stats {
	st := s.ns(namespace)
	st.mu.Lock()
	defer st.mu.Unlock()

	var out Stats
	out.Hits = st.hits
	out.Misses = st.misses

	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries WHERE namespace = ?`,
		namespace)
	row.Scan(&out.Count, &out.Bytes)
	return out
}

// Clear drops all entries in the namespace.
func (s *Store) Clear(namespace string) {
	st := s.ns(namespace)
	st.mu.Lock()
	defer st.mu.Unlock()
	s.db.Exec(`DELETE FROM entries WHERE namespace = ?`, namespace)
}

// ClearAll drops every entry in every namespace. Namespace locks are taken
// in name order so concurrent callers cannot deadlock on each other.
func (s *Store) ClearAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	states := make([]*nsState, 0, len(names))
	for _, name := range names {
		states = append(states, s.ns(name))
	}
	for _, st := range states {
		st.mu.Lock()
	}
	s.db.Exec(`DELETE FROM entries`)
	for _, st := range states {
		st.mu.Unlock()
	}
}

// sweepExpired removes entries past their expiry. Returns the number removed.
func (s *Store) sweepExpired() int {
	res, err := s.db.Exec(`DELETE FROM entries WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}
