package database

import (
	"container/list"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/internal/tracking"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// ErrManagerClosed is returned by Connect after Close.
var ErrManagerClosed = errors.New("database manager is closed")

// Manager opens one pool per datasource name on first use and hands out sessions from it.
// Pools are evicted least-recently-used beyond MaxSize and closed after IdleTTL without
// use; pools with sessions checked out are never closed. Safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	logger logger.Logger
	opener Opener

	mu     sync.Mutex
	pools  map[string]*poolEntry
	closed bool

	lru     *list.List
	maxSize int

	idleTTL   time.Duration
	cleanupMu sync.Mutex
	cleanupCh chan struct{}

	sfg singleflight.Group
}

type poolEntry struct {
	name       string
	cfg        config.DatabaseConfig
	db         *sql.DB
	dialect    types.Dialect
	metaCache  cache.Cache
	unregister func()

	element  *list.Element
	lastUsed time.Time
	active   int
}

// ManagerOptions configures the Manager.
type ManagerOptions struct {
	MaxSize int           // pools kept open; default 16
	IdleTTL time.Duration // unused pools are closed after this; default 30m
	// Opener replaces OpenPool, mainly for tests.
	Opener Opener
}

// NewManager creates a manager over the datasources in cfg.
func NewManager(cfg *config.Config, log logger.Logger, opts ManagerOptions) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 16
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.Opener == nil {
		opts.Opener = OpenPool
	}

	return &Manager{
		cfg:     cfg,
		logger:  log,
		opener:  opts.Opener,
		pools:   make(map[string]*poolEntry),
		lru:     list.New(),
		maxSize: opts.MaxSize,
		idleTTL: opts.IdleTTL,
	}
}

// Connect returns a new session on the named datasource. The caller must Close it.
func (m *Manager) Connect(ctx context.Context, name string, opts ...Option) (*Connection, error) {
	entry, err := m.acquire(ctx, name)
	if err != nil {
		return nil, err
	}

	base := []Option{WithLogger(m.logger), withRelease(func() error {
		m.releaseEntry(entry)
		return nil
	})}
	if entry.metaCache != nil {
		base = append(base, WithMetadataCache(entry.metaCache))
	}
	conn, err := NewConnection(ctx, entry.db, name, &entry.cfg, entry.dialect, append(base, opts...)...)
	if err != nil {
		m.releaseEntry(entry)
		return nil, err
	}
	return conn, nil
}

// acquire returns the pool for name with its session count already raised.
func (m *Manager) acquire(ctx context.Context, name string) (*poolEntry, error) {
	if entry, err := m.getExisting(name); entry != nil || err != nil {
		return entry, err
	}

	_, err, _ := m.sfg.Do(name, func() (any, error) {
		if entry, err := m.peek(name); entry != nil || err != nil {
			return nil, err
		}
		return nil, m.createPool(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	entry, err := m.getExisting(name)
	if err == nil && entry == nil {
		// evicted between creation and use
		return m.acquire(ctx, name)
	}
	return entry, err
}

func (m *Manager) peek(name string) (*poolEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	return m.pools[name], nil
}

// getExisting returns the pool for name, marking it used, or nil if none is open.
func (m *Manager) getExisting(name string) (*poolEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	entry, ok := m.pools[name]
	if !ok {
		return nil, nil
	}
	entry.lastUsed = time.Now()
	entry.active++
	m.lru.MoveToFront(entry.element)
	return entry, nil
}

func (m *Manager) releaseEntry(entry *poolEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.active--
	entry.lastUsed = time.Now()
}

func (m *Manager) createPool(ctx context.Context, name string) error {
	dsCfg, err := m.cfg.Datasource(name)
	if err != nil {
		return err
	}
	if err := config.ValidateDatabase(name, &dsCfg); err != nil {
		return fmt.Errorf("datasource %s: %w", name, err)
	}

	db, dialect, err := m.opener(ctx, &dsCfg, m.logger)
	if err != nil {
		return fmt.Errorf("failed to open datasource %s: %w", name, err)
	}
	metaCache, err := newMetadataCache(ctx, &dsCfg)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open metadata cache for datasource %s: %w", name, err)
	}

	entry := &poolEntry{
		name:       name,
		cfg:        dsCfg,
		db:         db,
		dialect:    dialect,
		metaCache:  metaCache,
		unregister: tracking.RegisterConnectionPoolMetrics(db.Stats, name, dsCfg.Type),
		lastUsed:   time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.closeEntry(entry)
		return ErrManagerClosed
	}

	m.evictIfNeeded()
	entry.element = m.lru.PushFront(name)
	m.pools[name] = entry

	m.logger.Info().
		Str("datasource", name).
		Str("db_type", dsCfg.Type).
		Msg("Opened datasource pool")

	return nil
}

// evictIfNeeded closes the least recently used idle pool while at capacity.
// Pools with sessions checked out are skipped, so the limit is soft.
func (m *Manager) evictIfNeeded() {
	for e := m.lru.Back(); e != nil && len(m.pools) >= m.maxSize; {
		prev := e.Prev()
		entry := m.pools[e.Value.(string)]
		if entry.active == 0 {
			m.removeEntry(entry)
			m.logger.Debug().
				Str("datasource", entry.name).
				Msg("Evicted datasource pool due to LRU limit")
		}
		e = prev
	}
}

func (m *Manager) removeEntry(entry *poolEntry) {
	delete(m.pools, entry.name)
	m.lru.Remove(entry.element)
	if err := m.closeEntry(entry); err != nil {
		m.logger.Error().
			Err(err).
			Str("datasource", entry.name).
			Msg("Error closing datasource pool")
	}
}

func (m *Manager) closeEntry(entry *poolEntry) error {
	if entry.unregister != nil {
		entry.unregister()
	}
	var errs []error
	if entry.metaCache != nil {
		errs = append(errs, entry.metaCache.Close())
	}
	errs = append(errs, entry.db.Close())
	return errors.Join(errs...)
}

// StartCleanup starts closing idle pools every interval (default 5m).
func (m *Manager) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.cleanupMu.Lock()
	if m.cleanupCh != nil {
		m.cleanupMu.Unlock()
		return
	}
	done := make(chan struct{})
	m.cleanupCh = done
	m.cleanupMu.Unlock()

	go m.cleanupLoop(interval, done)
}

// StopCleanup stops the background cleanup routine.
func (m *Manager) StopCleanup() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	if m.cleanupCh == nil {
		return
	}
	close(m.cleanupCh)
	m.cleanupCh = nil
}

func (m *Manager) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdlePools()
		case <-done:
			return
		}
	}
}

// cleanupIdlePools closes pools without sessions that have been unused longer than idleTTL.
func (m *Manager) cleanupIdlePools() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, entry := range m.pools {
		if entry.active > 0 || now.Sub(entry.lastUsed) <= m.idleTTL {
			continue
		}
		m.removeEntry(entry)
		m.logger.Debug().
			Str("datasource", entry.name).
			Dur("idle_time", now.Sub(entry.lastUsed)).
			Msg("Closed idle datasource pool")
	}
}

// Close stops cleanup and closes every pool. Sessions still open fail on next use.
func (m *Manager) Close() error {
	m.StopCleanup()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for name, entry := range m.pools {
		if err := m.closeEntry(entry); err != nil {
			errs = append(errs, fmt.Errorf("error closing datasource %s: %w", name, err))
		}
	}
	m.pools = make(map[string]*poolEntry)
	m.lru.Init()

	return errors.Join(errs...)
}

// Size returns the number of open pools.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Stats returns pool statistics keyed for diagnostics output.
func (m *Manager) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	pools := make([]map[string]any, 0, len(m.pools))
	for e := m.lru.Front(); e != nil; e = e.Next() {
		entry := m.pools[e.Value.(string)]
		st := entry.db.Stats()
		pools = append(pools, map[string]any{
			"datasource":       entry.name,
			"type":             entry.cfg.Type,
			"sessions":         entry.active,
			"open_connections": st.OpenConnections,
			"in_use":           st.InUse,
			"idle":             st.Idle,
			"last_used":        entry.lastUsed.Format(time.RFC3339),
			"idle_seconds":     int(now.Sub(entry.lastUsed).Seconds()),
		})
	}

	return map[string]any{
		"open_pools":       len(m.pools),
		"max_pools":        m.maxSize,
		"idle_ttl_seconds": int(m.idleTTL.Seconds()),
		"pools":            pools,
	}
}
