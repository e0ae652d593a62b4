package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
	"github.com/wonny/horizon/backend/pkg/redis"
)

// Store gives every training/prediction request a private working
// directory and a single source of truth for its lifecycle status.
//
// Status documents live at <root>/<session_id>/metadata.json and are
// mirrored in an in-process cache for fast polling. A per-session mutex
// keeps load-mutate-save sequences atomic within the process; across
// processes last-writer-wins. Session ids are caller-supplied opaque
// tokens; the store never generates or validates uniqueness.
type Store struct {
	root      string
	retention time.Duration

	mu    sync.RWMutex
	cache map[string]*Session
	locks map[string]*sync.Mutex

	remote    *redis.Cache // optional cross-process status cache
	remoteTTL time.Duration
	index     *Repository // optional Postgres session index

	logger *logger.Logger
}

// NewStore creates a session store rooted at the configured directory.
func NewStore(cfg *config.Config, log *logger.Logger) *Store {
	return &Store{
		root:      cfg.Sessions.Root,
		retention: cfg.Sessions.Retention,
		remoteTTL: cfg.Sessions.CacheTTL,
		cache:     make(map[string]*Session),
		locks:     make(map[string]*sync.Mutex),
		logger:    log.WithComponent("session.store"),
	}
}

// WithRemoteCache attaches an optional Redis read-through cache.
func (s *Store) WithRemoteCache(cache *redis.Cache) *Store {
	s.remote = cache
	return s
}

// WithIndex attaches an optional Postgres session index. Index writes
// are best-effort and never fail a save.
func (s *Store) WithIndex(repo *Repository) *Store {
	s.index = repo
	return s
}

// Root returns the sessions root directory.
func (s *Store) Root() string {
	return s.root
}

// SessionDir returns the deterministic working directory for a session,
// creating it if absent. Idempotent.
func (s *Store) SessionDir(sessionID string) (string, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

// Save serializes the status document to the session directory and
// updates the in-memory cache. The caller keeps ownership of the passed
// document; the cache stores a private clone so later mutations by the
// caller cannot leak into concurrent readers.
func (s *Store) Save(sessionID string, sess *Session) error {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	// Write-then-rename so pollers never read a torn document.
	path := filepath.Join(dir, MetadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to persist session metadata: %w", err)
	}

	s.mu.Lock()
	s.cache[sessionID] = sess.Clone()
	s.mu.Unlock()

	s.mirror(sessionID, sess)

	return nil
}

// mirror pushes the document to the optional remote cache and index.
// Failures are logged and swallowed.
func (s *Store) mirror(sessionID string, sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if s.remote != nil {
		if err := s.remote.Set(ctx, sessionID, sess, s.remoteTTL); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).
				Warn("Failed to mirror session to remote cache")
		}
	}

	if s.index != nil {
		if err := s.index.Upsert(ctx, sess); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).
				Warn("Failed to mirror session to index")
		}
	}
}

// Load returns the status document for a session, preferring the
// in-memory cache, then the remote cache, then disk. Returns (nil, nil)
// when the session does not exist anywhere. The returned document is a
// private copy; a subsequent Update never mutates it.
func (s *Store) Load(sessionID string) (*Session, error) {
	s.mu.RLock()
	cached, ok := s.cache[sessionID]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	if s.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		var sess Session
		found, err := s.remote.Get(ctx, sessionID, &sess)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).
				Warn("Remote cache read failed")
		} else if found {
			s.mu.Lock()
			s.cache[sessionID] = sess.Clone()
			s.mu.Unlock()
			return &sess, nil
		}
	}

	path := filepath.Join(s.root, sessionID, MetadataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session metadata: %w", err)
	}

	s.mu.Lock()
	s.cache[sessionID] = sess.Clone()
	s.mu.Unlock()

	return &sess, nil
}

// Update runs a load-mutate-save sequence atomically for one session.
// A missing session is created fresh so checkpoint updates can never
// observe half a document.
func (s *Store) Update(sessionID string, fn func(*Session)) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.Load(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		sess = New(sessionID)
	}

	fn(sess)

	return s.Save(sessionID, sess)
}

// SetLockContention records whether the exclusive engine currently
// holds the coordination lock. This is status reporting only: failures
// are logged and swallowed so they can never abort or corrupt the
// protected critical section.
func (s *Store) SetLockContention(sessionID string, held bool) {
	if err := s.Update(sessionID, func(sess *Session) {
		sess.PyCaretLocked = held
	}); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"session_id": sessionID,
			"held":       held,
		}).Warn("Failed to record lock contention state")
	}
}

// EvictFromCache drops a session from the in-memory cache, forcing the
// next Load to hit the remote cache or disk.
func (s *Store) EvictFromCache(sessionID string) {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()
}

// CleanupOldSessions deletes session directories whose modification
// time exceeds the retention window. Individual failures are logged and
// do not abort the sweep. Returns the number of directories removed.
func (s *Store) CleanupOldSessions() (int, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions root: %w", err)
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.WithError(err).WithField("session_id", entry.Name()).
				Warn("Failed to stat session directory")
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			s.logger.WithError(err).WithField("session_id", entry.Name()).
				Warn("Failed to delete stale session directory")
			continue
		}

		s.mu.Lock()
		delete(s.cache, entry.Name())
		delete(s.locks, entry.Name())
		s.mu.Unlock()

		if s.index != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.index.Delete(ctx, entry.Name()); err != nil {
				s.logger.WithError(err).WithField("session_id", entry.Name()).
					Warn("Failed to drop session from index")
			}
			cancel()
		}

		removed++
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Stale sessions cleaned up")
	}

	return removed, nil
}

// sessionLock returns the per-session mutex, creating it on first use.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}
