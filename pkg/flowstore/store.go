// Package flowstore implements the client-side settings store: an in-memory
// flow registry with change subscriptions, hydration from the remote settings
// API scoped to the signed-in account, and debounced write-back.
package flowstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"deepscout/pkg/settings"
)

// State describes where the store is in its hydration lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Subscriber receives the new document snapshot after every mutation.
type Subscriber func(doc *settings.Document)

// Store owns the single in-memory settings document. Reads hand out the
// current snapshot; every mutation deep-copies, edits the copy and swaps the
// reference atomically, so subscribers never observe a torn document.
type Store struct {
	mu sync.RWMutex

	doc       *settings.Document
	accountID string
	epoch     uint64

	state    State
	hydraErr error
	saveErr  error

	editGen  uint64
	savedGen uint64

	subs    map[int]Subscriber
	nextSub int

	gateway *Gateway
	syncer  *syncer
	cache   *LocalCache
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLocalCache enables the per-account local fallback cache.
func WithLocalCache(cache *LocalCache) Option {
	return func(s *Store) { s.cache = cache }
}

// WithSaveInterval overrides the write-coalescing quiet window.
func WithSaveInterval(d time.Duration) Option {
	return func(s *Store) { s.syncer.interval = d }
}

// WithLogger overrides the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store backed by the given gateway.
func New(gateway *Gateway, opts ...Option) *Store {
	s := &Store{
		gateway: gateway,
		subs:    map[int]Subscriber{},
		state:   StateIdle,
		logger:  slog.Default(),
	}
	s.syncer = newSyncer(time.Second, s.flush)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current document, or nil before hydration. The
// returned document is shared and must be treated as read-only.
func (s *Store) Snapshot() *settings.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// State reports the hydration state and, in StateError, the cause.
func (s *Store) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.hydraErr
}

// AccountID returns the account the store is currently scoped to.
func (s *Store) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}

// Dirty reports whether there are edits not yet confirmed by the remote
// store. A failed save leaves the store dirty; the edit itself is never lost.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editGen != s.savedGen
}

// SaveError returns the error from the most recent failed save, cleared by
// the next successful one.
func (s *Store) SaveError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveErr
}

// Subscribe registers a callback invoked with the new snapshot after each
// mutation. The returned function unsubscribes.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Hydrate loads the given account's document from the remote store. Any
// previously loaded document, pending edits and in-flight saves for a prior
// account are discarded before the fetch; a late response from a superseded
// hydrate or save can never land in the new account's document.
func (s *Store) Hydrate(ctx context.Context, accountID string) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.accountID = accountID
	s.doc = nil
	s.state = StateLoading
	s.hydraErr = nil
	s.saveErr = nil
	s.editGen = 0
	s.savedGen = 0
	s.mu.Unlock()
	s.syncer.cancel()

	doc, migrated, err := s.gateway.Fetch(ctx)

	s.mu.Lock()
	if s.epoch != epoch {
		// A newer hydrate superseded this one.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.state = StateError
		s.hydraErr = err
		s.mu.Unlock()
		return err
	}
	s.doc = doc
	s.state = StateReady
	s.mu.Unlock()

	if s.cache != nil {
		if cerr := s.cache.Store(accountID, doc); cerr != nil {
			s.logger.Warn("local settings cache write failed", "error", cerr)
		}
	}
	if migrated {
		// Persist the migrated shape so migration runs at most once.
		s.markEdited()
	}
	s.notify(doc)
	return nil
}

// HydrateFromCache loads the account's document from the local fallback
// cache, for offline use. It fails rather than synthesizing defaults when no
// cached document exists.
func (s *Store) HydrateFromCache(accountID string) error {
	if s.cache == nil {
		return ErrNoLocalCache
	}
	doc, err := s.cache.Load(accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.epoch++
	s.accountID = accountID
	s.doc = doc
	s.state = StateReady
	s.hydraErr = nil
	s.editGen = 0
	s.savedGen = 0
	s.mu.Unlock()
	s.syncer.cancel()

	s.notify(doc)
	return nil
}

// Reset discards the in-memory document, e.g. on sign-out. The remote store
// is untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	s.epoch++
	s.accountID = ""
	s.doc = nil
	s.state = StateIdle
	s.hydraErr = nil
	s.saveErr = nil
	s.mu.Unlock()
	s.syncer.cancel()
}

// Close stops the store's pending write timer.
func (s *Store) Close() {
	s.syncer.cancel()
}

// FlushNow issues any pending write immediately, bypassing the quiet window.
func (s *Store) FlushNow() {
	s.syncer.cancel()
	s.flush()
}

// mutate runs fn against a deep copy of the document and commits the copy if
// fn reports a change. Mutations before hydration are dropped with a warning.
func (s *Store) mutate(op string, fn func(doc *settings.Document) bool) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		s.logger.Warn("settings mutation before hydration dropped", "op", op)
		return
	}
	next := s.doc.Clone()
	if !fn(next) {
		s.mu.Unlock()
		return
	}
	s.doc = next
	s.editGen++
	s.mu.Unlock()

	s.notify(next)
	s.syncer.touch()
}

// markEdited schedules a coalesced save without changing the document.
func (s *Store) markEdited() {
	s.mu.Lock()
	s.editGen++
	s.mu.Unlock()
	s.syncer.touch()
}

func (s *Store) notify(doc *settings.Document) {
	s.mu.RLock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(doc)
	}
}

// flush pushes the latest snapshot to the remote store. It is invoked by the
// syncer when the quiet window expires. Edits made while a push is in flight
// re-arm the timer through touch, so the next flush picks up the newer state;
// a response for a superseded snapshot can never mark newer edits as saved.
func (s *Store) flush() {
	s.mu.Lock()
	doc := s.doc
	epoch := s.epoch
	gen := s.editGen
	accountID := s.accountID
	dirty := s.editGen != s.savedGen
	s.mu.Unlock()

	if doc == nil || !dirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.gateway.Push(ctx, doc)

	s.mu.Lock()
	if s.epoch != epoch {
		// Account changed while the write was in flight; ignore the result.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.saveErr = err
		s.mu.Unlock()
		s.logger.Warn("settings save failed", "account", accountID, "error", err)
		return
	}
	s.saveErr = nil
	if gen > s.savedGen {
		s.savedGen = gen
	}
	stillDirty := s.editGen != s.savedGen
	s.mu.Unlock()

	if s.cache != nil {
		if cerr := s.cache.Store(accountID, doc); cerr != nil {
			s.logger.Warn("local settings cache write failed", "error", cerr)
		}
	}
	if stillDirty {
		s.syncer.touch()
	}
}
