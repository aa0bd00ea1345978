package docstore

import (
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"
)

// Options configures a Store. Name and URL are required; URL selects and
// locates the KV backend (mem://, bolt://path, sqlite://path).
type Options struct {
	Name        string
	URL         string
	Collections []*Collection
	Logf        func(format string, args ...any)
	Logger      *slog.Logger
}

type initState int32

const (
	stateUninitialized initState = iota
	stateInitializing
	stateInitialized
)

// Store is the document store handle: the QueryEngine (C5) and
// SchemaManager (C4) surface, bound to one collection registry, event bus
// and KV backend.
type Store struct {
	name     string
	registry *CollectionRegistry
	events   *EventBus
	kv       KV
	logf     func(format string, args ...any)
	logger   *slog.Logger

	initMu    sync.Mutex
	state     int32 // initState, accessed atomically
	initErr   error
	txnDepth  int32
	rootCtx   *Context
}

// Open validates opts and connects to the backend named by opts.URL. It
// does not run schema initialization — call Initialize, or just start
// issuing Get/Put/Find/etc., which initialize lazily on first use.
func Open(opts Options) (*Store, error) {
	if opts.Name == "" {
		return nil, configErrf(nil, "Options.Name is required")
	}
	if opts.URL == "" {
		return nil, configErrf(nil, "Options.URL is required")
	}
	backend, err := openBackend(opts.URL)
	if err != nil {
		return nil, configErrf(err, "failed to open backend %q", opts.URL)
	}
	registry, err := newCollectionRegistry(opts.Collections)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	s := &Store{
		name:     opts.Name,
		registry: registry,
		events:   NewEventBus(),
		kv:       newGenericKV(backend, logger),
		logf:     logf,
		logger:   logger,
	}
	s.rootCtx = &Context{kv: s.kv, events: s.events, registry: s.registry, store: s}
	s.rootCtx.root = s.rootCtx
	return s, nil
}

// openBackend parses a backend URL and opens the matching storage
// implementation. mem:// ignores its path and always returns a fresh
// transient store; bolt:// and sqlite:// open or create a file at the
// given path.
func openBackend(rawURL string) (storage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "mem":
		return newMemStorage(), nil
	case "bolt":
		path := backendPath(u)
		bdb, err := bbolt.Open(path, 0o600, nil)
		if err != nil {
			return nil, err
		}
		return newBoltStorage(bdb)
	case "sqlite":
		return newSqliteStorage(backendPath(u))
	default:
		return nil, configErrf(nil, "unsupported backend scheme %q", u.Scheme)
	}
}

func backendPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

// Context returns the root ambient Context for this store, for callers
// that want to drive the lower-level Context-based API directly.
func (s *Store) Context() *Context { return s.rootCtx }

// EventBus returns the store's event bus so callers can subscribe to
// lifecycle notifications.
func (s *Store) EventBus() *EventBus { return s.events }

// Transaction runs fn inside a single KV transaction shared by every
// operation fn performs through the Context it receives (C6).
func (s *Store) Transaction(fn func(*Context) error) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	return s.rootCtx.transaction(fn)
}

// Close releases the underlying KV backend.
func (s *Store) Close() error { return s.kv.Close() }

// PurgeRemovedCollections drops the stored data and descriptor entries for
// every collection that's been tombstoned (declared once, no longer
// declared in Options.Collections, reconciled as removed by Initialize).
func (s *Store) PurgeRemovedCollections() error { return s.removeCollectionsMarkedAsRemoved() }

func (s *Store) loadInitState() initState { return initState(atomic.LoadInt32(&s.state)) }
