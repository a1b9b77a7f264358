package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/ValentinKolb/litemap/lib/db/engines"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/ValentinKolb/litemap/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("registry")

// Registry caches one lstore.Manager per store identifier, so every part of a
// process that resolves the same identifier shares one database handle and one
// operation queue.
//
// Thread-safety: Resolve, Close and Identifiers are safe for concurrent use.
// CloseAll is meant for process teardown and must not race with Resolve.
type Registry struct {
	opener   db.Factory
	codec    codec.ICodec
	managers *xsync.MapOf[string, *lstore.Manager]
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener sets the function that opens the database for an identifier.
// The default is engines.Open.
func WithOpener(opener db.Factory) Option {
	return func(r *Registry) {
		r.opener = opener
	}
}

// WithCodec sets the codec of all managers created by the registry.
// The default is codec.Default().
func WithCodec(c codec.ICodec) Option {
	return func(r *Registry) {
		r.codec = c
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		opener:   engines.Open,
		codec:    codec.Default(),
		managers: xsync.NewMapOf[string, *lstore.Manager](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the manager for identifier, opening the database on first use.
// Concurrent calls for the same new identifier open the database only once.
// Identifiers naming the same store (e.g. "db/x.db", "./db/x.db" and
// "sqlite:db/x.db") share one manager, see Key.
// A manager that was closed directly (not through the registry) is replaced.
func (r *Registry) Resolve(identifier string) (*lstore.Manager, error) {
	if identifier == "" {
		return nil, store.NewError(store.RetCInvalidArgument, "store identifier must not be empty")
	}
	key := Key(identifier)

	for {
		// a closing manager still holds its database, wait outside of Compute
		// so the bucket lock is not held while its queue drains
		if current, ok := r.managers.Load(key); ok && current.Closing() {
			<-current.Done()
		}

		var (
			openErr error
			retry   bool
		)
		manager, ok := r.managers.Compute(key, func(current *lstore.Manager, loaded bool) (*lstore.Manager, bool) {
			if loaded {
				if !current.Closing() {
					return current, false
				}
				select {
				case <-current.Done():
					log.Infof("store %s was closed, reopening", identifier)
				default:
					// closed between Load and Compute
					retry = true
					return current, false
				}
			}

			database, err := r.opener(identifier)
			if err != nil {
				openErr = err
				return nil, true
			}
			log.Infof("opened store %s", identifier)
			return lstore.NewManager(identifier, database, r.codec), false
		})

		switch {
		case retry:
			continue
		case openErr != nil:
			return nil, store.WrapError(store.RetCStorageFailure, openErr, fmt.Sprintf("could not open store %s", identifier))
		case !ok:
			return nil, store.NewError(store.RetCStorageFailure, fmt.Sprintf("could not open store %s", identifier))
		}
		return manager, nil
	}
}

// Key returns the cache key of identifier. File based identifiers are keyed by
// engine and absolute path, so different spellings of one file map to the same
// key. Memory stores, ":memory:" and sqlite URIs ("file:...") are keyed by name.
func Key(identifier string) string {
	impl, location := engines.Parse(identifier)
	if impl != db.ImplMemory && location != ":memory:" && !strings.HasPrefix(location, "file:") {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		} else {
			location = filepath.Clean(location)
		}
	}
	return string(impl) + ":" + location
}

// Namespace resolves identifier and returns the namespace prefix of it.
func (r *Registry) Namespace(identifier, prefix string) (*lstore.Namespace, error) {
	manager, err := r.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	return manager.Namespace(prefix)
}

// Close closes the manager for identifier and removes it from the registry.
// Closing an identifier that is not cached is a no-op.
func (r *Registry) Close(ctx context.Context, identifier string) error {
	manager, loaded := r.managers.LoadAndDelete(Key(identifier))
	if !loaded {
		return nil
	}
	return manager.Close(ctx)
}

// CloseAll closes every cached manager concurrently, waits for all of them and
// empties the registry. The returned error joins the errors of all managers
// that failed to close.
func (r *Registry) CloseAll(ctx context.Context) error {
	var managers []*lstore.Manager
	r.managers.Range(func(key string, manager *lstore.Manager) bool {
		r.managers.Delete(key)
		managers = append(managers, manager)
		return true
	})

	// every manager has to be closed even if another one fails, so the group
	// must not stop at the first error; each goroutine reports into its own slot
	errs := make([]error, len(managers))
	var g errgroup.Group
	for i, manager := range managers {
		g.Go(func() error {
			if err := manager.Close(ctx); err != nil {
				log.Errorf("closing store %s failed: %v", manager.Identifier(), err)
				errs[i] = fmt.Errorf("%s: %w", manager.Identifier(), err)
			}
			return nil
		})
	}
	_ = g.Wait() // always nil, failures are in errs
	return errors.Join(errs...)
}

// Identifiers returns the identifiers of all cached managers, sorted.
// Each manager reports the identifier it was first resolved with.
func (r *Registry) Identifiers() []string {
	ids := make([]string, 0, r.managers.Size())
	r.managers.Range(func(_ string, manager *lstore.Manager) bool {
		ids = append(ids, manager.Identifier())
		return true
	})
	sort.Strings(ids)
	return ids
}
// --------------------------------------------------------------------------
// Process wide registry
// --------------------------------------------------------------------------

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process wide registry, created on first use with the
// default options. Libraries should prefer a Registry passed in by the caller.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}
