package lstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/ValentinKolb/litemap/lib/queue"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// Manager owns one database handle and the operation queue in front of it.
// All namespaces handed out by a Manager share that queue, so operations on
// different namespaces of the same store are serialized as well.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	identifier string
	codec      codec.ICodec
	database   db.KVDB
	queue      *queue.Queue

	// mu guards closed and namespaces. Submissions hold it shared so that
	// Close can not slip in between the closed check and the enqueue.
	mu         sync.RWMutex
	closed     bool
	namespaces map[string]*Namespace

	closeOnce sync.Once
	shutdown  chan struct{}
	closeErr  error
}

// NewManager creates a manager for an already opened database.
// The manager takes ownership of database and closes it in Close.
// If c is nil the default codec is used.
func NewManager(identifier string, database db.KVDB, c codec.ICodec) *Manager {
	if c == nil {
		c = codec.Default()
	}
	return &Manager{
		identifier: identifier,
		codec:      c,
		database:   database,
		queue:      queue.New(identifier, database),
		namespaces: make(map[string]*Namespace),
		shutdown:   make(chan struct{}),
	}
}

// Identifier returns the identifier the store was opened with.
func (m *Manager) Identifier() string {
	return m.identifier
}

// Codec returns the codec records are encoded with.
func (m *Manager) Codec() codec.ICodec {
	return m.codec
}

// Pending returns the number of queued operations that have not started yet.
func (m *Manager) Pending() int {
	return m.queue.Len()
}

// Namespace returns the handle for prefix. Requesting the same prefix twice
// returns the same handle. A prefix that is empty, or that is a prefix of (or
// starts with) another prefix in use on this manager, is rejected since the
// key ranges of the two namespaces would overlap.
func (m *Manager) Namespace(prefix string) (*Namespace, error) {
	if prefix == "" {
		return nil, store.NewError(store.RetCInvalidArgument, "namespace prefix must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errClosed(m.identifier)
	}
	if ns, ok := m.namespaces[prefix]; ok {
		return ns, nil
	}
	for existing := range m.namespaces {
		if strings.HasPrefix(existing, prefix) || strings.HasPrefix(prefix, existing) {
			return nil, store.NewError(store.RetCInvalidArgument,
				fmt.Sprintf("namespace %q overlaps namespace %q", prefix, existing))
		}
	}

	ns := &Namespace{manager: m, prefix: prefix}
	m.namespaces[prefix] = ns
	log.Debugf("opened namespace %s in %s", prefix, m.identifier)
	return ns, nil
}

// Namespaces returns the prefixes of all namespaces handed out so far, sorted.
func (m *Manager) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefixes := make([]string, 0, len(m.namespaces))
	for p := range m.namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// ClearStore deletes every record in the store, regardless of namespace, and
// returns how many were removed. This also wipes records written by other
// programs sharing the database. Use Namespace.ClearAll to clear one namespace.
func (m *Manager) ClearStore(ctx context.Context) (int, error) {
	f, err := submit(m, "clear store", func(database db.KVDB) (int, error) {
		return database.DeleteAll()
	})
	if err != nil {
		return 0, err
	}
	n, err := f.Wait(ctx)
	if err == nil {
		log.Warningf("cleared %d records from %s", n, m.identifier)
	}
	return n, err
}

// Info returns information about the underlying database. It is queued like
// every other operation, so the reported key count reflects all operations
// submitted before.
func (m *Manager) Info(ctx context.Context) (db.DatabaseInfo, error) {
	f, err := submit(m, "info", func(database db.KVDB) (db.DatabaseInfo, error) {
		return database.GetInfo(), nil
	})
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return f.Wait(ctx)
}

// Close stops accepting operations, lets every queued operation finish and then
// closes the database. Operations submitted afterward fail with
// store.ErrUseAfterClose. Close may be called more than once, every call
// reports the result of the first shutdown.
//
// If ctx is done before the shutdown finished, Close returns the context error
// and the shutdown completes in the background.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		go func() {
			defer close(m.shutdown)
			// with a background context this only returns after the queue drained
			_ = m.queue.Close(context.Background())
			if err := m.database.Close(); err != nil && !errors.Is(err, db.ErrClosed) {
				m.closeErr = store.WrapError(store.RetCStorageFailure, err,
					fmt.Sprintf("closing %s failed", m.identifier))
			}
			log.Infof("closed store %s", m.identifier)
		}()
	})

	select {
	case <-m.shutdown:
		return m.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closing reports whether Close was called.
func (m *Manager) Closing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Done returns a channel that is closed once the manager completely shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdown
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func errClosed(identifier string) *store.Error {
	return store.WrapError(store.RetCUseAfterClose, store.ErrUseAfterClose, fmt.Sprintf("store %s is closed", identifier))
}

func invalidArgument(format string, args ...any) *store.Error {
	return store.NewError(store.RetCInvalidArgument, fmt.Sprintf(format, args...))
}

// submit queues op on the manager. Errors returned by op are converted into
// *store.Error, a panic inside op settles the future with a storage failure.
func submit[T any](m *Manager, name string, op queue.Op[T]) (*queue.Future[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed(m.identifier)
	}

	return queue.Submit(m.queue, func(database db.KVDB) (value T, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("%s on %s panicked: %v", name, m.identifier, r)
				var zero T
				value, err = zero, store.WrapError(store.RetCStorageFailure,
					&queue.PanicError{Value: r}, fmt.Sprintf("%s failed", name))
			}
		}()

		value, err = op(database)
		if err != nil {
			err = m.storageError(name, err)
		}
		return value, err
	}), nil
}

// storageError classifies an error returned from the database or codec
func (m *Manager) storageError(name string, err error) error {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return err
	}
	if errors.Is(err, db.ErrClosed) {
		return store.WrapError(store.RetCUseAfterClose, err, fmt.Sprintf("%s failed", name))
	}
	log.Warningf("%s on %s failed: %v", name, m.identifier, err)
	return store.WrapError(store.RetCStorageFailure, err, fmt.Sprintf("%s failed", name))
}
