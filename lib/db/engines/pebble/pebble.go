package pebble

import (
	"os"
	"sync/atomic"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

type pebbleImpl struct {
	dir    string
	pebble *pebble.DB
	closed atomic.Bool
}

// NewPebbleDB opens (or creates) a pebble store in directory dir.
// Every write is synced to disk before it returns.
func NewPebbleDB(dir string) (db.KVDB, error) {
	if dir == "" {
		return nil, errors.New("pebble: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "pebble: could not create directory %s", dir)
	}
	p, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: could not open store at %s", dir)
	}
	return &pebbleImpl{dir: dir, pebble: p}, nil
}

// prefixIterOptions bounds an iterator to the keys starting with prefix.
func prefixIterOptions(prefix string) *pebble.IterOptions {
	if prefix == "" {
		return &pebble.IterOptions{}
	}
	return &pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: db.PrefixUpperBound(prefix),
	}
}

// scan iterates over all entries starting with prefix. Key and value passed to fn
// are only valid until fn returns.
func (s *pebbleImpl) scan(prefix string, fn func(key, value []byte)) error {
	iter := s.pebble.NewIter(prefixIterOptions(prefix))
	for iter.First(); iter.Valid(); iter.Next() {
		fn(iter.Key(), iter.Value())
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return err
	}
	return iter.Close()
}

// deleteWhere removes all keys starting with prefix in a single synced batch.
func (s *pebbleImpl) deleteWhere(prefix string) (int, error) {
	batch := s.pebble.NewBatch()
	defer batch.Close()

	var removed int
	var delErr error
	err := s.scan(prefix, func(key, _ []byte) {
		if delErr != nil {
			return
		}
		// Delete copies the key into the batch
		delErr = batch.Delete(key, nil)
		removed++
	})
	if err == nil {
		err = delErr
	}
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return removed, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (s *pebbleImpl) Put(key string, value []byte) error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	return errors.Wrapf(s.pebble.Set([]byte(key), value, pebble.Sync), "pebble: could not put %q", key)
}

func (s *pebbleImpl) BatchPut(entries []db.Entry) error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.Key == "" {
			return db.ErrEmptyKey
		}
	}

	// a batch is applied atomically on commit, dropping it discards every write
	batch := s.pebble.NewBatch()
	defer batch.Close()
	for _, e := range entries {
		if err := batch.Set([]byte(e.Key), e.Value, nil); err != nil {
			return errors.Wrapf(err, "pebble: could not stage %q", e.Key)
		}
	}
	return errors.Wrap(batch.Commit(pebble.Sync), "pebble: could not commit batch")
}

func (s *pebbleImpl) Delete(key string) (bool, error) {
	if s.closed.Load() {
		return false, db.ErrClosed
	}
	if key == "" {
		return false, db.ErrEmptyKey
	}
	_, found, err := s.Get(key)
	if err != nil || !found {
		return false, err
	}
	if err := s.pebble.Delete([]byte(key), pebble.Sync); err != nil {
		return false, errors.Wrapf(err, "pebble: could not delete %q", key)
	}
	return true, nil
}

func (s *pebbleImpl) DeletePrefix(prefix string) (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	removed, err := s.deleteWhere(prefix)
	return removed, errors.Wrapf(err, "pebble: could not delete prefix %q", prefix)
}

func (s *pebbleImpl) DeleteAll() (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	removed, err := s.deleteWhere("")
	return removed, errors.Wrap(err, "pebble: could not clear store")
}

func (s *pebbleImpl) Get(key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, db.ErrClosed
	}
	if key == "" {
		return nil, false, db.ErrEmptyKey
	}
	value, closer, err := s.pebble.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "pebble: could not get %q", key)
	}
	// value is only valid until closer is closed
	out := append([]byte{}, value...)
	if err := closer.Close(); err != nil {
		return nil, false, errors.Wrapf(err, "pebble: could not release %q", key)
	}
	return out, true, nil
}

func (s *pebbleImpl) Keys(prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	keys := make([]string, 0)
	err := s.scan(prefix, func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: could not scan prefix %q", prefix)
	}
	return keys, nil
}

func (s *pebbleImpl) ScanPrefix(prefix string) ([]db.Entry, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	entries := make([]db.Entry, 0)
	err := s.scan(prefix, func(key, value []byte) {
		entries = append(entries, db.Entry{Key: string(key), Value: append([]byte{}, value...)})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: could not scan prefix %q", prefix)
	}
	return entries, nil
}

func (s *pebbleImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:     db.ImplPebble,
		Identifier: s.dir,
	}
	if s.closed.Load() {
		return info
	}
	var sizes []float64
	_ = s.scan("", func(_, value []byte) {
		sizes = append(sizes, float64(len(value)))
	})
	info.KeyCount = len(sizes)
	info.Metadata = db.NewSizeStats(sizes)
	return info
}

func (s *pebbleImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}
	return errors.Wrap(s.pebble.Close(), "pebble: could not close")
}
