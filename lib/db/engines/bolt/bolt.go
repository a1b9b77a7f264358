package bolt

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// bucketName is the single bucket holding all records.
var bucketName = []byte("kv")

type boltImpl struct {
	path   string
	bolt   *bolt.DB
	closed atomic.Bool
}

// NewBoltDB opens (or creates) the bbolt file at path and makes sure the
// record bucket exists.
func NewBoltDB(path string) (db.KVDB, error) {
	if path == "" {
		return nil, errors.New("bolt: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "bolt: could not create directory for %s", path)
	}

	// The timeout prevents blocking forever when another process holds the file lock.
	boltDB, err := bolt.Open(path, 0o666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: could not open store at %s", path)
	}

	if err := boltDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = boltDB.Close()
		return nil, errors.Wrap(err, "bolt: could not ensure record bucket exists")
	}

	return &boltImpl{path: path, bolt: boltDB}, nil
}

// prefixKeys collects all keys of bucket b starting with prefix.
// The returned keys are copies and stay valid after the transaction ends.
func prefixKeys(b *bolt.Bucket, prefix []byte) [][]byte {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	return keys
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (s *boltImpl) Put(key string, value []byte) error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	err := s.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	return errors.Wrapf(err, "bolt: could not put %q", key)
}

func (s *boltImpl) BatchPut(entries []db.Entry) error {
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
	// Update rolls the whole transaction back if the closure returns an error.
	err := s.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, e := range entries {
			if err := b.Put([]byte(e.Key), e.Value); err != nil {
				return errors.Wrapf(err, "put %q", e.Key)
			}
		}
		return nil
	})
	return errors.Wrap(err, "bolt: batch failed")
}

func (s *boltImpl) Delete(key string) (bool, error) {
	if s.closed.Load() {
		return false, db.ErrClosed
	}
	if key == "" {
		return false, db.ErrEmptyKey
	}
	var removed bool
	err := s.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(key))
	})
	if err != nil {
		return false, errors.Wrapf(err, "bolt: could not delete %q", key)
	}
	return removed, nil
}

func (s *boltImpl) DeletePrefix(prefix string) (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	var removed int
	err := s.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, k := range prefixKeys(b, []byte(prefix)) {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "bolt: could not delete prefix %q", prefix)
	}
	return removed, nil
}

func (s *boltImpl) DeleteAll() (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	var removed int
	err := s.bolt.Update(func(tx *bolt.Tx) error {
		removed = tx.Bucket(bucketName).Stats().KeyN
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "bolt: could not clear bucket")
	}
	return removed, nil
}

func (s *boltImpl) Get(key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, db.ErrClosed
	}
	if key == "" {
		return nil, false, db.ErrEmptyKey
	}
	var value []byte
	err := s.bolt.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			// bolt values are only valid inside the transaction
			value = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "bolt: could not get %q", key)
	}
	return value, value != nil, nil
}

func (s *boltImpl) Keys(prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	keys := make([]string, 0)
	err := s.bolt.View(func(tx *bolt.Tx) error {
		for _, k := range prefixKeys(tx.Bucket(bucketName), []byte(prefix)) {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: could not scan prefix %q", prefix)
	}
	return keys, nil
}

func (s *boltImpl) ScanPrefix(prefix string) ([]db.Entry, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	entries := make([]db.Entry, 0)
	err := s.bolt.View(func(tx *bolt.Tx) error {
		p := []byte(prefix)
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			entries = append(entries, db.Entry{
				Key:   string(k),
				Value: append([]byte{}, v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: could not scan prefix %q", prefix)
	}
	return entries, nil
}

func (s *boltImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:     db.ImplBolt,
		Identifier: s.path,
	}
	if s.closed.Load() {
		return info
	}
	_ = s.bolt.View(func(tx *bolt.Tx) error {
		info.KeyCount = tx.Bucket(bucketName).Stats().KeyN
		info.Metadata = tx.Size()
		return nil
	})
	return info
}

func (s *boltImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}
	return errors.Wrap(s.bolt.Close(), "bolt: could not close")
}
