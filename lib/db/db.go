package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplSQLite Implementation = "sqlite"
	ImplBolt   Implementation = "bolt"
	ImplPebble Implementation = "pebble"
	ImplMemory Implementation = "memory"
)

// ErrClosed is returned by every operation on a database whose Close method was already called.
var ErrClosed = errors.New("database is closed")

// ErrEmptyKey is returned by write and read operations that receive an empty key.
var ErrEmptyKey = errors.New("key must not be empty")

// Entry is a single physical key together with its encoded value.
type Entry struct {
	Key   string
	Value []byte
}

type DatabaseInfo struct {
	DbType     Implementation `json:"db_type"`
	Identifier string         `json:"identifier"`
	KeyCount   int            `json:"key_count"`
	Metadata   interface{}    `json:"metadata"`
}

// Factory opens a database for the given identifier (file path, directory or scheme string).
type Factory func(identifier string) (KVDB, error)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the durable key-value store the namespace layer is built on.
// It is a flat mapping from physical key to encoded value.
//
// Implementations do not need to be safe for concurrent use: the store layer
// guarantees that at most one call is in flight per handle. They must however
// fail loudly after Close, every method has to return ErrClosed.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or updates the value for key.
	Put(key string, value []byte) (err error)

	// BatchPut writes all entries in one transaction. Either every entry is
	// visible afterward or none is. An empty batch performs no write.
	BatchPut(entries []Entry) (err error)

	// Delete removes key and reports whether a row was removed.
	Delete(key string) (removed bool, err error)

	// DeletePrefix removes every key starting with prefix in one transaction
	// and returns the number of removed keys.
	DeletePrefix(prefix string) (removed int, err error)

	// DeleteAll removes every key visible through this handle.
	DeleteAll() (removed int, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, found bool, err error)

	// Keys returns all keys starting with prefix in ascending order.
	// An empty prefix returns every key.
	Keys(prefix string) (keys []string, err error)

	// ScanPrefix returns all entries whose key starts with prefix in ascending key order.
	// An empty prefix returns every entry.
	ScanPrefix(prefix string) (entries []Entry, err error)

	// --------------------------------------------------------------------------
	// Misc
	// --------------------------------------------------------------------------

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database. Calling Close twice returns ErrClosed.
	Close() (err error)
}

// PrefixUpperBound returns the smallest key that is greater than every key
// starting with prefix. It returns nil if no such key exists (prefix is empty
// or consists only of 0xff bytes).
func PrefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
