package store

import (
	"context"

	"github.com/ValentinKolb/litemap/lib/queue"
)

// --------------------------------------------------------------------------
// Value Types
// --------------------------------------------------------------------------

// Value is a record value in the JSON data model. Decoded values always use
// the canonical Go types: nil, bool, float64, string, []any and map[string]any.
type Value = any

// Object is a JSON object, the only value shape UpdateRecord merges into.
type Object = map[string]any

// Record is a logical key together with its value.
type Record struct {
	Key   string
	Value Value
}

// Lookup is the result of a point read.
type Lookup struct {
	Value Value
	Found bool
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// INamespace is the record API of one namespace (key prefix) inside a store.
//
// Every operation is executed through the operation queue of the owning store,
// strictly one at a time and in call order. The ...Async variants return the
// queued operation's future right away. Argument validation happens before
// anything is queued: an invalid call returns an *Error with RetCInvalidArgument
// and no future.
//
// The synchronous variants wait for the future. A done ctx only abandons the
// wait, the operation still runs in its turn.
type INamespace interface {
	// Prefix returns the key prefix of the namespace
	Prefix() string

	// AddRecords writes all records in one atomic batch, overwriting existing values.
	// An empty slice performs no write.
	AddRecords(ctx context.Context, records []Record) error
	AddRecordsAsync(records []Record) (*queue.Future[struct{}], error)

	// AddRecordMap is AddRecords for a mapping from logical key to value.
	AddRecordMap(ctx context.Context, records map[string]Value) error
	AddRecordMapAsync(records map[string]Value) (*queue.Future[struct{}], error)

	// UpdateRecord shallow merges the top-level fields of patch into the stored
	// object and returns the merged object. An absent value (or one that is not an
	// object) is treated as an empty object.
	UpdateRecord(ctx context.Context, key string, patch Object) (Object, error)
	UpdateRecordAsync(key string, patch Object) (*queue.Future[Object], error)

	// GetRecord returns the value stored for key.
	// The boolean return value indicates whether a value for the key was found.
	GetRecord(ctx context.Context, key string) (Value, bool, error)
	GetRecordAsync(key string) (*queue.Future[Lookup], error)

	// ListKeys returns the logical keys of the namespace in ascending order.
	ListKeys(ctx context.Context) ([]string, error)
	ListKeysAsync() (*queue.Future[[]string], error)

	// ExportAll returns every record of the namespace, keyed by logical key.
	ExportAll(ctx context.Context) (map[string]Value, error)
	ExportAllAsync() (*queue.Future[map[string]Value], error)

	// RemoveRecord deletes key and reports whether it existed.
	RemoveRecord(ctx context.Context, key string) (bool, error)
	RemoveRecordAsync(key string) (*queue.Future[bool], error)

	// ClearAll deletes every record of the namespace and returns how many were removed.
	// Records of other namespaces in the same store are kept.
	ClearAll(ctx context.Context) (int, error)
	ClearAllAsync() (*queue.Future[int], error)
}
