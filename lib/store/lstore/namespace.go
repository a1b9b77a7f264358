package lstore

import (
	"context"
	"sort"
	"strings"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/ValentinKolb/litemap/lib/queue"
	"github.com/ValentinKolb/litemap/lib/store"
)

// Namespace implements store.INamespace for one key prefix of a Manager.
type Namespace struct {
	manager *Manager
	prefix  string
}

var _ store.INamespace = (*Namespace)(nil)

// physical returns the key a logical key is stored under
func (n *Namespace) physical(key string) string {
	return n.prefix + key
}

// logical strips the namespace prefix from a physical key
func (n *Namespace) logical(key string) string {
	return strings.TrimPrefix(key, n.prefix)
}

func (n *Namespace) codec() codec.ICodec {
	return n.manager.codec
}

// encode serializes a value before it is queued, so unencodable values are
// rejected as invalid arguments
func (n *Namespace) encode(key string, v store.Value) ([]byte, error) {
	data, err := n.codec().Encode(v)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidArgument, err, "value of key "+key+" is not JSON encodable")
	}
	return data, nil
}

// Manager returns the manager the namespace belongs to.
func (n *Namespace) Manager() *Manager {
	return n.manager
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.INamespace)
// --------------------------------------------------------------------------

func (n *Namespace) Prefix() string {
	return n.prefix
}

func (n *Namespace) AddRecordsAsync(records []store.Record) (*queue.Future[struct{}], error) {
	entries := make([]db.Entry, 0, len(records))
	for _, r := range records {
		if r.Key == "" {
			return nil, invalidArgument("record key must not be empty")
		}
		data, err := n.encode(r.Key, r.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, db.Entry{Key: n.physical(r.Key), Value: data})
	}

	return submit(n.manager, "add records", func(database db.KVDB) (struct{}, error) {
		if len(entries) == 0 {
			return struct{}{}, nil
		}
		return struct{}{}, database.BatchPut(entries)
	})
}

func (n *Namespace) AddRecords(ctx context.Context, records []store.Record) error {
	f, err := n.AddRecordsAsync(records)
	if err != nil {
		return err
	}
	_, err = f.Wait(ctx)
	return err
}

func (n *Namespace) AddRecordMapAsync(records map[string]store.Value) (*queue.Future[struct{}], error) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]store.Record, 0, len(keys))
	for _, k := range keys {
		list = append(list, store.Record{Key: k, Value: records[k]})
	}
	return n.AddRecordsAsync(list)
}

func (n *Namespace) AddRecordMap(ctx context.Context, records map[string]store.Value) error {
	f, err := n.AddRecordMapAsync(records)
	if err != nil {
		return err
	}
	_, err = f.Wait(ctx)
	return err
}

func (n *Namespace) UpdateRecordAsync(key string, patch store.Object) (*queue.Future[store.Object], error) {
	if key == "" {
		return nil, invalidArgument("record key must not be empty")
	}
	if patch == nil {
		return nil, invalidArgument("update of %s needs a value", key)
	}
	// detach the patch from the caller, it is applied later on the worker
	normalized, err := codec.Normalize(n.codec(), patch)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidArgument, err, "value of key "+key+" is not JSON encodable")
	}
	fields, _ := normalized.(store.Object)

	physical := n.physical(key)
	return submit(n.manager, "update record", func(database db.KVDB) (store.Object, error) {
		var current store.Value
		raw, found, err := database.Get(physical)
		if err != nil {
			return nil, err
		}
		if found {
			if current, err = n.codec().Decode(raw); err != nil {
				return nil, err
			}
		}

		merged := store.Merge(current, fields)
		data, err := n.codec().Encode(merged)
		if err != nil {
			return nil, err
		}
		if err := database.Put(physical, data); err != nil {
			return nil, err
		}
		return merged, nil
	})
}

func (n *Namespace) UpdateRecord(ctx context.Context, key string, patch store.Object) (store.Object, error) {
	f, err := n.UpdateRecordAsync(key, patch)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (n *Namespace) GetRecordAsync(key string) (*queue.Future[store.Lookup], error) {
	if key == "" {
		return nil, invalidArgument("record key must not be empty")
	}

	physical := n.physical(key)
	return submit(n.manager, "get record", func(database db.KVDB) (store.Lookup, error) {
		raw, found, err := database.Get(physical)
		if err != nil || !found {
			return store.Lookup{}, err
		}
		value, err := n.codec().Decode(raw)
		if err != nil {
			return store.Lookup{}, err
		}
		return store.Lookup{Value: value, Found: true}, nil
	})
}

func (n *Namespace) GetRecord(ctx context.Context, key string) (store.Value, bool, error) {
	f, err := n.GetRecordAsync(key)
	if err != nil {
		return nil, false, err
	}
	lookup, err := f.Wait(ctx)
	return lookup.Value, lookup.Found, err
}

func (n *Namespace) ListKeysAsync() (*queue.Future[[]string], error) {
	return submit(n.manager, "list keys", func(database db.KVDB) ([]string, error) {
		keys, err := database.Keys(n.prefix)
		if err != nil {
			return nil, err
		}
		for i, k := range keys {
			keys[i] = n.logical(k)
		}
		return keys, nil
	})
}

func (n *Namespace) ListKeys(ctx context.Context) ([]string, error) {
	f, err := n.ListKeysAsync()
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (n *Namespace) ExportAllAsync() (*queue.Future[map[string]store.Value], error) {
	return submit(n.manager, "export", func(database db.KVDB) (map[string]store.Value, error) {
		entries, err := database.ScanPrefix(n.prefix)
		if err != nil {
			return nil, err
		}
		records := make(map[string]store.Value, len(entries))
		for _, e := range entries {
			value, err := n.codec().Decode(e.Value)
			if err != nil {
				return nil, err
			}
			records[n.logical(e.Key)] = value
		}
		return records, nil
	})
}

func (n *Namespace) ExportAll(ctx context.Context) (map[string]store.Value, error) {
	f, err := n.ExportAllAsync()
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (n *Namespace) RemoveRecordAsync(key string) (*queue.Future[bool], error) {
	if key == "" {
		return nil, invalidArgument("record key must not be empty")
	}

	physical := n.physical(key)
	return submit(n.manager, "remove record", func(database db.KVDB) (bool, error) {
		return database.Delete(physical)
	})
}

func (n *Namespace) RemoveRecord(ctx context.Context, key string) (bool, error) {
	f, err := n.RemoveRecordAsync(key)
	if err != nil {
		return false, err
	}
	return f.Wait(ctx)
}

func (n *Namespace) ClearAllAsync() (*queue.Future[int], error) {
	return submit(n.manager, "clear namespace", func(database db.KVDB) (int, error) {
		return database.DeletePrefix(n.prefix)
	})
}

func (n *Namespace) ClearAll(ctx context.Context) (int, error) {
	f, err := n.ClearAllAsync()
	if err != nil {
		return 0, err
	}
	return f.Wait(ctx)
}
