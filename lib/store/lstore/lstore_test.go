package lstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/ValentinKolb/litemap/lib/db/engines/memory"
	"github.com/ValentinKolb/litemap/lib/db/engines/sqlite"
	"github.com/ValentinKolb/litemap/lib/queue"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// countingDB counts the write calls reaching the database and can be told to
// fail or panic
type countingDB struct {
	db.KVDB
	writes     atomic.Int64
	failBatch  error
	panicOnGet bool
}

func (c *countingDB) Put(key string, value []byte) error {
	c.writes.Add(1)
	return c.KVDB.Put(key, value)
}

func (c *countingDB) BatchPut(entries []db.Entry) error {
	c.writes.Add(1)
	if c.failBatch != nil {
		return c.failBatch
	}
	return c.KVDB.BatchPut(entries)
}

func (c *countingDB) Get(key string) ([]byte, bool, error) {
	if c.panicOnGet {
		panic("get exploded")
	}
	return c.KVDB.Get(key)
}

func newManager(t *testing.T) (*Manager, *countingDB) {
	t.Helper()
	database := &countingDB{KVDB: memory.NewMemoryDB("lstore-test")}
	m := NewManager("memory:"+uuid.NewString(), database, codec.Default())
	t.Cleanup(func() {
		_ = m.Close(context.Background())
	})
	return m, database
}

func mustNamespace(t *testing.T, m *Manager, prefix string) *Namespace {
	t.Helper()
	ns, err := m.Namespace(prefix)
	if err != nil {
		t.Fatalf("Namespace(%q) failed: %v", prefix, err)
	}
	return ns
}

func expectCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error with code %s, got %v", code, err)
	}
	if storeErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, storeErr.Code, err)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	values := map[string]store.Value{
		"object": map[string]any{"name": "Alice", "tags": []any{"a", 1.5, nil, true}, "nested": map[string]any{"x": "y"}},
		"string": "plain",
		"number": 12.25,
		"bool":   false,
		"null":   nil,
		"array":  []any{map[string]any{}, []any{}},
	}
	if err := users.AddRecordMap(ctx, values); err != nil {
		t.Fatalf("AddRecordMap failed: %v", err)
	}

	for key, want := range values {
		got, found, err := users.GetRecord(ctx, key)
		if err != nil || !found {
			t.Fatalf("GetRecord(%s) found=%v err=%v", key, found, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetRecord(%s) mismatch (-want +got):\n%s", key, diff)
		}
	}

	_, found, err := users.GetRecord(ctx, "missing")
	if err != nil || found {
		t.Errorf("expected missing record to be absent, found=%v err=%v", found, err)
	}
}

func TestAddRecordsOverwrites(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	err := users.AddRecords(ctx, []store.Record{
		{Key: "alice", Value: map[string]any{"role": "user", "name": "Alice"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = users.AddRecords(ctx, []store.Record{
		{Key: "alice", Value: map[string]any{"role": "admin"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _, _ := users.GetRecord(ctx, "alice")
	if diff := cmp.Diff(map[string]any{"role": "admin"}, got); diff != "" {
		t.Errorf("expected overwrite without merge (-want +got):\n%s", diff)
	}
}

func TestUpdateMerges(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	if err := users.AddRecordMap(ctx, map[string]store.Value{
		"alice": map[string]any{"role": "admin"},
	}); err != nil {
		t.Fatal(err)
	}

	merged, err := users.UpdateRecord(ctx, "alice", store.Object{"lastLogin": "T1"})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	want := store.Object{"role": "admin", "lastLogin": "T1"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("returned merge mismatch (-want +got):\n%s", diff)
	}

	got, found, err := users.GetRecord(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("GetRecord failed: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(map[string]any(want), got); diff != "" {
		t.Errorf("stored merge mismatch (-want +got):\n%s", diff)
	}

	// same-named fields are overwritten
	if _, err := users.UpdateRecord(ctx, "alice", store.Object{"role": "user"}); err != nil {
		t.Fatal(err)
	}
	got, _, _ = users.GetRecord(ctx, "alice")
	if diff := cmp.Diff(map[string]any{"role": "user", "lastLogin": "T1"}, got); diff != "" {
		t.Errorf("overwrite mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateAbsentBehavesLikeAdd(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	patch := store.Object{"role": "guest", "visits": 3}
	if _, err := users.UpdateRecord(ctx, "bob", patch); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	got, found, _ := users.GetRecord(ctx, "bob")
	if !found {
		t.Fatalf("expected bob to exist after update")
	}
	if diff := cmp.Diff(map[string]any{"role": "guest", "visits": 3.0}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateNonObjectBase(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	items := mustNamespace(t, m, "items/")

	if err := items.AddRecordMap(ctx, map[string]store.Value{"x": []any{1.0, 2.0}}); err != nil {
		t.Fatal(err)
	}
	merged, err := items.UpdateRecord(ctx, "x", store.Object{"a": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(store.Object{"a": "b"}, merged); diff != "" {
		t.Errorf("expected non-object base to be replaced (-want +got):\n%s", diff)
	}
}

func TestUpdateDetachesPatch(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	release := make(chan struct{})
	blocker, err := submit(m, "block", func(db.KVDB) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	patch := store.Object{"role": "admin"}
	f, err := users.UpdateRecordAsync("alice", patch)
	if err != nil {
		t.Fatal(err)
	}
	// modifying the patch after the call must not change what is written
	patch["role"] = "hacker"
	close(release)

	if _, err := blocker.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	merged, err := f.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if merged["role"] != "admin" {
		t.Errorf("expected role admin, got %v", merged["role"])
	}
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := users.UpdateRecord(ctx, "shared", store.Object{fmt.Sprintf("field%d", i): i}); err != nil {
				t.Errorf("UpdateRecord failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _, err := users.GetRecord(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if fields := len(got.(map[string]any)); fields != writers {
		t.Errorf("expected %d merged fields, got %d", writers, fields)
	}
}

func TestRemoveRecord(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	removed, err := users.RemoveRecord(ctx, "missing")
	if err != nil {
		t.Fatalf("RemoveRecord failed: %v", err)
	}
	if removed {
		t.Errorf("expected removing a missing record to return false")
	}

	if err := users.AddRecordMap(ctx, map[string]store.Value{"alice": "x", "bob": "y"}); err != nil {
		t.Fatal(err)
	}
	removed, err = users.RemoveRecord(ctx, "alice")
	if err != nil || !removed {
		t.Fatalf("expected removal of alice, removed=%v err=%v", removed, err)
	}
	if _, found, _ := users.GetRecord(ctx, "alice"); found {
		t.Errorf("expected alice to be gone")
	}
	keys, _ := users.ListKeys(ctx)
	if diff := cmp.Diff([]string{"bob"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")
	items := mustNamespace(t, m, "items/")

	if err := users.AddRecordMap(ctx, map[string]store.Value{"alice": 1, "bob": 2}); err != nil {
		t.Fatal(err)
	}
	if err := items.AddRecordMap(ctx, map[string]store.Value{"hammer": 3, "alice": 4}); err != nil {
		t.Fatal(err)
	}

	keys, err := users.ListKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, keys); diff != "" {
		t.Errorf("users keys mismatch (-want +got):\n%s", diff)
	}

	export, err := items.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]store.Value{"hammer": 3.0, "alice": 4.0}, export); diff != "" {
		t.Errorf("items export mismatch (-want +got):\n%s", diff)
	}

	// ClearAll only touches its own namespace
	removed, err := users.ClearAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed users, got %d", removed)
	}
	if keys, _ := users.ListKeys(ctx); len(keys) != 0 {
		t.Errorf("expected no users left, got %v", keys)
	}
	if keys, _ := items.ListKeys(ctx); len(keys) != 2 {
		t.Errorf("expected items to survive ClearAll of users, got %v", keys)
	}

	// ClearStore wipes everything
	removed, err = m.ClearStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected ClearStore to remove 2 records, got %d", removed)
	}
	if keys, _ := items.ListKeys(ctx); len(keys) != 0 {
		t.Errorf("expected empty store after ClearStore, got %v", keys)
	}
}

func TestForeignKeysAreExcluded(t *testing.T) {
	ctx := context.Background()
	database := memory.NewMemoryDB("shared")
	// written by somebody not using a namespace
	_ = database.Put("users", []byte(`"no slash"`))
	_ = database.Put("usersX/1", []byte(`1`))
	_ = database.Put("other/users/1", []byte(`1`))

	m := NewManager("shared", database, nil)
	defer m.Close(ctx)
	users := mustNamespace(t, m, "users/")

	export, err := users.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(export) != 0 {
		t.Errorf("expected empty export, got %v", export)
	}
}

func TestNamespaceValidation(t *testing.T) {
	m, _ := newManager(t)

	if _, err := m.Namespace(""); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("expected empty prefix to be rejected, got %v", err)
	}

	users := mustNamespace(t, m, "users/")
	if again := mustNamespace(t, m, "users/"); again != users {
		t.Errorf("expected the same handle for the same prefix")
	}

	for _, prefix := range []string{"users/admins/", "user"} {
		if _, err := m.Namespace(prefix); !errors.Is(err, store.ErrInvalidArgument) {
			t.Errorf("expected overlapping prefix %q to be rejected, got %v", prefix, err)
		}
	}

	mustNamespace(t, m, "items/")
	if diff := cmp.Diff([]string{"items/", "users/"}, m.Namespaces()); diff != "" {
		t.Errorf("namespaces mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	m, database := newManager(t)
	users := mustNamespace(t, m, "users/")

	checks := map[string]error{}
	checks["AddRecords"] = users.AddRecords(ctx, []store.Record{{Key: "ok", Value: 1}, {Key: "", Value: 2}})
	checks["AddRecordMap"] = users.AddRecordMap(ctx, map[string]store.Value{"": 1})
	checks["AddRecordsUnencodable"] = users.AddRecords(ctx, []store.Record{{Key: "ch", Value: make(chan int)}})
	_, checks["UpdateRecordEmptyKey"] = users.UpdateRecord(ctx, "", store.Object{"a": 1})
	_, checks["UpdateRecordNilPatch"] = users.UpdateRecord(ctx, "alice", nil)
	_, checks["UpdateRecordUnencodable"] = users.UpdateRecord(ctx, "alice", store.Object{"f": func() {}})
	_, _, checks["GetRecord"] = users.GetRecord(ctx, "")
	_, checks["RemoveRecord"] = users.RemoveRecord(ctx, "")

	for op, err := range checks {
		if !errors.Is(err, store.ErrInvalidArgument) {
			t.Errorf("%s: expected InvalidArgument, got %v", op, err)
		}
	}

	// nothing reached the database
	if n := database.writes.Load(); n != 0 {
		t.Errorf("expected no writes, got %d", n)
	}
	if n := m.Pending(); n != 0 {
		t.Errorf("expected nothing queued, got %d", n)
	}

	// async variants report the error without a future
	if f, err := users.GetRecordAsync(""); f != nil || !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("expected GetRecordAsync to fail synchronously, got %v, %v", f, err)
	}
}

func TestEmptyBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	m, database := newManager(t)
	users := mustNamespace(t, m, "users/")

	if err := users.AddRecords(ctx, nil); err != nil {
		t.Fatalf("AddRecords([]) failed: %v", err)
	}
	if err := users.AddRecordMap(ctx, map[string]store.Value{}); err != nil {
		t.Fatalf("AddRecordMap({}) failed: %v", err)
	}
	if n := database.writes.Load(); n != 0 {
		t.Errorf("expected zero writes, got %d", n)
	}
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	m, database := newManager(t)
	users := mustNamespace(t, m, "users/")

	cause := errors.New("disk full")
	database.failBatch = cause

	err := users.AddRecordMap(ctx, map[string]store.Value{"alice": 1})
	if !errors.Is(err, store.ErrStorageFailure) {
		t.Fatalf("expected StorageFailure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the cause to be wrapped, got %v", err)
	}

	// the queue keeps working
	database.failBatch = nil
	if err := users.AddRecordMap(ctx, map[string]store.Value{"bob": 2}); err != nil {
		t.Fatalf("AddRecordMap after failure failed: %v", err)
	}
	keys, _ := users.ListKeys(ctx)
	if diff := cmp.Diff([]string{"bob"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	database := memory.NewMemoryDB("corrupt")
	_ = database.Put("users/broken", []byte(`{"not json`))
	m := NewManager("corrupt", database, nil)
	defer m.Close(ctx)
	users := mustNamespace(t, m, "users/")

	if _, _, err := users.GetRecord(ctx, "broken"); !errors.Is(err, store.ErrStorageFailure) {
		t.Errorf("expected GetRecord of a corrupt value to be a StorageFailure, got %v", err)
	}
	if _, err := users.ExportAll(ctx); !errors.Is(err, store.ErrStorageFailure) {
		t.Errorf("expected ExportAll with a corrupt value to be a StorageFailure, got %v", err)
	}
	if _, err := users.UpdateRecord(ctx, "broken", store.Object{"a": 1}); !errors.Is(err, store.ErrStorageFailure) {
		t.Errorf("expected UpdateRecord of a corrupt value to be a StorageFailure, got %v", err)
	}
}

func TestPanicIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	m, database := newManager(t)
	users := mustNamespace(t, m, "users/")

	database.panicOnGet = true
	_, _, err := users.GetRecord(ctx, "alice")
	if !errors.Is(err, store.ErrStorageFailure) {
		t.Fatalf("expected StorageFailure, got %v", err)
	}
	var panicErr *queue.PanicError
	if !errors.As(err, &panicErr) {
		t.Errorf("expected the panic to be the cause, got %v", err)
	}

	database.panicOnGet = false
	if _, _, err := users.GetRecord(ctx, "alice"); err != nil {
		t.Errorf("expected queue to survive the panic, got %v", err)
	}
}

func TestCommitOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	var trail []string
	record := func(entry string) {
		if _, err := submit(m, "trail", func(db.KVDB) (struct{}, error) {
			trail = append(trail, entry)
			return struct{}{}, nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	record("start")
	add, _ := users.AddRecordMapAsync(map[string]store.Value{"alice": map[string]any{"n": 1}})
	record("added")
	update, _ := users.UpdateRecordAsync("alice", store.Object{"n": 2})
	record("updated")
	get, _ := users.GetRecordAsync("alice")
	record("read")
	remove, _ := users.RemoveRecordAsync("alice")
	last, _ := submit(m, "trail", func(db.KVDB) (struct{}, error) {
		trail = append(trail, "end")
		return struct{}{}, nil
	})

	if _, err := last.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	// every earlier future is settled once the last operation finished
	for _, done := range []<-chan struct{}{add.Done(), update.Done(), get.Done(), remove.Done()} {
		select {
		case <-done:
		default:
			t.Fatalf("expected earlier operation to be finished")
		}
	}

	if diff := cmp.Diff([]string{"start", "added", "updated", "read", "end"}, trail); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	lookup, _ := get.Wait(ctx)
	if diff := cmp.Diff(map[string]any{"n": 2.0}, lookup.Value); diff != "" {
		t.Errorf("read did not observe the update (-want +got):\n%s", diff)
	}
	if removed, _ := remove.Wait(ctx); !removed {
		t.Errorf("expected remove to observe the record")
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	database := memory.NewMemoryDB("close")
	m := NewManager("close", database, nil)
	users := mustNamespace(t, m, "users/")

	release := make(chan struct{})
	blocker, _ := submit(m, "block", func(db.KVDB) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})
	pending, _ := users.AddRecordMapAsync(map[string]store.Value{"alice": 1})

	closed := make(chan error)
	go func() {
		closed <- m.Close(ctx)
	}()

	// wait for Close to stop intake
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := users.ListKeysAsync(); err != nil {
			expectCode(t, err, store.RetCUseAfterClose)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("manager did not stop intake")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	if err := <-closed; err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// queued operations completed before the database was closed
	if _, err := blocker.Wait(ctx); err != nil {
		t.Errorf("blocking operation failed: %v", err)
	}
	if _, err := pending.Wait(ctx); err != nil {
		t.Errorf("queued add failed: %v", err)
	}
	if _, err := database.Keys(""); !errors.Is(err, db.ErrClosed) {
		t.Errorf("expected database to be closed, got %v", err)
	}

	// every later call fails loudly
	if _, _, err := users.GetRecord(ctx, "alice"); !errors.Is(err, store.ErrUseAfterClose) {
		t.Errorf("expected UseAfterClose, got %v", err)
	}
	if _, err := m.Namespace("items/"); !errors.Is(err, store.ErrUseAfterClose) {
		t.Errorf("expected UseAfterClose, got %v", err)
	}
	if _, err := m.Info(ctx); !errors.Is(err, store.ErrUseAfterClose) {
		t.Errorf("expected UseAfterClose, got %v", err)
	}

	// Close is idempotent
	if err := m.Close(ctx); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	select {
	case <-m.Done():
	default:
		t.Errorf("expected Done to be closed")
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	users := mustNamespace(t, m, "users/")

	if err := users.AddRecordMap(ctx, map[string]store.Value{"a": 1, "b": 2}); err != nil {
		t.Fatal(err)
	}
	info, err := m.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.DbType != db.ImplMemory || info.KeyCount != 2 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestAliceScenarioSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alice.db")

	database, err := sqlite.NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("could not open sqlite: %v", err)
	}
	m := NewManager(path, database, codec.NewJSONCodec())
	users := mustNamespace(t, m, "users/")
	if err := users.AddRecordMap(ctx, map[string]store.Value{"alice": map[string]any{"role": "admin"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := users.UpdateRecord(ctx, "alice", store.Object{"lastLogin": "T1"}); err != nil {
		t.Fatal(err)
	}
	if removed, err := users.RemoveRecord(ctx, "missing"); err != nil || removed {
		t.Errorf("expected removing missing to return false, got %v, %v", removed, err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}

	// the data survives a reopen and is readable with the other codec
	database, err = sqlite.NewSQLiteDB(path)
	if err != nil {
		t.Fatal(err)
	}
	m = NewManager(path, database, codec.NewJSONIterCodec())
	defer m.Close(ctx)
	users = mustNamespace(t, m, "users/")

	got, found, err := users.GetRecord(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("GetRecord failed: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(map[string]any{"role": "admin", "lastLogin": "T1"}, got); diff != "" {
		t.Errorf("alice mismatch (-want +got):\n%s", diff)
	}
}
