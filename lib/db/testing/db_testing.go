package testing

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/google/go-cmp/cmp"
)

// DBFactory is a function that creates a new, empty instance of a KVDB implementation.
// Durable engines should place their files below tb.TempDir().
type DBFactory func(tb testing.TB) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("ScanPrefix", func(t *testing.T) {
			testScanPrefix(t, factory(t))
		})

		t.Run("LiteralPrefix", func(t *testing.T) {
			testLiteralPrefix(t, factory(t))
		})

		t.Run("BatchPut", func(t *testing.T) {
			testBatchPut(t, factory(t))
		})

		t.Run("BatchPutRejected", func(t *testing.T) {
			testBatchPutRejected(t, factory(t))
		})

		t.Run("DeletePrefix", func(t *testing.T) {
			testDeletePrefix(t, factory(t))
		})

		t.Run("DeleteAll", func(t *testing.T) {
			testDeleteAll(t, factory(t))
		})

		t.Run("EmptyKey", func(t *testing.T) {
			testEmptyKey(t, factory(t))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustPut(t testing.TB, database db.KVDB, key, value string) {
	t.Helper()
	if err := database.Put(key, []byte(value)); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func mustKeys(t testing.TB, database db.KVDB, prefix string) []string {
	t.Helper()
	keys, err := database.Keys(prefix)
	if err != nil {
		t.Fatalf("Keys(%q) failed: %v", prefix, err)
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"
	testValue1 := []byte(`{"v":1}`)
	testValue2 := []byte(`{"v":2}`)

	if err := database.Put(testKey, testValue1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	result, found, err := database.Get(testKey)
	if err != nil || !found {
		t.Fatalf("Expected key %s to exist after Put (found=%v, err=%v)", testKey, found, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := database.Put(testKey, testValue2); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected overwritten value %s, got %s", testValue2, result)
	}

	_, found, err = database.Get("nonexistent-key")
	if err != nil {
		t.Fatalf("Get of missing key returned error: %v", err)
	}
	if found {
		t.Errorf("Expected nonexistent key to return found=false")
	}

	// returned slices must not alias internal state
	retrieved, _, _ := database.Get(testKey)
	retrieved[0] = 'X'
	again, _, _ := database.Get(testKey)
	if !bytes.Equal(again, testValue2) {
		t.Errorf("Modifying a returned value changed the stored value: %s", again)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustPut(t, database, "a", "1")

	removed, err := database.Delete("a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Errorf("Expected Delete of existing key to report true")
	}

	if _, found, _ := database.Get("a"); found {
		t.Errorf("Expected key to be gone after Delete")
	}

	removed, err = database.Delete("a")
	if err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
	if removed {
		t.Errorf("Expected Delete of missing key to report false")
	}
}

func testScanPrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	for _, k := range []string{"users/bob", "items/x", "users/alice", "usersX", "items/y", "users/"} {
		mustPut(t, database, k, "v-"+k)
	}

	if diff := cmp.Diff([]string{"users/", "users/alice", "users/bob"}, mustKeys(t, database, "users/")); diff != "" {
		t.Errorf("Keys(users/) mismatch (-want +got):\n%s", diff)
	}

	all := mustKeys(t, database, "")
	want := []string{"items/x", "items/y", "users/", "users/alice", "users/bob", "usersX"}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("Keys(\"\") mismatch (-want +got):\n%s", diff)
	}

	entries, err := database.ScanPrefix("items/")
	if err != nil {
		t.Fatalf("ScanPrefix failed: %v", err)
	}
	wantEntries := []db.Entry{
		{Key: "items/x", Value: []byte("v-items/x")},
		{Key: "items/y", Value: []byte("v-items/y")},
	}
	if diff := cmp.Diff(wantEntries, entries); diff != "" {
		t.Errorf("ScanPrefix(items/) mismatch (-want +got):\n%s", diff)
	}

	entries, err = database.ScanPrefix("nothing/")
	if err != nil {
		t.Fatalf("ScanPrefix failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries for unused prefix, got %d", len(entries))
	}
}

func testLiteralPrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustPut(t, database, "a%/1", "x")
	mustPut(t, database, "ab/1", "x")
	mustPut(t, database, "a_/1", "x")
	mustPut(t, database, "a\xff", "x")
	mustPut(t, database, "a\xff\xff", "x")

	if diff := cmp.Diff([]string{"a%/1"}, mustKeys(t, database, "a%")); diff != "" {
		t.Errorf("'%%' must match literally (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a_/1"}, mustKeys(t, database, "a_")); diff != "" {
		t.Errorf("'_' must match literally (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a\xff", "a\xff\xff"}, mustKeys(t, database, "a\xff")); diff != "" {
		t.Errorf("prefix ending in 0xff mismatch (-want +got):\n%s", diff)
	}
}

func testBatchPut(t *testing.T, database db.KVDB) {
	defer database.Close()

	if err := database.BatchPut(nil); err != nil {
		t.Fatalf("empty BatchPut failed: %v", err)
	}
	if keys := mustKeys(t, database, ""); len(keys) != 0 {
		t.Fatalf("empty BatchPut wrote keys: %v", keys)
	}

	mustPut(t, database, "k1", "old")

	entries := make([]db.Entry, 0, 100)
	for i := 0; i < 100; i++ {
		entries = append(entries, db.Entry{Key: fmt.Sprintf("k%d", i), Value: []byte(fmt.Sprintf("v%d", i))})
	}
	if err := database.BatchPut(entries); err != nil {
		t.Fatalf("BatchPut failed: %v", err)
	}

	for _, e := range entries {
		value, found, err := database.Get(e.Key)
		if err != nil || !found {
			t.Fatalf("Expected %s after BatchPut (found=%v, err=%v)", e.Key, found, err)
		}
		if !bytes.Equal(value, e.Value) {
			t.Errorf("Expected %s=%s, got %s", e.Key, e.Value, value)
		}
	}
}

func testBatchPutRejected(t *testing.T, database db.KVDB) {
	defer database.Close()

	err := database.BatchPut([]db.Entry{
		{Key: "good-1", Value: []byte("1")},
		{Key: "", Value: []byte("2")},
		{Key: "good-3", Value: []byte("3")},
	})
	if err == nil {
		t.Fatalf("Expected BatchPut with an empty key to fail")
	}
	if keys := mustKeys(t, database, ""); len(keys) != 0 {
		t.Errorf("Expected rejected batch to leave no keys, got %v", keys)
	}
}

func testDeletePrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	for _, k := range []string{"users/a", "users/b", "items/a", "usersX"} {
		mustPut(t, database, k, "v")
	}

	removed, err := database.DeletePrefix("users/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed keys, got %d", removed)
	}
	if diff := cmp.Diff([]string{"items/a", "usersX"}, mustKeys(t, database, "")); diff != "" {
		t.Errorf("keys after DeletePrefix mismatch (-want +got):\n%s", diff)
	}

	removed, err = database.DeletePrefix("users/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed keys on second call, got %d", removed)
	}
}

func testDeleteAll(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 10; i++ {
		mustPut(t, database, fmt.Sprintf("ns%d/key", i), "v")
	}

	removed, err := database.DeleteAll()
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if removed != 10 {
		t.Errorf("Expected 10 removed keys, got %d", removed)
	}
	if keys := mustKeys(t, database, ""); len(keys) != 0 {
		t.Errorf("Expected empty database after DeleteAll, got %v", keys)
	}

	// the database must stay usable
	mustPut(t, database, "after", "v")
	if _, found, _ := database.Get("after"); !found {
		t.Errorf("Expected Put after DeleteAll to work")
	}
}

func testEmptyKey(t *testing.T, database db.KVDB) {
	defer database.Close()

	if err := database.Put("", []byte("v")); err == nil {
		t.Errorf("Expected Put with empty key to fail")
	}
	if _, _, err := database.Get(""); err == nil {
		t.Errorf("Expected Get with empty key to fail")
	}
	if _, err := database.Delete(""); err == nil {
		t.Errorf("Expected Delete with empty key to fail")
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	mustPut(t, database, "k", "v")

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	checks := map[string]error{
		"Put": database.Put("k", []byte("v")),
		"BatchPut": database.BatchPut([]db.Entry{
			{Key: "k", Value: []byte("v")},
		}),
		"Close": database.Close(),
	}
	_, _, checks["Get"] = database.Get("k")
	_, checks["Delete"] = database.Delete("k")
	_, checks["Keys"] = database.Keys("")
	_, checks["ScanPrefix"] = database.ScanPrefix("")
	_, checks["DeletePrefix"] = database.DeletePrefix("k")
	_, checks["DeleteAll"] = database.DeleteAll()

	for op, err := range checks {
		if !errors.Is(err, db.ErrClosed) {
			t.Errorf("Expected %s on closed database to return ErrClosed, got %v", op, err)
		}
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 3; i++ {
		mustPut(t, database, fmt.Sprintf("k%d", i), "v")
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	if info.KeyCount != 3 {
		t.Errorf("Expected KeyCount 3, got %d", info.KeyCount)
	}
}
