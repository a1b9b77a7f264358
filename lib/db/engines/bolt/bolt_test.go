package bolt

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/litemap/lib/db"
	dbtesting "github.com/ValentinKolb/litemap/lib/db/testing"
	bolt "go.etcd.io/bbolt"
)

func newTestDB(tb testing.TB) db.KVDB {
	database, err := NewBoltDB(filepath.Join(tb.TempDir(), "litemap.bolt"))
	if err != nil {
		tb.Fatalf("could not open bolt database: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "Bolt", newTestDB)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.bolt")

	database, err := NewBoltDB(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := database.BatchPut([]db.Entry{
		{Key: "items/1", Value: []byte(`1`)},
		{Key: "items/2", Value: []byte(`2`)},
	}); err != nil {
		t.Fatalf("BatchPut failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	database, err = NewBoltDB(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer database.Close()

	keys, err := database.Keys("items/")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 keys after reopen, got %v", keys)
	}
}

func TestBatchPutRollsBack(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()

	// bolt rejects the oversized key inside the transaction, after the first put
	err := database.BatchPut([]db.Entry{
		{Key: "users/alice", Value: []byte(`{"role":"admin"}`)},
		{Key: "users/" + strings.Repeat("x", bolt.MaxKeySize), Value: []byte(`{}`)},
		{Key: "users/bob", Value: []byte(`{"role":"editor"}`)},
	})
	if !errors.Is(err, bolt.ErrKeyTooLarge) {
		t.Fatalf("Expected BatchPut to fail with ErrKeyTooLarge, got %v", err)
	}

	keys, err := database.Keys("")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected failed batch to leave no keys, got %v", keys)
	}

	if err := database.Put("users/after", []byte(`{}`)); err != nil {
		t.Fatalf("Put after failed batch failed: %v", err)
	}
	if _, found, err := database.Get("users/after"); err != nil || !found {
		t.Errorf("Expected key written after failed batch (found=%v, err=%v)", found, err)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "Bolt", newTestDB)
}
