package testing

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/litemap/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation.
// Calls are issued from a single goroutine, mirroring how the operation queue
// drives a database.
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory(b))
		})

		b.Run("PutExisting", func(b *testing.B) {
			benchmarkPutExisting(b, factory(b))
		})

		b.Run("BatchPut100", func(b *testing.B) {
			benchmarkBatchPut(b, factory(b), 100)
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(b))
		})

		b.Run("ScanPrefix", func(b *testing.B) {
			benchmarkScanPrefix(b, factory(b))
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory(b))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// fill writes n keys of the form "<prefix><i>".
func fill(b *testing.B, database db.KVDB, prefix string, n int) {
	b.Helper()
	entries := make([]db.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, db.Entry{
			Key:   fmt.Sprintf("%s%d", prefix, i),
			Value: []byte(fmt.Sprintf(`{"n":%d}`, i)),
		})
	}
	if err := database.BatchPut(entries); err != nil {
		b.Fatalf("could not prepare data: %v", err)
	}
}

func benchmarkPut(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	value := []byte(`{"name":"bench","role":"user"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := database.Put(fmt.Sprintf("bench/%d", i), value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkPutExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	const numKeys = 100
	fill(b, database, "bench/", numKeys)
	value := []byte(`{"name":"bench","role":"admin"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := database.Put(fmt.Sprintf("bench/%d", i%numKeys), value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkBatchPut(b *testing.B, database db.KVDB, size int) {
	b.Cleanup(func() {
		database.Close()
	})

	entries := make([]db.Entry, size)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range entries {
			entries[j] = db.Entry{Key: fmt.Sprintf("bench/%d/%d", i, j), Value: []byte(`{}`)}
		}
		if err := database.BatchPut(entries); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	const numKeys = 1000
	fill(b, database, "bench/", numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := database.Get(fmt.Sprintf("bench/%d", i%numKeys)); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkScanPrefix(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	fill(b, database, "users/", 500)
	fill(b, database, "items/", 500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.ScanPrefix("users/"); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	fill(b, database, "bench/", b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.Delete(fmt.Sprintf("bench/%d", i)); err != nil {
			b.Fatal(err)
		}
	}
}
