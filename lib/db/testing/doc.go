// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (ordering of prefix scans,
//     all-or-nothing batches, loud failure after Close, ...)
//   - benchmark: Performance tests for the operations the store layer issues
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(tb testing.TB) db.KVDB {
//		return NewMyDatabase(tb.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
