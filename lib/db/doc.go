// Package db provides a standardized interface for the durable key-value stores
// that litemap persists records in.
//
// The package focuses on:
//   - A minimal interface (KVDB) for a flat physical key space
//   - Transactional batch writes and prefix scoped scans and deletes
//   - Loud failure after Close (ErrClosed)
//
// Key Components:
//
//   - KVDB Interface: the contract every storage engine satisfies. Values are opaque
//     byte slices, encoding records is the job of the codec package.
//
//   - Implementation Identifiers: string constants for the available engines
//     (sqlite, bolt, pebble, memory).
//
//   - Factory: a function that opens a KVDB for an identifier. The registry uses it
//     to open exactly one handle per identifier.
//
// Note on Concurrency:
//   - Engines are not required to be safe for concurrent use. The store layer routes
//     every call through a per handle operation queue, so calls never overlap.
//
// Related Packages:
//
// The engines packages (github.com/ValentinKolb/litemap/lib/db/engines/...) provide the
// implementations. engines.Open picks one based on the identifier scheme.
//
// The testing package (github.com/ValentinKolb/litemap/lib/db/testing) provides
// standardized tests and benchmarks for implementations of the KVDB interface.
package db
