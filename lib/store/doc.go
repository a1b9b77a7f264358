// Package store defines the record API of litemap and its error model.
//
// A store is one durable key-value database (see package db) identified by a
// path or scheme string. It is partitioned into namespaces: fixed key prefixes
// such as "users/" or "items/". A record with logical key "alice" in namespace
// "users/" is stored under the physical key "users/alice", its value is the
// JSON encoding of an arbitrary JSON value.
//
// Key Components:
//
//   - INamespace: the record operations of one namespace (add, update with
//     shallow merge, get, list, export, remove, clear). Each operation has a
//     blocking and an ...Async variant returning a queue.Future.
//
//   - Error System: every failure returned by the store layer is an *Error
//     carrying a RetCode. Compare with errors.Is against the sentinels
//     ErrInvalidArgument, ErrStorageFailure and ErrUseAfterClose; the
//     underlying cause is available through errors.Unwrap.
//
//   - Merge: the shallow merge applied by UpdateRecord.
//
// The implementation lives in package lstore, the per identifier cache of
// stores in package registry.
package store
