// Package lstore implements the store.INamespace API on top of a single local
// db.KVDB handle.
//
// A Manager owns exactly one database handle and one operation queue
// (package queue). Namespaces are cheap handles created with
// Manager.Namespace; every record operation of every namespace is submitted to
// the manager's queue and executed by its single worker, one at a time, in
// submission order. This makes the read-merge-write of UpdateRecord safe as long
// as all writers of a database go through the same Manager, which is what
// package registry ensures.
//
// Values are encoded with a codec.ICodec before they are queued. Invalid
// arguments are therefore reported immediately, failures of the database or
// codec through the operation's future.
//
// Usage Example:
//
//	database, _ := engines.Open("./db/app.db")
//	manager := lstore.NewManager("./db/app.db", database, nil)
//	defer manager.Close(ctx)
//
//	users, _ := manager.Namespace("users/")
//	_ = users.AddRecordMap(ctx, map[string]any{"alice": map[string]any{"role": "admin"}})
//	merged, _ := users.UpdateRecord(ctx, "alice", store.Object{"lastLogin": "T1"})
//	// merged == {"role": "admin", "lastLogin": "T1"}
package lstore
