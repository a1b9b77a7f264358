// Package registry provides the Store Registry, the single point of
// construction for lstore.Manager instances.
//
// The serialization guarantee of a manager only holds if every writer of a
// database uses the same manager. A Registry maps each store identifier (see
// engines.Open for the format) to exactly one manager and opens the database
// lazily on the first Resolve. The mapping lives in memory only and starts
// empty in every process.
//
//	reg := registry.New()
//	defer reg.CloseAll(ctx)
//
//	users, err := reg.Namespace("./db/app.db", "users/")
package registry
