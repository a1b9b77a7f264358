// Package engines maps store identifiers to the db.KVDB implementations.
//
// Identifier format:
//
//	memory:<name>   non-durable in-memory store (tests, throwaway data)
//	bolt:<path>     bbolt file
//	pebble:<dir>    pebble directory
//	sqlite:<path>   sqlite file
//	<path>          sqlite file (default engine)
package engines

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/ValentinKolb/litemap/lib/db/engines/bolt"
	"github.com/ValentinKolb/litemap/lib/db/engines/memory"
	"github.com/ValentinKolb/litemap/lib/db/engines/pebble"
	"github.com/ValentinKolb/litemap/lib/db/engines/sqlite"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db")

// Parse splits an identifier into the engine implementation and the engine
// specific location (path, directory or name).
func Parse(identifier string) (db.Implementation, string) {
	scheme, location, found := strings.Cut(identifier, ":")
	if !found {
		return db.ImplSQLite, identifier
	}
	switch db.Implementation(scheme) {
	case db.ImplMemory, db.ImplBolt, db.ImplPebble, db.ImplSQLite:
		return db.Implementation(scheme), location
	default:
		// not a known scheme (e.g. ":memory:" or "C:\..."), treat as sqlite path
		return db.ImplSQLite, identifier
	}
}

// Open opens the database for identifier. It implements db.Factory.
func Open(identifier string) (db.KVDB, error) {
	impl, location := Parse(identifier)
	if location == "" {
		return nil, fmt.Errorf("identifier %q has no location", identifier)
	}
	log.Debugf("opening %s database at %s", impl, location)
	switch impl {
	case db.ImplMemory:
		return memory.NewMemoryDB(location), nil
	case db.ImplBolt:
		return bolt.NewBoltDB(location)
	case db.ImplPebble:
		return pebble.NewPebbleDB(location)
	default:
		return sqlite.NewSQLiteDB(location)
	}
}

var _ db.Factory = Open
