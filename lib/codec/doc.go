// Package codec provides the record codecs that turn record values into the text
// persisted by a db.KVDB.
//
// Two implementations of ICodec are available:
//   - jsoniter: json-iterator in standard library compatible mode (default)
//   - json: encoding/json from the standard library
//
// Both produce byte identical output for the JSON data model, so a store written
// with one codec can be read with the other.
package codec
