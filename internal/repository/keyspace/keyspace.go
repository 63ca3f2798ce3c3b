// Package keyspace names the backend keys seqdex writes.
//
//	<prefix>index:<name>        index metadata hash
//	<prefix><name>:idx          FT index over the index's events
//	<prefix>event:<name>:<id>   event JSON document
package keyspace

import "strings"

// Keyspace derives key names from a configured prefix such as "seqdex:".
type Keyspace struct {
	prefix string
}

// New creates a Keyspace. An empty prefix is allowed.
func New(prefix string) Keyspace { return Keyspace{prefix: prefix} }

// Prefix returns the configured prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// Meta returns the metadata hash key of an index.
func (k Keyspace) Meta(name string) string { return k.prefix + "index:" + name }

// MetaPattern matches every metadata hash key.
func (k Keyspace) MetaPattern() string { return k.prefix + "index:*" }

// SearchIndex returns the FT index name of an index.
func (k Keyspace) SearchIndex(name string) string { return k.prefix + name + ":idx" }

// EventRoot is the common prefix of all event keys. Trimming it from an
// event key leaves the "<index>:<id>" tiebreaker.
func (k Keyspace) EventRoot() string { return k.prefix + "event:" }

// Events returns the key prefix of an index's events.
func (k Keyspace) Events(name string) string { return k.EventRoot() + name + ":" }

// Event returns the key of one event.
func (k Keyspace) Event(name, id string) string { return k.Events(name) + id }

// NameFromMeta is the inverse of Meta.
func (k Keyspace) NameFromMeta(key string) (string, bool) {
	return strings.CutPrefix(key, k.prefix+"index:")
}
