/*
Package kvstore defines the on-disk database engine's interface as seen
by the coordinator: open a database, fetch/store a single record,
traverse every record, and take a short-lived chain lock on a key to
serialize concurrent migration attempts such as a vacuum fetch.

Store is implemented here by a bbolt-backed reference store (one bucket
per attached database), used as the node's live store. The recovery
engine does not use a Store as its working store: it stages merged
records in an in-memory map.
*/
package kvstore
