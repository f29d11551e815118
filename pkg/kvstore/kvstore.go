package kvstore

import "github.com/cuemby/recoverd/pkg/types"

// Store is the on-disk database engine's interface: open a database,
// fetch or store a single record, traverse every record in a database,
// and take a non-blocking chain lock on a key.
type Store interface {
	// Open attaches a database, creating its backing storage if it does
	// not already exist.
	Open(dbID uint32, name string) error

	// Fetch returns the record stored at key in dbID. The second return
	// value is false if no record exists at that key.
	Fetch(dbID uint32, key []byte) (types.Record, bool, error)

	// Put stores rec at its key in dbID, overwriting any existing
	// record.
	Put(dbID uint32, rec types.Record) error

	// Traverse calls fn once for every record currently stored in dbID,
	// in unspecified order. Traverse stops and returns fn's error if fn
	// returns a non-nil error.
	Traverse(dbID uint32, fn func(types.Record) error) error

	// Wipe removes every record from dbID without detaching it.
	Wipe(dbID uint32) error

	// Detach removes a database and its backing storage entirely.
	Detach(dbID uint32) error

	// TryLockChain attempts to acquire the chain lock for key in dbID
	// without blocking. On success it returns an unlock function the
	// caller must call exactly once. On contention it returns ok=false
	// immediately rather than blocking, so callers such as a vacuum
	// fetch can skip a busy key instead of stalling.
	TryLockChain(dbID uint32, key []byte) (unlock func(), ok bool)

	// Close releases the store's underlying resources.
	Close() error
}
