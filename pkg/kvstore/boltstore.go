package kvstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cuemby/recoverd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// BoltStore is a bbolt-backed Store: one bucket per attached database,
// records JSON-marshaled under their key.
type BoltStore struct {
	db *bolt.DB

	chainMu sync.Mutex
	chains  map[string]*sync.Mutex
}

// NewBoltStore opens (creating if necessary) a bbolt file under
// dataDir named recdb.<suffix>.
func NewBoltStore(dataDir, suffix string) (*BoltStore, error) {
	path := filepath.Join(dataDir, fmt.Sprintf("recdb.%s", suffix))
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	return &BoltStore{db: db, chains: make(map[string]*sync.Mutex)}, nil
}

func bucketName(dbID uint32) []byte {
	return []byte(fmt.Sprintf("db_%d", dbID))
}

// Open implements Store.
func (s *BoltStore) Open(dbID uint32, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName(dbID))
		return err
	})
}

// Fetch implements Store.
func (s *BoltStore) Fetch(dbID uint32, key []byte) (types.Record, bool, error) {
	var rec types.Record
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(dbID))
		if b == nil {
			return fmt.Errorf("database %d not open", dbID)
		}
		data := b.Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// Put implements Store.
func (s *BoltStore) Put(dbID uint32, rec types.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(dbID))
		if b == nil {
			return fmt.Errorf("database %d not open", dbID)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(rec.Key, data)
	})
}

// Traverse implements Store.
func (s *BoltStore) Traverse(dbID uint32, fn func(types.Record) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(dbID))
		if b == nil {
			return fmt.Errorf("database %d not open", dbID)
		}
		return b.ForEach(func(k, v []byte) error {
			var rec types.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			return fn(rec)
		})
	})
}

// Wipe implements Store.
func (s *BoltStore) Wipe(dbID uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName(dbID)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketName(dbID))
		return err
	})
}

// Detach implements Store.
func (s *BoltStore) Detach(dbID uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bucketName(dbID))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

// TryLockChain implements Store.
func (s *BoltStore) TryLockChain(dbID uint32, key []byte) (func(), bool) {
	chainKey := fmt.Sprintf("%d:%s", dbID, key)

	s.chainMu.Lock()
	mu, ok := s.chains[chainKey]
	if !ok {
		mu = &sync.Mutex{}
		s.chains[chainKey] = mu
	}
	s.chainMu.Unlock()

	if !mu.TryLock() {
		return nil, false
	}
	return func() {
		s.chainMu.Lock()
		mu.Unlock()
		if s.chains[chainKey] == mu {
			delete(s.chains, chainKey)
		}
		s.chainMu.Unlock()
	}, true
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
