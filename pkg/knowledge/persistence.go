package knowledge

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// rootBucket holds one sub-bucket per knowledge-base key, each entry encoded
// as JSON under its version number.
var rootBucket = []byte("knowledge")

// Store persists a Base to a BoltDB file, one bucket per key and
// JSON-encoded entries as the format, backing the save_state/load_state
// contract.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if absent) the BoltDB file at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying BoltDB file handle.
func (s *Store) Close() error { return s.db.Close() }

// Save writes every entry currently held by b, replacing whatever the store
// previously contained.
func (s *Store) Save(b *Base) error {
	entries := b.Export()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(rootBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		root, err := tx.CreateBucket(rootBucket)
		if err != nil {
			return err
		}
		for _, e := range entries {
			keyBucket, err := root.CreateBucketIfNotExists([]byte(e.Key))
			if err != nil {
				return err
			}
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("knowledge: encode entry %s v%d: %w", e.Key, e.Version, err)
			}
			if err := keyBucket.Put(versionKey(e.Version), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads every persisted entry and imports it into b, replacing b's
// current in-memory state.
func (s *Store) Load(b *Base) error {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil // not expected: entries live in nested per-key buckets
			}
			keyBucket := root.Bucket(k)
			return keyBucket.ForEach(func(_, data []byte) error {
				var e Entry
				if err := json.Unmarshal(data, &e); err != nil {
					return fmt.Errorf("knowledge: decode entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
		})
	})
	if err != nil {
		return err
	}
	return b.Import(entries)
}

func versionKey(version int) []byte {
	return []byte(fmt.Sprintf("%08d", version))
}
