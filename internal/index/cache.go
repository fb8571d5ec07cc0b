package index

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var recordsBucket = []byte("records")

// Cache is a bolt-backed, read-through memoization of decoded index
// record files, grounded in the teacher's source_cache_bolt.go: one
// process-wide database, one bucket, keys scoped by index root so
// distinct indices (and distinct mirror snapshots under
// indices/<idx-hash>) never collide.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (creating if necessary) a bolt database file at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating index cache directory %s", dir)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening index cache %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing index cache bucket")
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error {
	return errors.Wrap(c.db.Close(), "closing index cache")
}

func cacheKey(root, packageKey string) []byte {
	return []byte(root + "\x00" + packageKey)
}

func (c *Cache) get(root, packageKey string) ([]Record, bool) {
	var raw []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get(cacheKey(root, packageKey))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return nil, false
	}
	var rs []Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&rs); err != nil {
		return nil, false
	}
	return rs, true
}

func (c *Cache) put(root, packageKey string, rs []Record) {
	raw, err := json.Marshal(rs)
	if err != nil {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put(cacheKey(root, packageKey), raw)
	})
}
