package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// putJSON marshals value and writes it into bucket under key, mirroring the
// teacher pack's DB.PutJSON but operating within an already-open
// transaction so callers can compose multi-bucket writes atomically.
func putJSON(tx *bolt.Tx, bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Put([]byte(key), data)
}

// getJSON reads key from bucket and unmarshals it into value. Returns
// false, nil if the key is absent.
func getJSON(tx *bolt.Tx, bucket, key string, value any) (bool, error) {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return false, fmt.Errorf("bucket not found: %s", bucket)
	}
	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// unmarshalInto decodes a raw bucket value, used when callers already hold
// the []byte from a cursor or ForEach rather than calling getJSON.
func unmarshalInto(data []byte, value any) error {
	return json.Unmarshal(data, value)
}

// deleteKey removes key from bucket, a no-op if absent.
func deleteKey(tx *bolt.Tx, bucket, key string) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Delete([]byte(key))
}

// indexKey builds the composite key used by secondary-index buckets:
// value\x00id, so a prefix scan over value\x00 yields every id indexed
// under that value.
func indexKey(value, id string) []byte {
	return []byte(value + "\x00" + id)
}

// putIndex adds an index entry.
func putIndex(tx *bolt.Tx, bucket, value, id string) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Put(indexKey(value, id), nil)
}

// deleteIndex removes an index entry, a no-op if absent.
func deleteIndex(tx *bolt.Tx, bucket, value, id string) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Delete(indexKey(value, id))
}

// scanIndex returns every id indexed under value.
func scanIndex(tx *bolt.Tx, bucket, value string) ([]string, error) {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return nil, fmt.Errorf("bucket not found: %s", bucket)
	}
	prefix := []byte(value + "\x00")
	var ids []string
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, string(k[len(prefix):]))
	}
	return ids, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
