package store

import (
	"encoding/hex"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is the persistent SubstateStore backing, grounded on the
// same embedded key-value engine the teacher repo uses for its raft
// log store. Each (NodeId, Partition) pair maps to one bbolt bucket
// nested under a top-level "substates" bucket, keyed by NodeId-hex so
// that a single *bolt.DB file holds the whole store.
type BoltStore struct {
	db *bolt.DB
}

var rootBucket = []byte("substates")

// OpenBoltStore opens (creating if absent) a bbolt-backed substate
// store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func nodeBucketName(node NodeID, partition Partition) []byte {
	return []byte(hex.EncodeToString(node[:]) + ":" + fmt.Sprintf("%02x", byte(partition)))
}

func (s *BoltStore) Get(node NodeID, partition Partition, key Key) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		b := root.Bucket(nodeBucketName(node, partition))
		if b == nil {
			return nil
		}
		if v := b.Get(key.Encode()); v != nil {
			value = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	return value, found, err
}

func (s *BoltStore) Set(node NodeID, partition Partition, key Key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		b, err := root.CreateBucketIfNotExists(nodeBucketName(node, partition))
		if err != nil {
			return err
		}
		return b.Put(key.Encode(), value)
	})
}

func (s *BoltStore) Remove(node NodeID, partition Partition, key Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		b := root.Bucket(nodeBucketName(node, partition))
		if b == nil {
			return nil
		}
		return b.Delete(key.Encode())
	})
}

func (s *BoltStore) scan(node NodeID, partition Partition, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		b := root.Bucket(nodeBucketName(node, partition))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			entries = append(entries, Entry{
				Key:   Key{Kind: KeyKindMap, Bytes: append([]byte(nil), k...)},
				Value: append([]byte(nil), v...),
			})
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

func (s *BoltStore) Scan(node NodeID, partition Partition, limit int) ([]Entry, error) {
	return s.scan(node, partition, limit)
}

// ScanSorted relies on bbolt's natural byte-lexicographic cursor
// order, which matches the "u16 || byte-string" sorted key layout of
// spec §6 directly: the u16 prefix sorts primarily because it is
// serialized big-endian ahead of the byte string.
func (s *BoltStore) ScanSorted(node NodeID, partition Partition, limit int) ([]Entry, error) {
	entries, err := s.scan(node, partition, limit)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Key.Bytes) < string(entries[j].Key.Bytes)
	})
	return entries, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }
