package store

import (
	"encoding/hex"
	"sort"
	"sync"
)

// MemStore is a process-local SubstateStore used by tests and by the
// reference CLI when no bbolt path is configured. Its locking is
// independent from the kernel's lock table (spec §4.2 layers its own
// discipline on top); MemStore only needs to be internally safe for
// concurrent test harnesses.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // "<node>/<partition>" -> keyBytes -> value
}

// NewMemStore constructs an empty in-memory substate store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string][]byte)}
}

func bucketID(node NodeID, partition Partition) string {
	return hex.EncodeToString(node[:]) + "/" + string(rune(partition))
}

func (m *MemStore) Get(node NodeID, partition Partition, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[bucketID(node, partition)]
	if !ok {
		return nil, false, nil
	}
	v, ok := b[string(key.Encode())]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemStore) Set(node NodeID, partition Partition, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := bucketID(node, partition)
	b, ok := m.data[id]
	if !ok {
		b = make(map[string][]byte)
		m.data[id] = b
	}
	b[string(key.Encode())] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Remove(node NodeID, partition Partition, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.data[bucketID(node, partition)]; ok {
		delete(b, string(key.Encode()))
	}
	return nil
}

func (m *MemStore) scan(node NodeID, partition Partition, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[bucketID(node, partition)]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{
			Key:   Key{Kind: KeyKindMap, Bytes: []byte(k)},
			Value: append([]byte(nil), b[k]...),
		})
	}
	return out, nil
}

func (m *MemStore) Scan(node NodeID, partition Partition, limit int) ([]Entry, error) {
	return m.scan(node, partition, limit)
}

func (m *MemStore) ScanSorted(node NodeID, partition Partition, limit int) ([]Entry, error) {
	return m.scan(node, partition, limit)
}

func (m *MemStore) Close() error { return nil }
