package store

import (
	"path/filepath"
	"testing"
)

func mkNode(b byte) NodeID {
	var n NodeID
	n[0] = b
	return n
}

func TestMemStoreGetSetRemove(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{"tuple", Key{Kind: KeyKindTuple, Tuple: 0x01}},
		{"map", Key{Kind: KeyKindMap, Bytes: []byte("entry-1")}},
		{"sorted", Key{Kind: KeyKindSorted, SortPrefix: 7, Bytes: []byte("id")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemStore()
			node := mkNode(0x42)
			if _, ok, err := s.Get(node, 0, tc.key); err != nil || ok {
				t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
			}
			if err := s.Set(node, 0, tc.key, []byte("value")); err != nil {
				t.Fatalf("set: %v", err)
			}
			v, ok, err := s.Get(node, 0, tc.key)
			if err != nil || !ok || string(v) != "value" {
				t.Fatalf("get after set: v=%s ok=%v err=%v", v, ok, err)
			}
			if err := s.Remove(node, 0, tc.key); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, ok, _ := s.Get(node, 0, tc.key); ok {
				t.Fatalf("expected miss after remove")
			}
		})
	}
}

func TestBoltStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBoltStore(filepath.Join(dir, "substates.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	node := mkNode(0x7)
	key := Key{Kind: KeyKindMap, Bytes: []byte("a")}
	if err := s.Set(node, 3, key, []byte("hello")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(node, 3, key)
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("get: v=%s ok=%v err=%v", v, ok, err)
	}

	entries, err := s.Scan(node, 3, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("scan: entries=%d err=%v", len(entries), err)
	}
}

func TestScanSortedOrdering(t *testing.T) {
	s := NewMemStore()
	node := mkNode(0x9)
	for i, id := range []string{"z", "a", "m"} {
		k := Key{Kind: KeyKindSorted, SortPrefix: uint16(i), Bytes: []byte(id)}
		if err := s.Set(node, 1, k, []byte{byte(i)}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	entries, err := s.ScanSorted(node, 1, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if len(e.Value) != 1 || e.Value[0] != byte(i) {
			t.Fatalf("entry %d: expected the key with sort prefix %d, got value %v", i, i, e.Value)
		}
	}
}
