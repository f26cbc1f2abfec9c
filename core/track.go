package core

import (
	"sync"

	"github.com/synnergy-network/corevm/pkg/utils"
	"github.com/synnergy-network/corevm/store"
)

// LockFlags controls the semantics of an acquired substate lock
// (spec §4.2).
type LockFlags uint8

const (
	LockReadOnly      LockFlags = 1 << iota // READ_ONLY
	LockMutable                             // MUTABLE
	LockUnmodifiedBase                      // UNMODIFIED_BASE
	LockForceWrite                          // FORCE_WRITE
)

func (f LockFlags) has(bit LockFlags) bool { return f&bit != 0 }

// LockHandle identifies an open substate lock.
type LockHandle uint32

type substateAddr struct {
	node      NodeID
	partition PartitionNumber
	key       string // Key.Encode()
}

type lockEntry struct {
	handle   LockHandle
	addr     substateAddr
	flags    LockFlags
	baseHash [32]byte // snapshot used to assert UNMODIFIED_BASE on release
	present  bool
}

type overlayCell struct {
	value     []byte
	present   bool // false means "deleted"
	forceWrite bool
	dirty     bool
}

// Track maintains a write-through overlay of the substate store plus
// an explicit lock table (spec §4.2). It is scoped to a single
// transaction.
type Track struct {
	mu       sync.Mutex
	backing  store.SubstateStore
	overlay  map[string]*overlayCell // substateAddr key -> cell
	readLocks map[string]int          // substateAddr key -> count
	mutableLocked map[string]bool
	nextHandle LockHandle
	handles    map[LockHandle]*lockEntry
	addrIndex  map[string]resolvedAddr
	readBytes  int
	writeBytes int
}

type resolvedAddr struct {
	node      NodeID
	partition PartitionNumber
	key       store.Key
}

// NewTrack opens a transactional overlay over backing.
func NewTrack(backing store.SubstateStore) *Track {
	return &Track{
		backing:       backing,
		overlay:       make(map[string]*overlayCell),
		readLocks:     make(map[string]int),
		mutableLocked: make(map[string]bool),
		handles:       make(map[LockHandle]*lockEntry),
		addrIndex:     make(map[string]resolvedAddr),
	}
}

func addrKey(a substateAddr) string {
	return a.node.Hex() + "/" + string(rune(a.partition)) + "/" + a.key
}

// AcquireLock opens a lock over a substate. default_ supplies a value
// for absent map entries so callers can write-through "create if
// missing" without a prior read (spec §4.3).
func (t *Track) AcquireLock(node NodeID, partition PartitionNumber, key store.Key, flags LockFlags, default_ func() []byte) (LockHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr := substateAddr{node: node, partition: partition, key: string(key.Encode())}
	ak := addrKey(addr)

	if flags.has(LockMutable) {
		if t.mutableLocked[ak] || t.readLocks[ak] > 0 {
			return 0, utils.Kernel("AlreadyLocked", "substate already locked")
		}
	} else if flags.has(LockReadOnly) {
		if t.mutableLocked[ak] {
			return 0, utils.Kernel("AlreadyLocked", "substate already mutably locked")
		}
	}

	cell, ok := t.overlay[ak]
	if !ok {
		val, found, err := t.backing.Get(node.storeID(), partition, key)
		if err != nil {
			return 0, utils.Wrap(err, "read substate")
		}
		if !found && default_ != nil {
			val = default_()
			found = val != nil
		}
		cell = &overlayCell{value: val, present: found}
		t.overlay[ak] = cell
		t.addrIndex[ak] = resolvedAddr{node: node, partition: partition, key: key}
		if found {
			t.readBytes += len(val)
		}
	}

	t.nextHandle++
	h := t.nextHandle
	entry := &lockEntry{handle: h, addr: addr, flags: flags, present: cell.present}
	entry.baseHash = hashBytes(cell.value)
	t.handles[h] = entry

	if flags.has(LockMutable) {
		t.mutableLocked[ak] = true
	} else if flags.has(LockReadOnly) {
		t.readLocks[ak]++
	}
	return h, nil
}

// ReadSubstate returns the current overlay value for an open handle.
func (t *Track) ReadSubstate(handle LockHandle) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.handles[handle]
	if !ok {
		return nil, false, utils.Kernel("InvalidLockHandle", "lock handle not open")
	}
	cell := t.overlay[addrKey(entry.addr)]
	return cell.value, cell.present, nil
}

// WriteSubstate overwrites the overlay value for a MUTABLE handle.
func (t *Track) WriteSubstate(handle LockHandle, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.handles[handle]
	if !ok {
		return utils.Kernel("InvalidLockHandle", "lock handle not open")
	}
	if !entry.flags.has(LockMutable) {
		return utils.Kernel("InvalidLockFlags", "write requires a MUTABLE lock")
	}
	cell := t.overlay[addrKey(entry.addr)]
	cell.value = value
	cell.present = true
	cell.dirty = true
	cell.forceWrite = cell.forceWrite || entry.flags.has(LockForceWrite)
	t.writeBytes += len(value)
	return nil
}

// DropLock releases a handle. With LockUnmodifiedBase set, release
// asserts no intervening write occurred since acquisition; violation
// is fatal (spec §4.2).
func (t *Track) DropLock(handle LockHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.handles[handle]
	if !ok {
		return utils.Kernel("InvalidLockHandle", "lock handle not open")
	}
	ak := addrKey(entry.addr)
	if entry.flags.has(LockUnmodifiedBase) {
		cell := t.overlay[ak]
		if hashBytes(cell.value) != entry.baseHash {
			return utils.Kernel("UnmodifiedBaseViolated", "substate mutated while UNMODIFIED_BASE lock was held")
		}
	}
	if entry.flags.has(LockMutable) {
		delete(t.mutableLocked, ak)
	} else if entry.flags.has(LockReadOnly) {
		t.readLocks[ak]--
		if t.readLocks[ak] <= 0 {
			delete(t.readLocks, ak)
		}
	}
	delete(t.handles, handle)
	return nil
}

// Scan/ScanSorted pass range queries straight through to the backing
// store; map/sorted collections are versioned at partition
// granularity rather than tracked per-key in the lock table (spec
// §4.2), so overlay writes not yet committed are invisible to a scan
// until Commit.
func (t *Track) Scan(node NodeID, partition PartitionNumber, limit int) ([]store.Entry, error) {
	return t.backing.Scan(node.storeID(), partition, limit)
}

func (t *Track) ScanSorted(node NodeID, partition PartitionNumber, limit int) ([]store.Entry, error) {
	return t.backing.ScanSorted(node.storeID(), partition, limit)
}

// Commit flushes all dirty overlay cells to the backing store. Called
// once, after the kernel's transaction processor reaches a successful
// conclusion.
func (t *Track) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ak, cell := range t.overlay {
		if !cell.dirty {
			continue
		}
		node, partition, key := t.decodeAddr(ak)
		if !cell.present {
			if err := t.backing.Remove(node, partition, key); err != nil {
				return utils.Wrap(err, "commit remove")
			}
			continue
		}
		if err := t.backing.Set(node, partition, key, cell.value); err != nil {
			return utils.Wrap(err, "commit write")
		}
	}
	return nil
}

// Abort discards every non-FORCE_WRITE mutation; FORCE_WRITE
// mutations (fee-payment vaults, spec §4.2) survive and are flushed so
// fees can be charged even from a failed transaction.
func (t *Track) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ak, cell := range t.overlay {
		if !cell.dirty || !cell.forceWrite {
			continue
		}
		node, partition, key := t.decodeAddr(ak)
		if err := t.backing.Set(node, partition, key, cell.value); err != nil {
			return utils.Wrap(err, "force-write on abort")
		}
	}
	return nil
}

// ReadWriteBytes reports cumulative I/O for the transaction-limit
// module (spec §4.4).
func (t *Track) ReadWriteBytes() (read, write int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readBytes, t.writeBytes
}

// decodeAddr reconstructs the store-level coordinates from an overlay
// key for commit/abort flushing, using the index populated the first
// time that substate was locked.
func (t *Track) decodeAddr(ak string) (store.NodeID, PartitionNumber, store.Key) {
	addr := t.addrIndex[ak]
	return addr.node.storeID(), addr.partition, addr.key
}
