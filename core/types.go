// Package core implements the execution kernel: call frames, node
// lifetime and visibility, substate locking, the typed system service
// over the kernel, and the native blueprints (package, resource
// manager, vault/bucket/proof, auth-zone, worktop) that give the
// kernel meaning as a smart-contract platform (spec §1-§4).
package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/synnergy-network/corevm/store"
)

// EntityType tags the first byte of a NodeId, distinguishing global
// vs. internal nodes and their blueprint category (spec §3).
type EntityType byte

const (
	EntityGlobalPackage EntityType = iota + 1
	EntityGlobalFungibleResource
	EntityGlobalNonFungibleResource
	EntityGlobalGenericComponent
	EntityGlobalAccount
	EntityGlobalIdentity
	EntityGlobalAccessController
	EntityGlobalValidator

	EntityInternalFungibleVault
	EntityInternalNonFungibleVault
	EntityInternalKeyValueStore
	EntityInternalGenericComponent
)

// IsGlobal reports whether the entity type denotes a directly
// addressable (global) node, as opposed to one owned by a parent's
// ownership tree (internal).
func (e EntityType) IsGlobal() bool {
	return e >= EntityGlobalPackage && e <= EntityGlobalValidator
}

// NodeID is the opaque 30-byte node identifier of spec §3. The first
// byte is the EntityType tag; the remaining 29 bytes are a
// transaction-scoped deterministic hash.
type NodeID [30]byte

func (n NodeID) EntityType() EntityType { return EntityType(n[0]) }
func (n NodeID) IsGlobal() bool         { return n.EntityType().IsGlobal() }
func (n NodeID) Bytes() []byte          { return n[:] }
func (n NodeID) Hex() string            { return fmt.Sprintf("%x", n[:]) }
func (n NodeID) storeID() store.NodeID  { return store.NodeID(n) }

// PartitionNumber is a per-node namespace of substates (spec §3).
type PartitionNumber = store.Partition

// Canonical partition assignments. Collections get offset partitions
// starting at PartitionCollectionBase so a blueprint with several
// collections never collides with the fixed system partitions.
const (
	PartitionTypeInfo       PartitionNumber = 0
	PartitionMetadata       PartitionNumber = 1
	PartitionRoleAssignment PartitionNumber = 2
	PartitionRoyalty        PartitionNumber = 3
	PartitionMainState      PartitionNumber = 16
	PartitionCollectionBase PartitionNumber = 32
)

// NodeIDAllocator deterministically derives NodeIds from
// (transactionHash, monotonic counter), per spec §4.3. The counter is
// owned by the kernel's per-transaction state; the kernel does not
// call Checkpoint or Rollback, so an abort leaves it where it is.
type NodeIDAllocator struct {
	txHash  [32]byte
	counter uint32
}

// NewNodeIDAllocator seeds an allocator for a single transaction.
func NewNodeIDAllocator(txHash [32]byte) *NodeIDAllocator {
	return &NodeIDAllocator{txHash: txHash}
}

// Allocate returns the next deterministic NodeId for entityType.
func (a *NodeIDAllocator) Allocate(entityType EntityType) NodeID {
	a.counter++
	var buf [36]byte
	copy(buf[:32], a.txHash[:])
	binary.BigEndian.PutUint32(buf[32:], a.counter)
	h := sha256.Sum256(buf[:])
	var id NodeID
	id[0] = byte(entityType)
	copy(id[1:], h[:29])
	return id
}

// Rollback resets the counter to a value previously returned by
// Checkpoint.
func (a *NodeIDAllocator) Rollback(checkpoint uint32) { a.counter = checkpoint }

// Checkpoint returns the current counter value for later Rollback.
func (a *NodeIDAllocator) Checkpoint() uint32 { return a.counter }
