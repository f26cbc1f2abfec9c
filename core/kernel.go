package core

import (
	"crypto/sha256"

	"github.com/synnergy-network/corevm/pkg/utils"
	"github.com/synnergy-network/corevm/store"
)

// KernelMode tracks which layer currently owns control inside a call
// frame, used to restrict which kernel APIs are callable from where
// (spec §4.1).
type KernelMode uint8

const (
	ModeKernel KernelMode = iota
	ModeClient
	ModeAuthModule
	ModeDerefModule
	ModeSystem
)

// Actor identifies the code running in a call frame: a package
// blueprint function/method, or the outermost transaction-processor
// actor that has no owning blueprint.
type Actor struct {
	PackageAddress NodeID
	BlueprintName  string
	ObjectID       *NodeID // nil for a function call, set for a method call
	IsRoot         bool
}

// CallFrame is one level of the kernel's invocation stack (spec §4.3).
// Node ownership and visibility are scoped to a frame: a frame may
// only reference nodes it owns or that are globally visible, and on
// frame exit every owned node still resident (not moved to a parent,
// not globalized) is a dangling-node error.
type CallFrame struct {
	depth      int
	actor      Actor
	mode       KernelMode
	ownedNodes map[NodeID]bool
	refNodes   map[NodeID]bool
	openLocks  map[LockHandle]bool
}

func newCallFrame(depth int, actor Actor) *CallFrame {
	return &CallFrame{
		depth:      depth,
		actor:      actor,
		mode:       ModeKernel,
		ownedNodes: make(map[NodeID]bool),
		refNodes:   make(map[NodeID]bool),
		openLocks:  make(map[LockHandle]bool),
	}
}

// Kernel drives the call-frame stack, node lifetime, substate locking
// and module hooks for a single transaction (spec §4). It is the
// lowest layer addressable only through the System service above it;
// nothing outside this package calls Kernel methods directly from
// blueprint code.
type Kernel struct {
	track        *Track
	allocator    *NodeIDAllocator
	frames       []*CallFrame
	maxCallDepth int
	modules      []KernelModule
	globalNodes  map[NodeID]bool // nodes that have been globalized, visible from any frame
}

// KernelModule is the uniform hook surface every cross-cutting concern
// (costing, auth, transaction limits, execution trace, events,
// logging) implements, run in registration order around each
// invocation and substate/node/event lifecycle point (spec §4.4).
type KernelModule interface {
	Name() string
	OnInit(k *Kernel) error
	OnTeardown(k *Kernel) error
	BeforeInvoke(k *Kernel, actor Actor) error
	AfterInvoke(k *Kernel, actor Actor) error
	OnAllocateNodeID(k *Kernel, id NodeID) error
	OnCreateNode(k *Kernel, id NodeID) error
	OnDropNode(k *Kernel, id NodeID) error
	OnOpenSubstate(k *Kernel, bytes int) error
	OnCloseSubstate(k *Kernel, bytes int) error
	OnConsumeCostUnits(k *Kernel, units uint64) error
	OnWasmInstantiate(k *Kernel, codeLen int) error
	OnEmitEvent(k *Kernel, ev Event) error
	OnEmitLog(k *Kernel, entry LogEntry) error
}

// NewKernel creates a kernel rooted at the transaction-processor frame.
func NewKernel(backing store.SubstateStore, txHash [32]byte, maxCallDepth int, modules ...KernelModule) *Kernel {
	k := &Kernel{
		track:        NewTrack(backing),
		allocator:    NewNodeIDAllocator(txHash),
		maxCallDepth: maxCallDepth,
		modules:      modules,
		globalNodes:  make(map[NodeID]bool),
	}
	root := newCallFrame(0, Actor{IsRoot: true})
	k.frames = append(k.frames, root)
	for _, m := range k.modules {
		_ = m.OnInit(k)
	}
	return k
}

// Teardown runs every module's OnTeardown hook, called once the
// transaction processor is done with this kernel regardless of
// commit/abort outcome (spec §4.4).
func (k *Kernel) Teardown() {
	for _, m := range k.modules {
		_ = m.OnTeardown(k)
	}
}

func (k *Kernel) currentFrame() *CallFrame { return k.frames[len(k.frames)-1] }

// Depth reports the current call-frame depth (0 = root).
func (k *Kernel) Depth() int { return len(k.frames) - 1 }

// SetMode switches the current frame's mode, used by System/AuthModule
// to bracket the sections of an invocation where their own privileged
// APIs are legal.
func (k *Kernel) SetMode(m KernelMode) { k.currentFrame().mode = m }
func (k *Kernel) Mode() KernelMode     { return k.currentFrame().mode }

// Invoke runs the kernel's eight-step invocation protocol (spec §4.3):
//  1. check the new depth against maxCallDepth (the callee's
//     blueprint is resolved beforehand by System.CallMethod/CallFunction)
//  2. run BeforeInvoke on every module (costing, auth, limits, trace)
//  3. push a new call frame
//  4. pass argument nodes from the caller frame to the callee frame
//  5. run the callee function via invoke
//  6. pass returned owned nodes back to the caller frame
//  7. pop the call frame, checking for dangling nodes
//  8. run AfterInvoke on every module
func (k *Kernel) Invoke(actor Actor, argNodes []NodeID, fn func(*Kernel) (interface{}, []NodeID, error)) (interface{}, error) {
	if k.Depth()+1 > k.maxCallDepth {
		return nil, utils.Kernel("MaxCallDepthExceeded", "call stack exceeded the configured depth limit")
	}
	for _, m := range k.modules {
		if err := m.BeforeInvoke(k, actor); err != nil {
			return nil, err
		}
	}

	caller := k.currentFrame()
	frame := newCallFrame(k.Depth()+1, actor)
	for _, n := range argNodes {
		if !caller.ownedNodes[n] && !k.globalNodes[n] && !caller.refNodes[n] {
			return nil, utils.Kernel("NodeNotVisible", "argument node not visible in caller frame")
		}
		if caller.ownedNodes[n] {
			delete(caller.ownedNodes, n)
			frame.ownedNodes[n] = true
		} else {
			frame.refNodes[n] = true
		}
	}
	k.frames = append(k.frames, frame)

	result, returnedNodes, err := fn(k)

	if closeErr := k.popFrame(caller, returnedNodes); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		for _, m := range k.modules {
			_ = m.AfterInvoke(k, actor)
		}
		return nil, err
	}
	for _, m := range k.modules {
		if aerr := m.AfterInvoke(k, actor); aerr != nil {
			return nil, aerr
		}
	}
	return result, nil
}

// popFrame passes returnedNodes (moved out of the callee, typically
// buckets/proofs handed back to the caller) up to the caller frame,
// pops the callee frame and fails if any node it still owns was
// neither globalized nor returned (spec §4.3 dangling-node rule).
func (k *Kernel) popFrame(caller *CallFrame, returnedNodes []NodeID) error {
	frame := k.currentFrame()
	k.frames = k.frames[:len(k.frames)-1]
	for _, n := range returnedNodes {
		if !frame.ownedNodes[n] {
			return utils.Kernel("NodeNotVisible", "returned node not owned by callee frame")
		}
		delete(frame.ownedNodes, n)
		caller.ownedNodes[n] = true
	}
	for n := range frame.ownedNodes {
		if !k.globalNodes[n] {
			return utils.Kernel("DanglingNode", "node "+n.Hex()+" dropped out of scope without being consumed")
		}
	}
	if len(frame.openLocks) != 0 {
		return utils.Kernel("LockNotDropped", "call frame exited with open substate locks")
	}
	return nil
}

// AllocateNodeID reserves the next deterministic id for a node created
// in the current frame.
func (k *Kernel) AllocateNodeID(entityType EntityType) NodeID {
	id := k.allocator.Allocate(entityType)
	for _, m := range k.modules {
		_ = m.OnAllocateNodeID(k, id)
	}
	return id
}

// CreateNode registers id as owned by the current frame and writes its
// initial substates. It does not make the node globally visible; that
// happens only via GlobalizeNode.
func (k *Kernel) CreateNode(id NodeID, initial map[PartitionNumber]map[string][]byte) error {
	frame := k.currentFrame()
	frame.ownedNodes[id] = true
	for partition, entries := range initial {
		for keyBytes, value := range entries {
			key := store.Key{Kind: store.KeyKindMap, Bytes: []byte(keyBytes)}
			handle, err := k.track.AcquireLock(id, partition, key, LockMutable, func() []byte { return nil })
			if err != nil {
				return err
			}
			if err := k.track.WriteSubstate(handle, value); err != nil {
				return err
			}
			if err := k.track.DropLock(handle); err != nil {
				return err
			}
		}
	}
	for _, m := range k.modules {
		if err := m.OnCreateNode(k, id); err != nil {
			return err
		}
	}
	return nil
}

// DropNode removes id from the current frame's ownership, used when a
// node's content is fully consumed (e.g. a bucket burned to zero, a
// proof dropped after use).
func (k *Kernel) DropNode(id NodeID) error {
	frame := k.currentFrame()
	if !frame.ownedNodes[id] {
		return utils.Kernel("NodeNotVisible", "drop_node on a node not owned by current frame")
	}
	delete(frame.ownedNodes, id)
	for _, m := range k.modules {
		if err := m.OnDropNode(k, id); err != nil {
			return err
		}
	}
	return nil
}

// GlobalizeNode promotes an owned node to global visibility, installing
// the three canonical modules (metadata, royalty, role-assignment) as
// sibling partitions on the same node id (spec §3, §4.3).
func (k *Kernel) GlobalizeNode(id NodeID) error {
	frame := k.currentFrame()
	if !frame.ownedNodes[id] {
		return utils.Kernel("NodeNotVisible", "globalize_node on a node not owned by current frame")
	}
	if !id.IsGlobal() {
		return utils.Kernel("InvalidGlobalAddress", "node entity type is not a global category")
	}
	delete(frame.ownedNodes, id)
	k.globalNodes[id] = true
	return nil
}

// Track exposes the transactional substate overlay to the System
// layer. Blueprint code never reaches this directly.
func (k *Kernel) Track() *Track { return k.track }

// DispatchEmitEvent/DispatchEmitLog/DispatchConsumeCostUnits/
// DispatchWasmInstantiate run the corresponding module hook across the
// full module stack, used by the System layer so that emitting an
// event or log line, charging cost units directly, or instantiating a
// WASM module all flow through every registered module exactly like
// every other kernel operation (spec §4.4).
func (k *Kernel) DispatchEmitEvent(ev Event) error {
	for _, m := range k.modules {
		if err := m.OnEmitEvent(k, ev); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) DispatchEmitLog(entry LogEntry) error {
	for _, m := range k.modules {
		if err := m.OnEmitLog(k, entry); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) DispatchConsumeCostUnits(units uint64) error {
	for _, m := range k.modules {
		if err := m.OnConsumeCostUnits(k, units); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) DispatchWasmInstantiate(codeLen int) error {
	for _, m := range k.modules {
		if err := m.OnWasmInstantiate(k, codeLen); err != nil {
			return err
		}
	}
	return nil
}

// Finish commits or aborts the underlying track depending on whether
// the transaction succeeded, and is the last step of transaction
// processing (spec §4.2, §4.3, §8): commit-or-abort is total, with the
// sole exception of FORCE_WRITE substates which the track itself
// already carries through Abort.
func (k *Kernel) Finish(success bool) error {
	if success {
		return k.track.Commit()
	}
	return k.track.Abort()
}

// txHashChecksum is a helper used by callers that need a deterministic
// transaction id derived from manifest bytes (spec §7).
func txHashChecksum(manifestBytes []byte) [32]byte {
	return sha256.Sum256(manifestBytes)
}
