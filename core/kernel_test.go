package core

import (
	"testing"

	"github.com/synnergy-network/corevm/store"
)

func TestKernelCreateAndGlobalizeNode(t *testing.T) {
	k := NewKernel(store.NewMemStore(), [32]byte{1}, 8)
	id := k.AllocateNodeID(EntityGlobalAccount)
	if err := k.CreateNode(id, map[PartitionNumber]map[string][]byte{
		PartitionMainState: {"balance": []byte("0")},
	}); err != nil {
		t.Fatalf("create node: %v", err)
	}
	if err := k.GlobalizeNode(id); err != nil {
		t.Fatalf("globalize: %v", err)
	}
	if !k.globalNodes[id] {
		t.Fatalf("expected node to be global")
	}
	if err := k.Finish(true); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestKernelDanglingNodeOnFrameExit(t *testing.T) {
	k := NewKernel(store.NewMemStore(), [32]byte{2}, 8)
	actor := Actor{BlueprintName: "Test"}
	_, err := k.Invoke(actor, nil, func(k *Kernel) (interface{}, []NodeID, error) {
		id := k.AllocateNodeID(EntityInternalGenericComponent)
		if err := k.CreateNode(id, nil); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil // id never returned nor globalized: dangling
	})
	if err == nil {
		t.Fatalf("expected dangling node error")
	}
}

func TestKernelMaxCallDepth(t *testing.T) {
	k := NewKernel(store.NewMemStore(), [32]byte{3}, 1)
	actor := Actor{BlueprintName: "Test"}
	var recurse func(depth int) error
	recurse = func(depth int) error {
		_, err := k.Invoke(actor, nil, func(k *Kernel) (interface{}, []NodeID, error) {
			if depth > 0 {
				return nil, nil, recurse(depth - 1)
			}
			return nil, nil, nil
		})
		return err
	}
	if err := recurse(3); err == nil {
		t.Fatalf("expected MaxCallDepthExceeded")
	}
}

func TestKernelArgumentNodeMustBeVisible(t *testing.T) {
	k := NewKernel(store.NewMemStore(), [32]byte{4}, 8)
	phantom := k.AllocateNodeID(EntityInternalGenericComponent)
	actor := Actor{BlueprintName: "Test"}
	_, err := k.Invoke(actor, []NodeID{phantom}, func(k *Kernel) (interface{}, []NodeID, error) {
		return nil, nil, nil
	})
	if err == nil {
		t.Fatalf("expected NodeNotVisible error for unowned argument node")
	}
}
