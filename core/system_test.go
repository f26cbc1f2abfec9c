package core

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-network/corevm/sbor"
	"github.com/synnergy-network/corevm/store"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	costing := NewCostingModule(NewDecimalFromInt64(0), 1_000_000)
	limits := NewTransactionLimitModule(1<<20, 1<<20, 1024)
	logger := NewLoggerModule(logrus.NewEntry(logrus.New()))
	return NewSystem(store.NewMemStore(), [32]byte{7}, 16, costing, limits, logger)
}

func TestSystemPublishAndCallFunction(t *testing.T) {
	s := newTestSystem(t)
	schema := BlueprintSchema{
		Name:             "Counter",
		FieldNames:       []string{"value"},
		FieldTypes:       map[string]sbor.TypeSchema{"value": {Kind: sbor.TypeU64}},
		Functions:        []string{"instantiate"},
		MethodVisibility: map[string]MethodVisibility{"instantiate": VisibilityPublic},
	}
	err := s.Packages().PublishNative(schema, nil, map[string]FunctionFn{
		"instantiate": func(sys *System, args []byte, argNodes []NodeID) (interface{}, []NodeID, error) {
			id, err := sys.NewObject(EntityGlobalGenericComponent, map[PartitionNumber]map[string][]byte{
				PartitionMainState: {"value": []byte("0")},
			})
			if err != nil {
				return nil, nil, err
			}
			if err := sys.Globalize(id, NewRoleAssignment(), NewMetadataModule(), NewRoyaltyModule()); err != nil {
				return nil, nil, err
			}
			return id, nil, nil
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	result, err := s.CallFunction("Counter", "instantiate", nil, nil)
	if err != nil {
		t.Fatalf("call function: %v", err)
	}
	if _, ok := result.(NodeID); !ok {
		t.Fatalf("expected NodeID result, got %T", result)
	}
	if err := s.Finish(true); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestLockFieldRejectsSchemaMismatchedWrite(t *testing.T) {
	s := newTestSystem(t)
	schema := BlueprintSchema{
		Name:             "Gauge",
		FieldNames:       []string{"value"},
		FieldTypes:       map[string]sbor.TypeSchema{"value": {Kind: sbor.TypeU64}},
		Functions:        []string{"instantiate"},
		MethodVisibility: map[string]MethodVisibility{"instantiate": VisibilityPublic},
	}
	if err := s.Packages().PublishNative(schema, nil, map[string]FunctionFn{
		"instantiate": func(sys *System, args []byte, argNodes []NodeID) (interface{}, []NodeID, error) {
			return nil, nil, nil
		},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	id, err := s.NewObject(EntityGlobalGenericComponent, nil)
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	s.Packages().SetObjectBlueprint(id, "Gauge")

	handle, err := s.LockField(id, "value", LockMutable)
	if err != nil {
		t.Fatalf("lock field: %v", err)
	}
	encoded, err := sbor.Encode(sbor.Value{Kind: sbor.TypeU64, U64: 42})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := s.WriteField(handle, encoded); err != nil {
		t.Fatalf("expected schema-matching write to succeed: %v", err)
	}

	if err := s.WriteField(handle, []byte("not valid sbor")); err == nil {
		t.Fatalf("expected schema-mismatched write to be rejected")
	}

	if _, err := s.LockField(id, "missing", LockMutable); err == nil {
		t.Fatalf("expected lock on undeclared field to fail")
	}
}

func TestCallMethodEnforcesVisibility(t *testing.T) {
	s := newTestSystem(t)
	schema := BlueprintSchema{
		Name:       "Safe",
		Functions:  []string{"instantiate"},
		Methods:    []string{"internal_only", "nested_only"},
		AuthConfig: map[string]AccessRule{},
		MethodVisibility: map[string]MethodVisibility{
			"instantiate":   VisibilityPublic,
			"internal_only": VisibilityOwnPackageOnly,
			"nested_only":   VisibilityOuterObjectOnly,
		},
	}
	called := false
	err := s.Packages().PublishNative(schema, map[string]MethodFn{
		"internal_only": func(sys *System, object NodeID, args []byte, argNodes []NodeID) (interface{}, []NodeID, error) {
			called = true
			return nil, nil, nil
		},
		"nested_only": func(sys *System, object NodeID, args []byte, argNodes []NodeID) (interface{}, []NodeID, error) {
			called = true
			return nil, nil, nil
		},
	}, map[string]FunctionFn{
		"instantiate": func(sys *System, args []byte, argNodes []NodeID) (interface{}, []NodeID, error) {
			return nil, nil, nil
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	id, err := s.NewObject(EntityGlobalGenericComponent, nil)
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	if err := s.Globalize(id, NewRoleAssignment(), NewMetadataModule(), NewRoyaltyModule()); err != nil {
		t.Fatalf("globalize: %v", err)
	}
	s.Packages().SetObjectBlueprint(id, "Safe")

	if _, err := s.CallMethod(id, "Safe", "internal_only", nil, nil); err == nil {
		t.Fatalf("expected OwnPackageOnly method to reject a root-transaction caller")
	}
	if called {
		t.Fatalf("method body ran despite failed visibility check")
	}

	if _, err := s.CallMethod(id, "Safe", "nested_only", nil, nil); err == nil {
		t.Fatalf("expected OuterObjectOnly method to reject a caller that is not the recorded outer object")
	}

	outer := s.Kernel().AllocateNodeID(EntityGlobalGenericComponent)
	if err := s.Kernel().CreateNode(outer, nil); err != nil {
		t.Fatalf("create outer: %v", err)
	}
	if err := s.Kernel().GlobalizeNode(outer); err != nil {
		t.Fatalf("globalize outer: %v", err)
	}
	s.SetOuterObject(id, outer)
	actor := Actor{BlueprintName: "Outer", ObjectID: &outer}
	if _, err := s.Kernel().Invoke(actor, nil, func(k *Kernel) (interface{}, []NodeID, error) {
		result, err := s.CallMethod(id, "Safe", "nested_only", nil, nil)
		return result, nil, err
	}); err != nil {
		t.Fatalf("expected OuterObjectOnly method to accept its recorded outer object: %v", err)
	}
	if !called {
		t.Fatalf("expected nested_only to run once invoked by its outer object")
	}
}

func TestSystemDuplicatePublishRejected(t *testing.T) {
	s := newTestSystem(t)
	schema := BlueprintSchema{Name: "Dup"}
	if err := s.Packages().PublishNative(schema, nil, nil); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := s.Packages().PublishNative(schema, nil, nil); err == nil {
		t.Fatalf("expected PackageAlreadyExists on duplicate publish")
	}
}

func TestClaimRoyaltiesRequiresRole(t *testing.T) {
	s := newTestSystem(t)
	id := s.Kernel().AllocateNodeID(EntityGlobalGenericComponent)
	if err := s.Kernel().CreateNode(id, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	roles := NewRoleAssignment()
	badge := mkResourceAddr(3)
	localID := NonFungibleLocalID("#1#")
	roles.SetRule("royalty_claimer", Protected(Require{Target: ResourceOrNonFungible{Resource: badge, LocalID: &localID}}), "royalty_claimer")
	royalty := NewRoyaltyModule()
	royalty.Accrue(NewDecimalFromInt64(5))
	if err := s.Globalize(id, roles, NewMetadataModule(), royalty); err != nil {
		t.Fatalf("globalize: %v", err)
	}

	if _, err := s.Packages().ClaimRoyalties(id, nil); err == nil {
		t.Fatalf("expected claim without evidence to be denied")
	}

	zone := NewAuthZone()
	zone.AddVirtualProofSource(badge, localID)
	amount, err := s.Packages().ClaimRoyalties(id, []*AuthZone{zone})
	if err != nil {
		t.Fatalf("expected claim with evidence to succeed: %v", err)
	}
	if amount.Cmp(NewDecimalFromInt64(5)) != 0 {
		t.Fatalf("expected claimed amount 5, got %s", amount)
	}
}
