package core

import "testing"

func mkResourceAddr(b byte) ResourceAddress {
	var id NodeID
	id[0] = byte(EntityGlobalFungibleResource)
	id[1] = b
	return id
}

// allowAllRoles grants every mint/burn/update role unconditionally,
// used by tests that exercise resource mechanics without separately
// modeling authorization.
func allowAllRoles() *RoleAssignment {
	roles := NewRoleAssignment()
	roles.SetRule("Minter", AllowAll(), "")
	roles.SetRule("Burner", AllowAll(), "")
	roles.SetRule("NonFungibleDataUpdater", AllowAll(), "")
	return roles
}

func TestFungibleMintBurnVaultRoundTrip(t *testing.T) {
	addr := mkResourceAddr(1)
	mgr, err := NewFungibleResourceManager(addr, 18, FeatureMint|FeatureBurn, allowAllRoles())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	bucket, err := mgr.MintFungible(NodeID{2}, NewDecimalFromInt64(100), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if mgr.TotalSupply().Cmp(NewDecimalFromInt64(100)) != 0 {
		t.Fatalf("expected total supply 100, got %s", mgr.TotalSupply())
	}

	vault := NewVault(NodeID{3}, addr, true)
	if err := vault.Put(bucket); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !bucket.IsEmpty() {
		t.Fatalf("expected bucket drained after deposit")
	}

	withdrawn, err := vault.TakeAmount(NodeID{4}, NewDecimalFromInt64(40))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if vault.Amount().Cmp(NewDecimalFromInt64(60)) != 0 {
		t.Fatalf("expected vault balance 60, got %s", vault.Amount())
	}

	if err := mgr.BurnFungible(withdrawn, nil); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if mgr.TotalSupply().Cmp(NewDecimalFromInt64(60)) != 0 {
		t.Fatalf("expected total supply 60 after burn, got %s", mgr.TotalSupply())
	}
}

func TestMintWithoutFeatureRejected(t *testing.T) {
	addr := mkResourceAddr(11)
	mgr, err := NewFungibleResourceManager(addr, 18, 0, allowAllRoles())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.MintFungible(NodeID{12}, NewDecimalFromInt64(1), nil); err == nil {
		t.Fatalf("expected mint without Mint feature to fail")
	}
}

func TestMintWithoutMinterRoleRejected(t *testing.T) {
	addr := mkResourceAddr(13)
	mgr, err := NewFungibleResourceManager(addr, 18, FeatureMint, NewRoleAssignment())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.MintFungible(NodeID{14}, NewDecimalFromInt64(1), nil); err == nil {
		t.Fatalf("expected mint without Minter role to fail")
	}
}

func TestInvalidDivisibilityRejected(t *testing.T) {
	addr := mkResourceAddr(15)
	if _, err := NewFungibleResourceManager(addr, 19, 0, nil); err == nil {
		t.Fatalf("expected divisibility above 18 to be rejected")
	}
}

func TestNonFungibleTombstoneNeverReissued(t *testing.T) {
	var addr NodeID
	addr[0] = byte(EntityGlobalNonFungibleResource)
	mgr := NewNonFungibleResourceManager(addr, FeatureMint|FeatureBurn, allowAllRoles())

	bucket, err := mgr.MintNonFungible(NodeID{9}, map[NonFungibleLocalID][]byte{"#1#": []byte("data")}, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := mgr.BurnNonFungible(bucket, nil); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if mgr.TotalSupply().Cmp(DecimalZero()) != 0 {
		t.Fatalf("expected total supply 0 after burn, got %s", mgr.TotalSupply())
	}
	data, ok := mgr.DataOf("#1#")
	if !ok || !data.Tombstoned {
		t.Fatalf("expected tombstoned record, got %+v ok=%v", data, ok)
	}
	if _, err := mgr.MintNonFungible(NodeID{10}, map[NonFungibleLocalID][]byte{"#1#": []byte("data2")}, nil); err == nil {
		t.Fatalf("expected re-mint of a tombstoned id to fail")
	}
}

func TestInsufficientBalanceRejected(t *testing.T) {
	addr := mkResourceAddr(5)
	vault := NewVault(NodeID{6}, addr, true)
	if _, err := vault.TakeAmount(NodeID{7}, NewDecimalFromInt64(1)); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
}

func TestAccessRuleEvaluation(t *testing.T) {
	badge := mkResourceAddr(8)
	zone := NewAuthZone()
	id := NonFungibleLocalID("#1#")
	zone.AddVirtualProofSource(badge, id)

	rule := Protected(Require{Target: ResourceOrNonFungible{Resource: badge, LocalID: &id}})
	if !EvaluateAccessRule(rule, []*AuthZone{zone}) {
		t.Fatalf("expected virtual proof source to satisfy Require rule")
	}

	other := NonFungibleLocalID("#2#")
	ruleOther := Protected(Require{Target: ResourceOrNonFungible{Resource: badge, LocalID: &other}})
	if EvaluateAccessRule(ruleOther, []*AuthZone{zone}) {
		t.Fatalf("expected rule for an absent id to fail")
	}

	if EvaluateAccessRule(DenyAll(), []*AuthZone{zone}) {
		t.Fatalf("DenyAll must never pass")
	}
	if !EvaluateAccessRule(AllowAll(), nil) {
		t.Fatalf("AllowAll must always pass")
	}
}

func TestBarrierStopsEvaluationScope(t *testing.T) {
	badge := mkResourceAddr(9)
	id := NonFungibleLocalID("#1#")

	outer := NewAuthZone()
	outer.AddVirtualProofSource(badge, id)
	inner := NewAuthZone()
	inner.SetBarrier(true)

	rule := Protected(Require{Target: ResourceOrNonFungible{Resource: badge, LocalID: &id}})
	// inner is a barrier and holds no evidence itself; evaluation must
	// stop at it and not see outer's virtual proof source.
	if EvaluateAccessRule(rule, []*AuthZone{outer, inner}) {
		t.Fatalf("expected barrier zone to block visibility into outer zone")
	}
}
