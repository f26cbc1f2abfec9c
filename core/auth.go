package core

// virtualResourcePackageOfDirectCaller and virtualResourceGlobalCaller
// are reserved ResourceAddress values (their EntityType byte falls
// outside the valid global-entity range of types.go) standing for the
// two implicit badges every invocation carries about its immediate
// caller, without any backing resource manager (spec §3 SUPPLEMENTED
// FEATURES, "package-of-direct-caller / global-caller virtual
// proofs").
var virtualResourcePackageOfDirectCaller = virtualResourceAddress(0xFE)
var virtualResourceGlobalCaller = virtualResourceAddress(0xFF)

func virtualResourceAddress(tag byte) ResourceAddress {
	var id NodeID
	id[0] = tag
	return id
}

// RequirePackageOfDirectCaller builds a Require rule satisfied only
// when the immediate caller's package address is pkg.
func RequirePackageOfDirectCaller(pkg NodeID) Require {
	id := NonFungibleLocalID("#" + pkg.Hex() + "#")
	return Require{Target: ResourceOrNonFungible{Resource: virtualResourcePackageOfDirectCaller, LocalID: &id}}
}

// RequireGlobalCaller builds a Require rule satisfied only when the
// immediate caller's global object address is obj.
func RequireGlobalCaller(obj NodeID) Require {
	id := NonFungibleLocalID("#" + obj.Hex() + "#")
	return Require{Target: ResourceOrNonFungible{Resource: virtualResourceGlobalCaller, LocalID: &id}}
}

// ResourceOrNonFungible identifies what a proof rule demands evidence
// of: either any amount of a fungible/non-fungible resource, or one
// specific non-fungible unit (spec §5, "Auth algebra").
type ResourceOrNonFungible struct {
	Resource ResourceAddress
	LocalID  *NonFungibleLocalID // nil means "any unit of Resource"
}

// ProofRule is the leaf-level predicate an AccessRule evaluates
// against the auth-zone stack.
type ProofRule interface {
	evaluate(zones []*AuthZone) bool
}

// Require is satisfied if any proof (real or virtual) in scope
// evidences target.
type Require struct{ Target ResourceOrNonFungible }

func (r Require) evaluate(zones []*AuthZone) bool {
	for _, z := range zones {
		if r.Target.LocalID != nil {
			if z.HasNonFungible(r.Target.Resource, *r.Target.LocalID) {
				return true
			}
			continue
		}
		if z.AmountOf(r.Target.Resource).Cmp(NewDecimalFromInt64(0)) > 0 {
			return true
		}
	}
	return false
}

// AmountOf is satisfied if the cumulative fungible evidence across
// scope reaches the required amount.
type AmountOf struct {
	Resource ResourceAddress
	Amount   Decimal
}

func (r AmountOf) evaluate(zones []*AuthZone) bool {
	total := DecimalZero()
	for _, z := range zones {
		total = total.Add(z.AmountOf(r.Resource))
	}
	return total.Cmp(r.Amount) >= 0
}

// AllOf is satisfied only if every sub-rule is satisfied.
type AllOf struct{ Rules []ProofRule }

func (r AllOf) evaluate(zones []*AuthZone) bool {
	for _, sub := range r.Rules {
		if !sub.evaluate(zones) {
			return false
		}
	}
	return true
}

// AnyOf is satisfied if at least one sub-rule is satisfied.
type AnyOf struct{ Rules []ProofRule }

func (r AnyOf) evaluate(zones []*AuthZone) bool {
	for _, sub := range r.Rules {
		if sub.evaluate(zones) {
			return true
		}
	}
	return false
}

// CountOf is satisfied if at least Count of the listed targets are
// evidenced, useful for "2 of 3 signers" style rules.
type CountOf struct {
	Count   int
	Targets []ResourceOrNonFungible
}

func (r CountOf) evaluate(zones []*AuthZone) bool {
	matched := 0
	for _, t := range r.Targets {
		if (Require{Target: t}).evaluate(zones) {
			matched++
		}
	}
	return matched >= r.Count
}

// AccessRule is the top-level decision a role carries (spec §5): it
// either never requires evidence, always fails, or defers to a
// ProofRule evaluated against the auth zone stack.
type AccessRule struct {
	kind int // 0=AllowAll 1=DenyAll 2=Protected
	rule ProofRule
}

func AllowAll() AccessRule                { return AccessRule{kind: 0} }
func DenyAll() AccessRule                 { return AccessRule{kind: 1} }
func Protected(rule ProofRule) AccessRule { return AccessRule{kind: 2, rule: rule} }

// EvaluateAccessRule walks the auth-zone stack from the current frame
// outward, stopping at (but including) the first barrier zone: a
// barrier-crossing evaluation counts evidence from every zone up to
// and including the boundary, then stops, matching the "barrier
// crosses count toward auth but do not propagate trust further"
// semantics noted in spec §5 (spec §3 SUPPLEMENTED FEATURES).
func EvaluateAccessRule(rule AccessRule, zoneStack []*AuthZone) bool {
	switch rule.kind {
	case 0:
		return true
	case 1:
		return false
	default:
		scope := barrierScopedZones(zoneStack)
		return rule.rule.evaluate(scope)
	}
}

// barrierScopedZones walks zoneStack from the innermost (last) zone
// outward, including zones up to and including the first barrier.
func barrierScopedZones(zoneStack []*AuthZone) []*AuthZone {
	var scope []*AuthZone
	for i := len(zoneStack) - 1; i >= 0; i-- {
		scope = append(scope, zoneStack[i])
		if zoneStack[i].IsBarrier() {
			break
		}
	}
	return scope
}
