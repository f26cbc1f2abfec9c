package core

// AuthZone holds the stack of proofs available for access-rule
// evaluation within one call frame, plus any virtual proof sources
// injected from the transaction's signer set (spec §3 SUPPLEMENTED
// FEATURES; spec §5 "Auth algebra"). A barrier zone stops proof
// visibility from crossing into a less-trusted callee, mirroring the
// teacher's access-control layer isolating role checks per contract
// call.
type AuthZone struct {
	proofs       []*Proof
	virtualProof map[ResourceAddress]map[NonFungibleLocalID]bool
	barrier      bool
}

func NewAuthZone() *AuthZone {
	return &AuthZone{virtualProof: make(map[ResourceAddress]map[NonFungibleLocalID]bool)}
}

// SetBarrier marks this zone as a trust boundary: proof rules
// evaluated from a deeper frame may not reach past it into parent
// zones (spec §5).
func (z *AuthZone) SetBarrier(b bool) { z.barrier = b }
func (z *AuthZone) IsBarrier() bool   { return z.barrier }

func (z *AuthZone) PushProof(p *Proof) { z.proofs = append(z.proofs, p) }

func (z *AuthZone) PopProof() *Proof {
	if len(z.proofs) == 0 {
		return nil
	}
	p := z.proofs[len(z.proofs)-1]
	z.proofs = z.proofs[:len(z.proofs)-1]
	return p
}

func (z *AuthZone) Proofs() []*Proof { return z.proofs }

// AddVirtualProofSource injects a signature-derived virtual badge
// (e.g. the NonFungibleGlobalId of a signing key) available for the
// duration of the transaction without any backing vault.
func (z *AuthZone) AddVirtualProofSource(resource ResourceAddress, localID NonFungibleLocalID) {
	set, ok := z.virtualProof[resource]
	if !ok {
		set = make(map[NonFungibleLocalID]bool)
		z.virtualProof[resource] = set
	}
	set[localID] = true
}

// HasVirtual reports whether localID is present among the zone's
// virtual proof sources for resource.
func (z *AuthZone) HasVirtual(resource ResourceAddress, localID NonFungibleLocalID) bool {
	set, ok := z.virtualProof[resource]
	return ok && set[localID]
}

// AmountOf sums the fungible evidence this zone can present for
// resource, across both real proofs and virtual sources (virtual
// sources count as 1 unit each, matching a non-fungible badge).
func (z *AuthZone) AmountOf(resource ResourceAddress) Decimal {
	total := DecimalZero()
	for _, p := range z.proofs {
		if p.Resource() == resource {
			if p.Container.IsFungible {
				total = total.Add(p.Amount())
			} else {
				total = total.Add(NewDecimalFromInt64(int64(len(p.Container.NonFungibles))))
			}
		}
	}
	if set, ok := z.virtualProof[resource]; ok {
		total = total.Add(NewDecimalFromInt64(int64(len(set))))
	}
	return total
}

// HasNonFungible reports whether the zone can present localID of
// resource, from either a real proof or a virtual source.
func (z *AuthZone) HasNonFungible(resource ResourceAddress, localID NonFungibleLocalID) bool {
	if z.HasVirtual(resource, localID) {
		return true
	}
	for _, p := range z.proofs {
		if p.Resource() == resource && !p.Container.IsFungible && p.Container.NonFungibles[localID] {
			return true
		}
	}
	return false
}
