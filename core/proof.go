package core

// Proof is a non-custodial, cloneable evidence of resource ownership
// used to satisfy access rules without transferring the underlying
// resource (spec §5). Proofs are reference-counted: cloning increases
// the count, dropping decreases it, and the source vault/bucket is
// unaffected either way, except for proofs minted against a vault's
// locked-amount bookkeeping (LockedVault), whose lock is released once
// the last clone is dropped.
type Proof struct {
	ID        NodeID
	Source    NodeID // the vault/bucket this proof was minted from
	Container ResourceContainer
	refCount  *int
	Virtual   bool // virtual proofs (e.g. signature-derived badges) have no Source

	// LockedVault/LockedAmount are set when this proof was minted by
	// Vault.CreateProofOfAmount: the vault incremented its locked
	// amount by LockedAmount, and that increment must be undone once every
	// clone of this proof has been dropped.
	LockedVault  *Vault
	LockedAmount Decimal
}

func (p *Proof) Resource() ResourceAddress { return p.Container.Resource }
func (p *Proof) Amount() Decimal {
	if !p.Container.IsFungible {
		return DecimalZero()
	}
	return p.Container.Amount
}

// Clone increases the proof's reference count and returns the same
// logical proof; the kernel treats the clone as a distinct NodeId
// backed by the same evidence. Clones share the original's reference
// counter so a vault lock held by the source proof is released only
// once every clone has been dropped.
func (p *Proof) Clone(cloneID NodeID) *Proof {
	if p.refCount == nil {
		one := 1
		p.refCount = &one
	}
	*p.refCount++
	return &Proof{
		ID:           cloneID,
		Source:       p.Source,
		Container:    p.Container,
		Virtual:      p.Virtual,
		refCount:     p.refCount,
		LockedVault:  p.LockedVault,
		LockedAmount: p.LockedAmount,
	}
}

// Release drops one reference to the proof. Once the last reference is
// gone, a vault-backed lock (if any) is released back to the vault's
// available balance.
func (p *Proof) Release() {
	if p.refCount == nil {
		if p.LockedVault != nil {
			p.LockedVault.releaseLock(p.LockedAmount)
		}
		return
	}
	*p.refCount--
	if *p.refCount <= 0 && p.LockedVault != nil {
		p.LockedVault.releaseLock(p.LockedAmount)
	}
}

// NewVirtualProof mints a proof not backed by any vault/bucket, used
// for signature-derived non-fungible badges injected into the auth
// zone at transaction start (spec §3 SUPPLEMENTED FEATURES, virtual
// proof sources).
func NewVirtualProof(id NodeID, resource ResourceAddress, localID NonFungibleLocalID) *Proof {
	return &Proof{
		ID:        id,
		Container: NewNonFungibleContainer(resource, localID),
		Virtual:   true,
	}
}
