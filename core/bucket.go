package core

import "github.com/synnergy-network/corevm/pkg/utils"

// Bucket is a transient resource container passed between
// invocations (spec §5). A bucket must be either deposited into a
// vault, returned from the frame that created it, or fully emptied
// and dropped before its owning call frame exits; otherwise the
// kernel's dangling-node check rejects the transaction.
type Bucket struct {
	ID        NodeID
	Container ResourceContainer
}

func NewEmptyBucket(id NodeID, resource ResourceAddress, fungible bool) *Bucket {
	c := ResourceContainer{Resource: resource, IsFungible: fungible}
	if !fungible {
		c.NonFungibles = make(map[NonFungibleLocalID]bool)
	}
	return &Bucket{ID: id, Container: c}
}

func (b *Bucket) Put(other *Bucket) error {
	return b.Container.Put(other.Container)
}

func (b *Bucket) TakeAmount(newID NodeID, amount Decimal) (*Bucket, error) {
	c, err := b.Container.TakeAmount(amount)
	if err != nil {
		return nil, err
	}
	return &Bucket{ID: newID, Container: c}, nil
}

func (b *Bucket) TakeNonFungibles(newID NodeID, ids []NonFungibleLocalID) (*Bucket, error) {
	c, err := b.Container.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{ID: newID, Container: c}, nil
}

func (b *Bucket) Amount() Decimal {
	if !b.Container.IsFungible {
		return DecimalZero()
	}
	return b.Container.Amount
}

func (b *Bucket) IsEmpty() bool { return b.Container.IsEmpty() }

// CreateProof mints a reference-only proof of the bucket's current
// contents without removing them.
func (b *Bucket) CreateProof(proofID NodeID) (*Proof, error) {
	if b.Container.IsEmpty() {
		return nil, utils.Application("EmptyBucket", "cannot create a proof of an empty bucket")
	}
	return &Proof{ID: proofID, Source: b.ID, Container: b.Container}, nil
}

// CreateProofOfAmount mints a reference-only proof over a sub-amount of
// the bucket's current fungible balance, without removing it from the
// bucket.
func (b *Bucket) CreateProofOfAmount(proofID NodeID, amount Decimal) (*Proof, error) {
	if !b.Container.IsFungible {
		return nil, utils.Application("NotFungible", "amount-based proof on a non-fungible bucket")
	}
	if amount.IsNegative() || amount.Cmp(b.Container.Amount) > 0 {
		return nil, utils.Application("InsufficientBalance", "proof amount exceeds bucket balance")
	}
	return &Proof{ID: proofID, Source: b.ID, Container: NewFungibleContainer(b.Container.Resource, amount)}, nil
}
