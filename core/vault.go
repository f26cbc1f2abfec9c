package core

import "github.com/synnergy-network/corevm/pkg/utils"

// Vault is the internal node that permanently holds a resource as part
// of an object's state (spec §5), e.g. an account's balance or a
// component's treasury. Unlike a bucket it cannot be returned from an
// invocation; it is only ever referenced by NodeId from its owner.
//
// locked tracks the portion of Container.Amount currently pledged to
// outstanding Proof objects minted via CreateProofOfAmount; it can
// never be withdrawn until released. Fee locks (CostingModule.LockFee)
// debit Container.Amount directly and do not touch locked. frozen
// mirrors the resource manager's VaultFreeze feature: while true, the
// vault rejects ordinary withdrawals and only a privileged Recall can
// still empty it.
type Vault struct {
	ID        NodeID
	Container ResourceContainer
	locked    Decimal
	frozen    bool
}

func NewVault(id NodeID, resource ResourceAddress, fungible bool) *Vault {
	c := ResourceContainer{Resource: resource, IsFungible: fungible}
	if !fungible {
		c.NonFungibles = make(map[NonFungibleLocalID]bool)
	}
	return &Vault{ID: id, Container: c, locked: DecimalZero()}
}

// Put deposits a bucket's contents into the vault, consuming the
// bucket (spec §5: deposit is the only legal way to destroy a bucket
// outside of returning it empty).
func (v *Vault) Put(b *Bucket) error {
	if err := v.Container.Put(b.Container); err != nil {
		return err
	}
	b.Container = ResourceContainer{Resource: b.Container.Resource, IsFungible: b.Container.IsFungible}
	return nil
}

func (v *Vault) available() Decimal {
	avail := v.Container.Amount.Sub(v.locked)
	if avail.IsNegative() {
		return DecimalZero()
	}
	return avail
}

// TakeAmount withdraws amount into a newly created bucket. Frozen
// vaults and amounts that would dip into the locked portion of the
// balance are both rejected.
func (v *Vault) TakeAmount(bucketID NodeID, amount Decimal) (*Bucket, error) {
	if v.frozen {
		return nil, utils.Application("VaultFrozen", "vault is frozen and cannot be withdrawn from")
	}
	if v.Container.IsFungible && amount.Cmp(v.available()) > 0 {
		return nil, utils.Application("InsufficientBalance", "withdrawal exceeds unlocked available amount")
	}
	c, err := v.Container.TakeAmount(amount)
	if err != nil {
		return nil, err
	}
	return &Bucket{ID: bucketID, Container: c}, nil
}

// TakeNonFungibles withdraws specific ids into a newly created bucket.
func (v *Vault) TakeNonFungibles(bucketID NodeID, ids []NonFungibleLocalID) (*Bucket, error) {
	if v.frozen {
		return nil, utils.Application("VaultFrozen", "vault is frozen and cannot be withdrawn from")
	}
	c, err := v.Container.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{ID: bucketID, Container: c}, nil
}

// TakeAll withdraws the vault's entire balance into a new bucket,
// leaving the vault empty.
func (v *Vault) TakeAll(bucketID NodeID) (*Bucket, error) {
	if v.Container.IsFungible {
		return v.TakeAmount(bucketID, v.available())
	}
	if v.frozen {
		return nil, utils.Application("VaultFrozen", "vault is frozen and cannot be withdrawn from")
	}
	ids := make([]NonFungibleLocalID, 0, len(v.Container.NonFungibles))
	for id := range v.Container.NonFungibles {
		ids = append(ids, id)
	}
	return v.TakeNonFungibles(bucketID, ids)
}

// Amount reports the vault's current balance (fungible only).
func (v *Vault) Amount() Decimal {
	if !v.Container.IsFungible {
		return DecimalZero()
	}
	return v.Container.Amount
}

// LockedAmount reports the portion of the balance currently pledged to
// outstanding proofs of amount.
func (v *Vault) LockedAmount() Decimal { return v.locked }

// CreateProof mints a reference-only proof of the vault's full
// contents, used for authorization without withdrawing (spec §5,
// "Proof").
func (v *Vault) CreateProof(proofID NodeID) (*Proof, error) {
	if v.Container.IsEmpty() {
		return nil, utils.Application("EmptyVault", "cannot create a proof of an empty vault")
	}
	return &Proof{ID: proofID, Source: v.ID, Container: v.Container}, nil
}

// CreateProofOfAmount mints a proof over a sub-amount of the vault's
// balance and adds that amount to the vault's locked amount so it
// cannot be withdrawn while the proof (or any of its clones) is still
// alive (spec §4.8, fungible vault create_proof_of_amount).
func (v *Vault) CreateProofOfAmount(proofID NodeID, amount Decimal) (*Proof, error) {
	if !v.Container.IsFungible {
		return nil, utils.Application("NotFungible", "amount-based proof on a non-fungible vault")
	}
	if amount.IsNegative() || amount.Cmp(v.available()) > 0 {
		return nil, utils.Application("InsufficientBalance", "proof amount exceeds unlocked available amount")
	}
	v.locked = v.locked.Add(amount)
	return &Proof{
		ID:           proofID,
		Source:       v.ID,
		Container:    NewFungibleContainer(v.Container.Resource, amount),
		LockedVault:  v,
		LockedAmount: amount,
	}, nil
}

// releaseLock undoes a prior locked-amounts increment once the proof
// that pledged it has been fully dropped.
func (v *Vault) releaseLock(amount Decimal) {
	v.locked = v.locked.Sub(amount)
	if v.locked.IsNegative() {
		v.locked = DecimalZero()
	}
}

// Freeze and Unfreeze toggle the vault's frozen state; callers are
// responsible for checking the owning resource manager's
// FeatureVaultFreeze flag before invoking either (spec §4.8).
func (v *Vault) Freeze()   { v.frozen = true }
func (v *Vault) Unfreeze() { v.frozen = false }

// IsFrozen reports the vault's current freeze state.
func (v *Vault) IsFrozen() bool { return v.frozen }

// Recall forcibly empties the vault into a new bucket, bypassing the
// frozen check (it is the one operation a freeze is meant to survive).
// Callers are responsible for checking FeatureVaultRecall before
// invoking this (spec §4.8).
func (v *Vault) Recall(bucketID NodeID) (*Bucket, error) {
	if v.Container.IsFungible {
		c, err := v.Container.TakeAmount(v.Container.Amount)
		if err != nil {
			return nil, err
		}
		v.locked = DecimalZero()
		return &Bucket{ID: bucketID, Container: c}, nil
	}
	ids := make([]NonFungibleLocalID, 0, len(v.Container.NonFungibles))
	for id := range v.Container.NonFungibles {
		ids = append(ids, id)
	}
	c, err := v.Container.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{ID: bucketID, Container: c}, nil
}
