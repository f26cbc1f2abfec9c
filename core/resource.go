package core

import "github.com/synnergy-network/corevm/pkg/utils"

// ResourceAddress is the global node id of a resource manager (spec
// §5). Vaults, buckets and proofs all carry one, identifying which
// resource manager's rules govern their contents.
type ResourceAddress = NodeID

// NonFungibleLocalID is the per-resource-manager local identifier of a
// non-fungible unit, e.g. a numeric id or a UUID. Equality and
// ordering are defined over the string form for simplicity; the
// manifest layer is responsible for rejecting malformed literals
// before they ever reach here.
type NonFungibleLocalID string

// ResourceContainer is the linear-resource value type shared by
// vaults, buckets and proofs: either a fungible amount or a set of
// non-fungible local ids, never both (spec §5, "Resources as
// non-duplicable, non-discardable values").
type ResourceContainer struct {
	Resource     ResourceAddress
	IsFungible   bool
	Amount       Decimal
	NonFungibles map[NonFungibleLocalID]bool
}

func NewFungibleContainer(resource ResourceAddress, amount Decimal) ResourceContainer {
	return ResourceContainer{Resource: resource, IsFungible: true, Amount: amount}
}

func NewNonFungibleContainer(resource ResourceAddress, ids ...NonFungibleLocalID) ResourceContainer {
	set := make(map[NonFungibleLocalID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return ResourceContainer{Resource: resource, IsFungible: false, NonFungibles: set}
}

// IsEmpty reports whether the container currently holds zero value,
// used by the kernel's drop-node path to allow an empty bucket/proof
// to be discarded without a dangling-node violation (spec §5).
func (c ResourceContainer) IsEmpty() bool {
	if c.IsFungible {
		return c.Amount.IsZero()
	}
	return len(c.NonFungibles) == 0
}

// Put merges other into c in place. Resource-address mismatch and
// fungible/non-fungible kind mismatch are both fatal: the linear-
// resource invariant of spec §5 never allows heterogeneous merges.
func (c *ResourceContainer) Put(other ResourceContainer) error {
	if c.Resource != other.Resource || c.IsFungible != other.IsFungible {
		return utils.Application("MismatchingResource", "cannot combine containers of different resources")
	}
	if c.IsFungible {
		c.Amount = c.Amount.Add(other.Amount)
		return nil
	}
	if c.NonFungibles == nil {
		c.NonFungibles = make(map[NonFungibleLocalID]bool)
	}
	for id := range other.NonFungibles {
		c.NonFungibles[id] = true
	}
	return nil
}

// TakeAmount removes amount (fungible) from c, failing on insufficient
// balance (spec §5, checked arithmetic on withdrawal).
func (c *ResourceContainer) TakeAmount(amount Decimal) (ResourceContainer, error) {
	if !c.IsFungible {
		return ResourceContainer{}, utils.Application("NotFungible", "amount-based take on a non-fungible container")
	}
	if amount.IsNegative() || amount.Cmp(c.Amount) > 0 {
		return ResourceContainer{}, utils.Application("InsufficientBalance", "withdrawal exceeds available amount")
	}
	c.Amount = c.Amount.Sub(amount)
	return NewFungibleContainer(c.Resource, amount), nil
}

// TakeNonFungibles removes a specific id set from c, failing if any id
// is absent.
func (c *ResourceContainer) TakeNonFungibles(ids []NonFungibleLocalID) (ResourceContainer, error) {
	if c.IsFungible {
		return ResourceContainer{}, utils.Application("NotNonFungible", "id-based take on a fungible container")
	}
	for _, id := range ids {
		if !c.NonFungibles[id] {
			return ResourceContainer{}, utils.Application("NonFungibleNotFound", "requested non-fungible id not present")
		}
	}
	for _, id := range ids {
		delete(c.NonFungibles, id)
	}
	return NewNonFungibleContainer(c.Resource, ids...), nil
}
