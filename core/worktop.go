package core

import "github.com/synnergy-network/corevm/pkg/utils"

// Worktop is the transaction-scoped holding area for buckets returned
// by manifest instructions before they are deposited or consumed
// (spec §6, "Worktop"). Unlike a vault it is not a node the kernel
// tracks for dangling-node purposes; the transaction processor itself
// guarantees the worktop is drained (or explicitly asserted empty)
// before the transaction ends.
type Worktop struct {
	buckets map[ResourceAddress]*Bucket
}

func NewWorktop() *Worktop {
	return &Worktop{buckets: make(map[ResourceAddress]*Bucket)}
}

// PutBucket merges a bucket's contents onto the worktop, creating a
// new held bucket for that resource if this is the first deposit.
func (w *Worktop) PutBucket(b *Bucket) error {
	held, ok := w.buckets[b.Container.Resource]
	if !ok {
		w.buckets[b.Container.Resource] = b
		return nil
	}
	return held.Put(b)
}

// TakeAmount withdraws amount of resource from the worktop into a new
// bucket identified by newID.
func (w *Worktop) TakeAmount(newID NodeID, resource ResourceAddress, amount Decimal) (*Bucket, error) {
	held, ok := w.buckets[resource]
	if !ok {
		return nil, utils.Application("ResourceNotFoundOnWorktop", "no bucket of this resource held on the worktop")
	}
	return held.TakeAmount(newID, amount)
}

// TakeNonFungibles withdraws specific ids of resource from the
// worktop.
func (w *Worktop) TakeNonFungibles(newID NodeID, resource ResourceAddress, ids []NonFungibleLocalID) (*Bucket, error) {
	held, ok := w.buckets[resource]
	if !ok {
		return nil, utils.Application("ResourceNotFoundOnWorktop", "no bucket of this resource held on the worktop")
	}
	return held.TakeNonFungibles(newID, ids)
}

// TakeAll withdraws the entire held balance of resource into a new
// bucket, removing the worktop's entry for it.
func (w *Worktop) TakeAll(newID NodeID, resource ResourceAddress) (*Bucket, error) {
	held, ok := w.buckets[resource]
	if !ok {
		return nil, utils.Application("ResourceNotFoundOnWorktop", "no bucket of this resource held on the worktop")
	}
	delete(w.buckets, resource)
	held.ID = newID
	return held, nil
}

// AssertAllEmpty enforces the manifest-level guarantee that no value
// is left unaccounted for at the end of a transaction (spec §6).
func (w *Worktop) AssertAllEmpty() error {
	for resource, b := range w.buckets {
		if !b.IsEmpty() {
			return utils.Application("WorktopNotEmpty", "resource left on worktop: "+resource.Hex())
		}
	}
	return nil
}

// Drain returns every non-empty held bucket, used when the
// transaction processor needs to force a final deposit sweep.
func (w *Worktop) Drain() []*Bucket {
	var out []*Bucket
	for _, b := range w.buckets {
		if !b.IsEmpty() {
			out = append(out, b)
		}
	}
	w.buckets = make(map[ResourceAddress]*Bucket)
	return out
}
