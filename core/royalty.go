package core

// RoyaltyModule is the canonical module installed on every globalized
// node's PartitionRoyalty partition: a per-method price list plus an
// accrued balance the node's package owner can later claim (spec §3
// SUPPLEMENTED FEATURES, "package royalty claim accounting").
type RoyaltyModule struct {
	methodPrice map[string]Decimal
	accrued     Decimal
}

func NewRoyaltyModule() *RoyaltyModule {
	return &RoyaltyModule{methodPrice: make(map[string]Decimal), accrued: DecimalZero()}
}

func (r *RoyaltyModule) SetMethodRoyalty(method string, price Decimal) {
	r.methodPrice[method] = price
}

// PriceFor returns the configured royalty for method, zero if unset.
func (r *RoyaltyModule) PriceFor(method string) Decimal {
	p, ok := r.methodPrice[method]
	if !ok {
		return DecimalZero()
	}
	return p
}

// Accrue records a royalty charge collected via CostingModule into
// this node's claimable balance.
func (r *RoyaltyModule) Accrue(amount Decimal) { r.accrued = r.accrued.Add(amount) }

// Claim drains the accrued balance for withdrawal into the owner's
// vault, returning the amount claimed.
func (r *RoyaltyModule) Claim() Decimal {
	amount := r.accrued
	r.accrued = DecimalZero()
	return amount
}

func (r *RoyaltyModule) Accrued() Decimal { return r.accrued }
