package core

import (
	"math/big"

	"github.com/synnergy-network/corevm/pkg/utils"
)

// NonFungibleData is the opaque, schema-validated payload attached to
// one minted non-fungible unit. Validation against the resource's
// declared schema happens in the system layer before Mint is called;
// the resource manager itself only tracks presence/tombstone state.
type NonFungibleData struct {
	Payload    []byte
	Tombstoned bool // burned units are tombstoned, not deleted (spec §5, non-reclamation)
}

// ResourceFeature is a create-time-only capability bit a resource
// manager may be granted. Spec §4.8: "Mint, Burn, TrackTotalSupply,
// VaultFreeze, VaultRecall are declared at creation and cannot later
// be turned on."
type ResourceFeature uint16

const (
	FeatureMint ResourceFeature = 1 << iota
	FeatureBurn
	FeatureTrackTotalSupply
	FeatureVaultFreeze
	FeatureVaultRecall
)

func (f ResourceFeature) has(bit ResourceFeature) bool { return f&bit != 0 }

const maxDivisibility uint8 = 18

// ResourceManager is the global node governing one fungible or
// non-fungible resource's mint/burn authority and total-supply
// tracking (spec §5). Vaults and buckets carry a ResourceAddress
// pointing back to the manager that minted their contents, but the
// manager itself is stateless with respect to where units currently
// sit.
type ResourceManager struct {
	Address      ResourceAddress
	IsFungible   bool
	Divisibility uint8 // fungible only; non-fungible managers ignore this
	Features     ResourceFeature
	Roles        *RoleAssignment // Minter/Burner/NonFungibleDataUpdater, among others

	totalSupply Decimal
	nonFungible map[NonFungibleLocalID]*NonFungibleData
}

// NewFungibleResourceManager creates a fungible resource manager.
// divisibility must be between 0 and 18 inclusive (spec §4.8).
func NewFungibleResourceManager(address ResourceAddress, divisibility uint8, features ResourceFeature, roles *RoleAssignment) (*ResourceManager, error) {
	if divisibility > maxDivisibility {
		return nil, utils.Application("InvalidDivisibility", "divisibility must be between 0 and 18")
	}
	return &ResourceManager{
		Address: address, IsFungible: true, Divisibility: divisibility,
		Features: features, Roles: roles, totalSupply: DecimalZero(),
	}, nil
}

func NewNonFungibleResourceManager(address ResourceAddress, features ResourceFeature, roles *RoleAssignment) *ResourceManager {
	return &ResourceManager{
		Address: address, IsFungible: false, Features: features, Roles: roles,
		nonFungible: make(map[NonFungibleLocalID]*NonFungibleData),
	}
}

func (m *ResourceManager) TotalSupply() Decimal { return m.totalSupply }

// authorize denies by default: a role with no rule configured, or a
// manager with no role assignment at all, never authorizes anything
// (spec §4.7/§4.8 role-protected dispatch).
func (m *ResourceManager) authorize(role string, zoneStack []*AuthZone) bool {
	if m.Roles == nil {
		return false
	}
	rule, ok := m.Roles.RuleFor(role)
	if !ok {
		return false
	}
	return EvaluateAccessRule(rule, zoneStack)
}

// MintFungible increases total supply and returns a bucket holding the
// newly created amount. amount must be a positive multiple of the
// resource's divisibility step; fractional mint beyond that is
// rejected (spec §5, checked arithmetic). Requires the Mint feature
// and the Minter role.
func (m *ResourceManager) MintFungible(bucketID NodeID, amount Decimal, zoneStack []*AuthZone) (*Bucket, error) {
	if !m.IsFungible {
		return nil, utils.Application("NotFungibleManager", "mint_fungible on a non-fungible resource")
	}
	if !m.Features.has(FeatureMint) {
		return nil, utils.Module("AuthError::Unauthorized", "resource manager was not created with the Mint feature")
	}
	if !m.authorize("Minter", zoneStack) {
		return nil, utils.Module("AuthError::Unauthorized", "caller does not hold the Minter role")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, utils.Application("InvalidMintAmount", "mint amount must be positive")
	}
	step := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalScale-int(m.Divisibility))), nil)
	if new(big.Int).Mod(amount.v, step).Sign() != 0 {
		return nil, utils.Application("InvalidMintAmount", "mint amount has more fractional digits than the resource's divisibility")
	}
	total, err := m.totalSupply.CheckedAdd(amount)
	if err != nil {
		return nil, err
	}
	m.totalSupply = total
	return &Bucket{ID: bucketID, Container: NewFungibleContainer(m.Address, amount)}, nil
}

// BurnFungible decreases total supply by the bucket's amount,
// consuming it. Burn is asymmetric with mint: there is no tombstone
// for fungible amounts, only the ledger-level total-supply decrement.
// Requires the Burn feature and the Burner role.
func (m *ResourceManager) BurnFungible(b *Bucket, zoneStack []*AuthZone) error {
	if !m.IsFungible || b.Container.Resource != m.Address {
		return utils.Application("MismatchingResource", "burn bucket does not belong to this manager")
	}
	if !m.Features.has(FeatureBurn) {
		return utils.Module("AuthError::Unauthorized", "resource manager was not created with the Burn feature")
	}
	if !m.authorize("Burner", zoneStack) {
		return utils.Module("AuthError::Unauthorized", "caller does not hold the Burner role")
	}
	m.totalSupply = m.totalSupply.Sub(b.Container.Amount)
	b.Container.Amount = DecimalZero()
	return nil
}

// MintNonFungible creates one new unit per (localID, data) pair,
// failing if any id already exists (minted or tombstoned): ids are
// never reused (spec §5, non-reclamation of tombstoned entries).
// Requires the Mint feature and the Minter role.
func (m *ResourceManager) MintNonFungible(bucketID NodeID, units map[NonFungibleLocalID][]byte, zoneStack []*AuthZone) (*Bucket, error) {
	if m.IsFungible {
		return nil, utils.Application("NotNonFungibleManager", "mint_non_fungible on a fungible resource")
	}
	if !m.Features.has(FeatureMint) {
		return nil, utils.Module("AuthError::Unauthorized", "resource manager was not created with the Mint feature")
	}
	if !m.authorize("Minter", zoneStack) {
		return nil, utils.Module("AuthError::Unauthorized", "caller does not hold the Minter role")
	}
	for id := range units {
		if _, exists := m.nonFungible[id]; exists {
			return nil, utils.Application("NonFungibleAlreadyExists", "non-fungible local id already used")
		}
	}
	total, err := m.totalSupply.CheckedAdd(NewDecimalFromInt64(int64(len(units))))
	if err != nil {
		return nil, err
	}
	ids := make([]NonFungibleLocalID, 0, len(units))
	for id, payload := range units {
		m.nonFungible[id] = &NonFungibleData{Payload: payload}
		ids = append(ids, id)
	}
	m.totalSupply = total
	return &Bucket{ID: bucketID, Container: NewNonFungibleContainer(m.Address, ids...)}, nil
}

// BurnNonFungible tombstones every id in the bucket: the manager
// remembers the id was minted and later destroyed so it is never
// reissued, per spec §5's explicit non-reclamation rule (also spec §9
// Open Question, decided in DESIGN.md in favor of the spec's stated
// behavior). Requires the Burn feature and the Burner role.
func (m *ResourceManager) BurnNonFungible(b *Bucket, zoneStack []*AuthZone) error {
	if m.IsFungible || b.Container.Resource != m.Address {
		return utils.Application("MismatchingResource", "burn bucket does not belong to this manager")
	}
	if !m.Features.has(FeatureBurn) {
		return utils.Module("AuthError::Unauthorized", "resource manager was not created with the Burn feature")
	}
	if !m.authorize("Burner", zoneStack) {
		return utils.Module("AuthError::Unauthorized", "caller does not hold the Burner role")
	}
	burned := len(b.Container.NonFungibles)
	for id := range b.Container.NonFungibles {
		data, ok := m.nonFungible[id]
		if !ok {
			return utils.Application("NonFungibleNotFound", "burning an id the manager never minted")
		}
		data.Tombstoned = true
		data.Payload = nil
		delete(b.Container.NonFungibles, id)
	}
	m.totalSupply = m.totalSupply.Sub(NewDecimalFromInt64(int64(burned)))
	return nil
}

// DataOf returns the current data for a minted non-fungible id. A
// tombstoned id still resolves (so history remains queryable) but
// reports Tombstoned true and a nil payload.
func (m *ResourceManager) DataOf(id NonFungibleLocalID) (*NonFungibleData, bool) {
	d, ok := m.nonFungible[id]
	return d, ok
}

// UpdateNonFungibleData overwrites the payload of a live (not
// tombstoned) unit, used by mutable non-fungible-data schemas.
// Requires the NonFungibleDataUpdater role.
func (m *ResourceManager) UpdateNonFungibleData(id NonFungibleLocalID, payload []byte, zoneStack []*AuthZone) error {
	if !m.authorize("NonFungibleDataUpdater", zoneStack) {
		return utils.Module("AuthError::Unauthorized", "caller does not hold the NonFungibleDataUpdater role")
	}
	d, ok := m.nonFungible[id]
	if !ok || d.Tombstoned {
		return utils.Application("NonFungibleNotFound", "cannot update a tombstoned or unknown non-fungible")
	}
	d.Payload = payload
	return nil
}
