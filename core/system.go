package core

import (
	"github.com/google/uuid"

	"github.com/synnergy-network/corevm/pkg/utils"
	"github.com/synnergy-network/corevm/sbor"
	"github.com/synnergy-network/corevm/store"
)

// System is the typed service layer blueprint code (native or WASM)
// actually programs against; it never touches the Kernel's frame/lock
// primitives directly, instead exposing the higher-level object model
// of spec §4.3's "System service over Kernel".
type System struct {
	kernel    *Kernel
	costing   *CostingModule
	auth      *AuthModule
	txLimit   *TransactionLimitModule
	trace     *ExecutionTraceModule
	events    *EventModule
	logger    *LoggerModule
	packages  *PackageRegistry
	txHash    [32]byte

	resourceManagers map[ResourceAddress]*ResourceManager
	vaults           map[NodeID]*Vault
	authZoneStack    []*AuthZone
	fieldLockSchemas map[LockHandle]sbor.TypeSchema
}

// NewSystem wires a System on top of a freshly constructed Kernel,
// installing the canonical module stack in the teacher's established
// order: costing first (so every subsequent hook's own work is also
// metered), then auth, limits, trace, events, logging (spec §4.4).
func NewSystem(backing store.SubstateStore, txHash [32]byte, cfgMaxCallDepth int, costing *CostingModule, txLimit *TransactionLimitModule, logger *LoggerModule) *System {
	auth := NewAuthModule()
	trace := NewExecutionTraceModule()
	events := NewEventModule()
	k := NewKernel(backing, txHash, cfgMaxCallDepth, costing, auth, txLimit, trace, events, logger)
	return &System{
		kernel: k, costing: costing, auth: auth, txLimit: txLimit,
		trace: trace, events: events, logger: logger,
		packages: NewPackageRegistry(), txHash: txHash,
		resourceManagers: make(map[ResourceAddress]*ResourceManager),
		vaults:           make(map[NodeID]*Vault),
		fieldLockSchemas: make(map[LockHandle]sbor.TypeSchema),
	}
}

// RegisterResourceManager makes a resource manager addressable by its
// global NodeId, the handle the manifest processor and blueprint code
// use to find it again from a manifest's Address("...") literal.
func (s *System) RegisterResourceManager(mgr *ResourceManager) {
	s.resourceManagers[mgr.Address] = mgr
}

func (s *System) ResourceManagerOf(addr ResourceAddress) (*ResourceManager, bool) {
	mgr, ok := s.resourceManagers[addr]
	return mgr, ok
}

// RegisterVault makes an internal vault addressable by NodeId, used by
// account/component blueprints that hold resources directly rather
// than through a bucket the manifest already tracks by name.
func (s *System) RegisterVault(v *Vault) { s.vaults[v.ID] = v }

func (s *System) VaultOf(id NodeID) (*Vault, bool) {
	v, ok := s.vaults[id]
	return v, ok
}

// PushAuthZone/AuthZoneStack/CurrentAuthZone expose the same zone stack
// AuthModule owns to the manifest processor, which needs to push
// proofs created from worktop buckets during AUTH-related
// instructions without reaching into AuthModule's internals directly.
func (s *System) PushAuthZone(z *AuthZone)      { s.auth.PushZone(z) }
func (s *System) AuthZoneStack() []*AuthZone    { return s.auth.zones }
func (s *System) CurrentAuthZone() *AuthZone {
	if z := s.auth.CurrentZone(); z != nil {
		return z
	}
	z := NewAuthZone()
	s.auth.PushZone(z)
	return z
}

func (s *System) Kernel() *Kernel       { return s.kernel }
func (s *System) Packages() *PackageRegistry { return s.packages }
func (s *System) Events() []Event       { return s.events.Events() }
func (s *System) Logs() []LogEntry      { return s.logger.Entries() }
func (s *System) Trace() []ExecutionTraceEntry { return s.trace.Entries }
func (s *System) TransactionHash() [32]byte    { return s.txHash }

// NewUUID mints a random identifier for blueprint-level use (e.g. an
// off-ledger correlation id attached to an event payload). It never
// participates in NodeId derivation, which stays fully deterministic
// via NodeIDAllocator.
func (s *System) NewUUID() string { return uuid.NewString() }

// NewObject allocates and creates an internal node owned by the
// current frame, the System-layer equivalent of Kernel.CreateNode for
// blueprint-defined object state (spec §4.3, §5).
func (s *System) NewObject(entityType EntityType, fields map[PartitionNumber]map[string][]byte) (NodeID, error) {
	id := s.kernel.AllocateNodeID(entityType)
	if err := s.kernel.CreateNode(id, fields); err != nil {
		return NodeID{}, err
	}
	return id, nil
}

// Globalize promotes id to a directly addressable node and attaches
// the three canonical modules every global object carries (spec §5).
// blueprint records which blueprint governs the object so a later
// address-only CallMethod (e.g. from the manifest processor) can
// resolve its method table.
func (s *System) Globalize(id NodeID, roles *RoleAssignment, metadata *MetadataModule, royalty *RoyaltyModule) error {
	return s.GlobalizeAs(id, "", roles, metadata, royalty)
}

func (s *System) GlobalizeAs(id NodeID, blueprint string, roles *RoleAssignment, metadata *MetadataModule, royalty *RoyaltyModule) error {
	if err := s.kernel.GlobalizeNode(id); err != nil {
		return err
	}
	s.packages.attachModules(id, roles, metadata, royalty)
	if blueprint != "" {
		s.packages.SetObjectBlueprint(id, blueprint)
	}
	return nil
}

// LockField opens a mutable or read-only lock over one field of a
// node's main-state partition, resolving field to the tuple index and
// declared type its blueprint published, and returning a handle for
// ReadField / WriteField / UnlockField (spec §4.2's lock API, spec
// §4.5 "Schema safety", surfaced to blueprints through System rather
// than Track directly).
func (s *System) LockField(node NodeID, field string, flags LockFlags) (LockHandle, error) {
	blueprint, _ := s.packages.BlueprintOf(node)
	index, schema, err := s.packages.FieldSchema(blueprint, field)
	if err != nil {
		return 0, err
	}
	key := store.Key{Kind: store.KeyKindTuple, Tuple: byte(index)}
	handle, err := s.kernel.Track().AcquireLock(node, PartitionMainState, key, flags, func() []byte { return nil })
	if err != nil {
		return 0, err
	}
	s.fieldLockSchemas[handle] = schema
	return handle, nil
}

func (s *System) ReadField(handle LockHandle) ([]byte, error) {
	v, _, err := s.kernel.Track().ReadSubstate(handle)
	if err != nil {
		return nil, err
	}
	read, _ := s.kernel.Track().ReadWriteBytes()
	if err := s.txLimit.OnOpenSubstate(s.kernel, read); err != nil {
		return nil, err
	}
	return v, nil
}

// WriteField validates value against the field's declared schema
// before committing it, so a blueprint can never write a payload whose
// shape disagrees with what it published (spec §4.5, "Schema safety").
func (s *System) WriteField(handle LockHandle, value []byte) error {
	if schema, ok := s.fieldLockSchemas[handle]; ok {
		decoded, err := sbor.Decode(value)
		if err != nil {
			return utils.Application("SchemaValidationFailed", "field payload is not valid SBOR: "+err.Error())
		}
		if err := sbor.Validate(schema, decoded); err != nil {
			return utils.Application("SchemaValidationFailed", err.Error())
		}
	}
	if err := s.kernel.Track().WriteSubstate(handle, value); err != nil {
		return err
	}
	_, write := s.kernel.Track().ReadWriteBytes()
	return s.txLimit.OnCloseSubstate(s.kernel, write)
}

func (s *System) UnlockField(handle LockHandle) error {
	delete(s.fieldLockSchemas, handle)
	return s.kernel.Track().DropLock(handle)
}

// OpenKeyValueEntry opens a lock on a single map-collection entry of
// node, identified by keyBytes (spec §5, key-value store collections).
func (s *System) OpenKeyValueEntry(node NodeID, partition PartitionNumber, keyBytes []byte, flags LockFlags) (LockHandle, error) {
	key := store.Key{Kind: store.KeyKindMap, Bytes: keyBytes}
	return s.kernel.Track().AcquireLock(node, partition, key, flags, func() []byte { return nil })
}

// EmitEvent buffers a blueprint event for the transaction receipt,
// dispatched through every module's OnEmitEvent hook (spec §4.4).
func (s *System) EmitEvent(emitter NodeID, name string, payload []byte) error {
	return s.kernel.DispatchEmitEvent(Event{Emitter: emitter, Name: name, Payload: payload})
}

// Log records a blueprint log line at the given severity, dispatched
// through every module's OnEmitLog hook (spec §4.4).
func (s *System) Log(level LogLevel, message string) error {
	return s.kernel.DispatchEmitLog(LogEntry{Level: level, Message: message})
}

// LockFee debits amount from vault's balance into the costing
// module's fee reserve (spec §4.2, §5). Unlike LockField's
// store-backed locks, the fee reserve is metered state the costing
// module itself owns, so this bypasses Track entirely.
func (s *System) LockFee(vault *Vault, amount Decimal) error {
	return s.costing.LockFee(vault, amount)
}

// SetOuterObject records that inner was instantiated nested inside
// outer's state, the relationship an OuterObjectOnly method checks at
// dispatch time.
func (s *System) SetOuterObject(inner, outer NodeID) { s.packages.SetOuterObject(inner, outer) }

// CallMethod dispatches to a registered blueprint method, wrapped in
// the kernel's 8-step invocation protocol (spec §4.3). argNodes are
// resource nodes (buckets/proofs) passed by value into the callee. The
// call is rejected before the frame is pushed if the callee's declared
// visibility denies the current caller (spec §4.3/§4.5, method
// dispatch resolution).
func (s *System) CallMethod(object NodeID, blueprint, method string, argNodes []NodeID, args []byte) (interface{}, error) {
	if blueprint == "" {
		if b, ok := s.packages.BlueprintOf(object); ok {
			blueprint = b
		}
	}
	fn, ok := s.packages.lookupMethod(blueprint, method)
	if !ok {
		return nil, utils.Application("MethodNotFound", "no such blueprint method: "+blueprint+"."+method)
	}
	if err := s.checkMethodVisibility(object, blueprint, method); err != nil {
		return nil, err
	}
	actor := Actor{BlueprintName: blueprint, ObjectID: &object}
	return s.kernel.Invoke(actor, argNodes, func(k *Kernel) (interface{}, []NodeID, error) {
		return fn(s, object, args, argNodes)
	})
}

// checkMethodVisibility enforces the callee's declared dispatch
// visibility against the frame currently calling in (spec §4.3/§4.5):
// Public always passes; OwnPackageOnly requires the caller's blueprint
// to match the callee's; OuterObjectOnly requires the caller's object
// to be the callee's recorded outer object; RoleProtected evaluates
// the named role's access rule against the current auth-zone stack.
func (s *System) checkMethodVisibility(object NodeID, blueprint, method string) error {
	vis, role, ok := s.packages.MethodVisibilityOf(blueprint, method)
	if !ok || vis == VisibilityPublic {
		return nil
	}
	caller := s.kernel.currentFrame().actor
	switch vis {
	case VisibilityOwnPackageOnly:
		if caller.BlueprintName != blueprint {
			return utils.System("AuthorizationDenied", "method is restricted to calls from within its own package: "+method)
		}
	case VisibilityOuterObjectOnly:
		outer, hasOuter := s.packages.OuterObjectOf(object)
		if !hasOuter || caller.ObjectID == nil || *caller.ObjectID != outer {
			return utils.System("AuthorizationDenied", "method is restricted to calls from its outer object: "+method)
		}
	case VisibilityRoleProtected:
		roles, _ := s.packages.RoleAssignmentOf(object)
		if roles == nil {
			return utils.System("AuthorizationDenied", "method is role-protected but object has no role assignment: "+method)
		}
		rule, ok := roles.RuleFor(role)
		if !ok || !EvaluateAccessRule(rule, s.AuthZoneStack()) {
			return utils.System("AuthorizationDenied", "caller does not satisfy the required role: "+role)
		}
	}
	return nil
}

// CallFunction dispatches to a registered blueprint function (no
// receiving object, e.g. a factory that instantiates a new
// component).
func (s *System) CallFunction(blueprint, function string, argNodes []NodeID, args []byte) (interface{}, error) {
	fn, ok := s.packages.lookupFunction(blueprint, function)
	if !ok {
		return nil, utils.Application("FunctionNotFound", "no such blueprint function: "+blueprint+"."+function)
	}
	actor := Actor{BlueprintName: blueprint}
	return s.kernel.Invoke(actor, argNodes, func(k *Kernel) (interface{}, []NodeID, error) {
		return fn(s, args, argNodes)
	})
}

// Finish commits or aborts the underlying transaction.
func (s *System) Finish(success bool) error { return s.kernel.Finish(success) }
