package core

import (
	"sync"

	"github.com/synnergy-network/corevm/pkg/utils"
	"github.com/synnergy-network/corevm/sbor"
)

// maxBlueprintFields bounds the field count a single blueprint may
// declare (spec §4.6, package-publish validation step 2).
const maxBlueprintFields = 255

// maxRoyaltyPerCall caps the royalty a single method may charge per
// invocation (spec §4.6, package-publish validation step 6).
var maxRoyaltyPerCall = NewDecimalFromInt64(1000)

// MethodVisibility governs whether CallMethod may reach a blueprint
// method from outside the object itself (spec §4.3/§4.5, method
// dispatch visibility).
type MethodVisibility byte

const (
	VisibilityPublic MethodVisibility = iota
	VisibilityOwnPackageOnly
	VisibilityOuterObjectOnly
	VisibilityRoleProtected
)

// MethodFn is a native blueprint method implementation, registered by
// PublishNative. WASM blueprints are dispatched through wasmhost
// instead and never appear in this table directly.
type MethodFn func(s *System, object NodeID, args []byte, argNodes []NodeID) (interface{}, []NodeID, error)

// FunctionFn is a native blueprint function (no receiver) implementation.
type FunctionFn func(s *System, args []byte, argNodes []NodeID) (interface{}, []NodeID, error)

// BlueprintSchema describes the shape the package author declares for
// a blueprint's fields, collections, events and method surface (spec
// §5, "Package blueprint"; spec §4.6, publish validation).
type BlueprintSchema struct {
	Name         string
	FieldNames   []string
	FieldTypes   map[string]sbor.TypeSchema // field name -> declared shape, checked by LockField/ReadField/WriteField
	EventSchemas map[string][]byte          // event name -> opaque schema blob
	Royalties    map[string]Decimal
	AuthConfig   map[string]AccessRule // role name -> default rule

	Methods         []string // declared method names (receiver functions)
	Functions       []string // declared function names (no receiver)
	MethodVisibility map[string]MethodVisibility
	MethodRoles      map[string]string // method name -> role required when VisibilityRoleProtected
	OuterBlueprint   string            // set if this blueprint may only exist nested inside OuterBlueprint's objects
}

// fieldSchema resolves one field's structural schema by name.
func (b BlueprintSchema) fieldSchema(field string) (int, sbor.TypeSchema, error) {
	for i, f := range b.FieldNames {
		if f == field {
			ts, ok := b.FieldTypes[field]
			if !ok {
				return 0, sbor.TypeSchema{}, utils.System("InvalidPackageSchema", "field has no declared type: "+field)
			}
			return i, ts, nil
		}
	}
	return 0, sbor.TypeSchema{}, utils.Application("FieldNotFound", "no such field in blueprint schema: "+field)
}

// validate runs the spec §4.6 package-publish validation in order,
// failing on the first violation: (1) every declared field has a
// resolvable type reference, (2) the field count stays under the
// ceiling, (3) an inner blueprint's outer blueprint is published
// first, (4) every MethodRoles entry names a declared method/function
// and a role that has an AuthConfig entry, (5) every declared method/function has exactly one
// visibility entry, (6) no royalty exceeds the per-call cap.
func (b BlueprintSchema) validate(registry *PackageRegistry) error {
	seen := make(map[string]bool, len(b.FieldNames))
	for _, f := range b.FieldNames {
		if seen[f] {
			return utils.System("InvalidPackageSchema", "duplicate field name: "+f)
		}
		seen[f] = true
		if _, ok := b.FieldTypes[f]; !ok {
			return utils.System("InvalidPackageSchema", "field has no resolvable type reference: "+f)
		}
	}
	if len(b.FieldNames) > maxBlueprintFields {
		return utils.System("InvalidPackageSchema", "blueprint declares more fields than the configured limit")
	}
	for name, schema := range b.EventSchemas {
		if len(schema) == 0 {
			return utils.System("InvalidPackageSchema", "event schema body is empty: "+name)
		}
	}
	if b.OuterBlueprint != "" {
		if registry == nil {
			return utils.System("InvalidPackageSchema", "inner blueprint validated without a registry to resolve its outer blueprint")
		}
		if _, ok := registry.lookupSchema(b.OuterBlueprint); !ok {
			return utils.System("InvalidPackageSchema", "outer blueprint not yet published: "+b.OuterBlueprint)
		}
	}
	callables := make(map[string]bool, len(b.Methods)+len(b.Functions))
	for _, m := range b.Methods {
		callables[m] = true
	}
	for _, f := range b.Functions {
		callables[f] = true
	}
	for method, role := range b.MethodRoles {
		if !callables[method] {
			return utils.System("InvalidPackageSchema", "auth config names a method the blueprint never declares: "+method)
		}
		if _, ok := b.AuthConfig[role]; !ok {
			return utils.System("InvalidPackageSchema", "method role has no matching AuthConfig entry: "+role)
		}
	}
	if len(b.MethodVisibility) != len(callables) {
		return utils.System("InvalidPackageSchema", "every declared method and function must have exactly one visibility entry")
	}
	for name := range b.MethodVisibility {
		if !callables[name] {
			return utils.System("InvalidPackageSchema", "visibility entry names an undeclared method or function: "+name)
		}
	}
	for method, price := range b.Royalties {
		if price.IsNegative() {
			return utils.System("InvalidPackageSchema", "negative royalty on method: "+method)
		}
		if price.Cmp(maxRoyaltyPerCall) > 0 {
			return utils.System("InvalidPackageSchema", "royalty on method exceeds the per-call cap: "+method)
		}
	}
	return nil
}

// blueprintEntry is a published blueprint's full native surface plus
// its validated schema, cached once at publish time so CallMethod
// never re-validates on the hot path (spec §5, "auth-template
// caching").
type blueprintEntry struct {
	schema    BlueprintSchema
	methods   map[string]MethodFn
	functions map[string]FunctionFn
	wasm      *WasmBlueprint // nil for native blueprints
	roles     *RoleAssignment
	metadata  *MetadataModule
	royalty   *RoyaltyModule
}

// WasmBlueprint is the package-layer handle onto a WASM module
// published via PublishWasm/PublishWasmAdvanced; actual instantiation
// and execution is the wasmhost package's job.
type WasmBlueprint struct {
	Code         []byte
	InstrumentedCode []byte
	ExportedFns  []string
}

// PackageRegistry is the process-wide table of published blueprints,
// grounded on the teacher's singleton contract registry pattern
// (sync.RWMutex-guarded map keyed by address).
type PackageRegistry struct {
	mu         sync.RWMutex
	blueprints map[string]*blueprintEntry // key: blueprint name
	nodeRoles  map[NodeID]*RoleAssignment
	nodeMeta   map[NodeID]*MetadataModule
	nodeRoyal  map[NodeID]*RoyaltyModule
	nodeBlueprint map[NodeID]string
	nodeOuter     map[NodeID]NodeID
}

func NewPackageRegistry() *PackageRegistry {
	return &PackageRegistry{
		blueprints: make(map[string]*blueprintEntry),
		nodeRoles:  make(map[NodeID]*RoleAssignment),
		nodeMeta:   make(map[NodeID]*MetadataModule),
		nodeRoyal:  make(map[NodeID]*RoyaltyModule),
		nodeBlueprint: make(map[NodeID]string),
		nodeOuter:     make(map[NodeID]NodeID),
	}
}

// SetOuterObject records that inner was instantiated nested inside
// outer, the relationship VisibilityOuterObjectOnly checks at dispatch
// time (spec §4.6, inner/outer blueprints).
func (r *PackageRegistry) SetOuterObject(inner, outer NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeOuter[inner] = outer
}

func (r *PackageRegistry) OuterObjectOf(inner NodeID) (NodeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	outer, ok := r.nodeOuter[inner]
	return outer, ok
}

// SetObjectBlueprint records which blueprint governs object, letting
// callers that only have a NodeId (e.g. the manifest processor's
// CALL_METHOD, which addresses objects rather than blueprints)
// resolve the method table to dispatch against.
func (r *PackageRegistry) SetObjectBlueprint(object NodeID, blueprint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeBlueprint[object] = blueprint
}

func (r *PackageRegistry) BlueprintOf(object NodeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.nodeBlueprint[object]
	return b, ok
}

// PublishNative registers a blueprint implemented directly in Go,
// used for the kernel's own built-in blueprints (resource manager,
// account, identity, access controller) as well as test fixtures
// (spec §5).
func (r *PackageRegistry) PublishNative(schema BlueprintSchema, methods map[string]MethodFn, functions map[string]FunctionFn) error {
	if err := schema.validate(r); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.blueprints[schema.Name]; exists {
		return utils.System("PackageAlreadyExists", "blueprint already published: "+schema.Name)
	}
	r.blueprints[schema.Name] = &blueprintEntry{schema: schema, methods: methods, functions: functions}
	return nil
}

// PublishWasm registers a blueprint backed by a WASM module with
// default instrumentation (metering injected, no extra checks beyond
// the schema and import whitelist).
func (r *PackageRegistry) PublishWasm(schema BlueprintSchema, code []byte, instrument func([]byte) ([]byte, error)) error {
	return r.publishWasm(schema, code, instrument, nil)
}

// PublishWasmAdvanced registers a WASM blueprint with an explicit
// exported-function allowlist, used when a package wants to hide
// internal WASM exports from direct invocation (spec §3 SUPPLEMENTED
// FEATURES).
func (r *PackageRegistry) PublishWasmAdvanced(schema BlueprintSchema, code []byte, instrument func([]byte) ([]byte, error), exportedFns []string) error {
	return r.publishWasm(schema, code, instrument, exportedFns)
}

func (r *PackageRegistry) publishWasm(schema BlueprintSchema, code []byte, instrument func([]byte) ([]byte, error), exportedFns []string) error {
	if err := schema.validate(r); err != nil {
		return err
	}
	instrumented, err := instrument(code)
	if err != nil {
		return utils.System("WasmInstrumentationFailed", err.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.blueprints[schema.Name]; exists {
		return utils.System("PackageAlreadyExists", "blueprint already published: "+schema.Name)
	}
	r.blueprints[schema.Name] = &blueprintEntry{
		schema: schema,
		wasm:   &WasmBlueprint{Code: code, InstrumentedCode: instrumented, ExportedFns: exportedFns},
	}
	return nil
}

func (r *PackageRegistry) lookupSchema(blueprint string) (BlueprintSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.blueprints[blueprint]
	if !ok {
		return BlueprintSchema{}, false
	}
	return e.schema, true
}

// FieldSchema resolves the field index and declared type of one field
// of a published blueprint, used by System.LockField/ReadField/
// WriteField to validate payloads against the schema the package
// author actually published (spec §4.5, "Schema safety").
func (r *PackageRegistry) FieldSchema(blueprint, field string) (int, sbor.TypeSchema, error) {
	schema, ok := r.lookupSchema(blueprint)
	if !ok {
		return 0, sbor.TypeSchema{}, utils.Application("PackageNotFound", "no such blueprint: "+blueprint)
	}
	return schema.fieldSchema(field)
}

// MethodVisibilityOf resolves a published blueprint method's
// dispatch-visibility rule and, for role-protected methods, the role
// name that gates it (spec §4.3/§4.5, method dispatch visibility).
func (r *PackageRegistry) MethodVisibilityOf(blueprint, method string) (MethodVisibility, string, bool) {
	schema, ok := r.lookupSchema(blueprint)
	if !ok {
		return VisibilityPublic, "", false
	}
	vis, ok := schema.MethodVisibility[method]
	if !ok {
		return VisibilityPublic, "", false
	}
	return vis, schema.MethodRoles[method], true
}

func (r *PackageRegistry) lookupMethod(blueprint, method string) (MethodFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.blueprints[blueprint]
	if !ok || e.methods == nil {
		return nil, false
	}
	fn, ok := e.methods[method]
	return fn, ok
}

func (r *PackageRegistry) lookupFunction(blueprint, function string) (FunctionFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.blueprints[blueprint]
	if !ok || e.functions == nil {
		return nil, false
	}
	fn, ok := e.functions[function]
	return fn, ok
}

func (r *PackageRegistry) attachModules(node NodeID, roles *RoleAssignment, meta *MetadataModule, royalty *RoyaltyModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeRoles[node] = roles
	r.nodeMeta[node] = meta
	r.nodeRoyal[node] = royalty
}

// ClaimRoyalties drains the accrued royalty balance of a globalized
// node into the caller's bucket, gated by the node's "royalty claimer"
// role (spec §3 SUPPLEMENTED FEATURES, from the original package
// royalty-claim accounting).
func (r *PackageRegistry) ClaimRoyalties(node NodeID, zoneStack []*AuthZone) (Decimal, error) {
	r.mu.RLock()
	roles := r.nodeRoles[node]
	royalty := r.nodeRoyal[node]
	r.mu.RUnlock()
	if royalty == nil {
		return Decimal{}, utils.Application("NodeNotFound", "no royalty module installed on node")
	}
	if roles != nil {
		if rule, ok := roles.RuleFor("royalty_claimer"); ok && !EvaluateAccessRule(rule, zoneStack) {
			return Decimal{}, utils.System("AuthorizationDenied", "caller cannot claim royalties on this node")
		}
	}
	return royalty.Claim(), nil
}

func (r *PackageRegistry) RoleAssignmentOf(node NodeID) (*RoleAssignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ra, ok := r.nodeRoles[node]
	return ra, ok
}

func (r *PackageRegistry) MetadataOf(node NodeID) (*MetadataModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.nodeMeta[node]
	return m, ok
}

func (r *PackageRegistry) RoyaltyOf(node NodeID) (*RoyaltyModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ry, ok := r.nodeRoyal[node]
	return ry, ok
}
