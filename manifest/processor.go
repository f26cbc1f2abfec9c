package manifest

import (
	"github.com/synnergy-network/corevm/core"
	"github.com/synnergy-network/corevm/pkg/utils"
)

// Processor drives a parsed Manifest's instructions against a System,
// maintaining the worktop and named bucket/proof tables the parser
// already resolved indices for (spec §6, "transaction processor").
type Processor struct {
	system  *core.System
	worktop *core.Worktop
	buckets map[int]*core.Bucket
	proofs  map[int]*core.Proof
}

func NewProcessor(system *core.System) *Processor {
	return &Processor{
		system:  system,
		worktop: core.NewWorktop(),
		buckets: make(map[int]*core.Bucket),
		proofs:  make(map[int]*core.Proof),
	}
}

// Run executes every instruction in order, then asserts the worktop
// was fully drained before returning (spec §6). On any instruction
// error the caller is expected to abort the underlying kernel
// transaction; Run itself does not call System.Finish.
func (p *Processor) Run(m Manifest) error {
	for _, inst := range m.Instructions {
		if err := p.exec(inst); err != nil {
			return utils.Wrap(err, "manifest instruction "+inst.Name+" (line "+itoa(inst.Line)+")")
		}
	}
	return p.worktop.AssertAllEmpty()
}

func (p *Processor) exec(inst Instruction) error {
	switch inst.Name {
	case "TAKE_FROM_WORKTOP":
		return p.takeFromWorktop(inst)
	case "TAKE_ALL_FROM_WORKTOP":
		return p.takeAllFromWorktop(inst)
	case "RETURN_TO_WORKTOP":
		return p.returnToWorktop(inst)
	case "ASSERT_WORKTOP_CONTAINS":
		return p.assertWorktopContains(inst)
	case "CREATE_PROOF_FROM_BUCKET_OF_AMOUNT":
		return p.createProofFromBucketOfAmount(inst)
	case "CLONE_PROOF":
		return p.cloneProof(inst)
	case "DROP_PROOF":
		return p.dropProof(inst)
	case "DROP_ALL_PROOFS":
		for _, pr := range p.proofs {
			pr.Release()
		}
		p.proofs = make(map[int]*core.Proof)
		return nil
	case "LOCK_FEE":
		return p.lockFee(inst)
	case "CALL_METHOD":
		return p.callMethod(inst)
	case "CALL_FUNCTION":
		return p.callFunction(inst)
	case "MINT_FUNGIBLE":
		return p.mintFungible(inst)
	case "MINT_NON_FUNGIBLE":
		return p.mintNonFungible(inst)
	default:
		return utils.SystemUpstream("ParserError", "unsupported manifest instruction: "+inst.Name)
	}
}

func (p *Processor) resolveAddress(arg Arg) (core.NodeID, error) {
	if arg.Kind != ArgAddress {
		return core.NodeID{}, utils.Application("InvalidArgument", "expected an Address(...) literal")
	}
	_, id, err := core.DecodeBech32m(arg.Text)
	return id, err
}

func (p *Processor) resolveDecimal(arg Arg) (core.Decimal, error) {
	if arg.Kind != ArgDecimal && arg.Kind != ArgNumber {
		return core.Decimal{}, utils.Application("InvalidArgument", "expected a numeric literal")
	}
	d, ok := core.ParseDecimal(arg.Text)
	if !ok {
		return core.Decimal{}, utils.Application("InvalidArgument", "malformed decimal literal: "+arg.Text)
	}
	return d, nil
}

func (p *Processor) nextNodeID(entityType core.EntityType) core.NodeID {
	return p.system.Kernel().AllocateNodeID(entityType)
}

func (p *Processor) takeFromWorktop(inst Instruction) error {
	if len(inst.Args) != 3 {
		return utils.Application("InvalidArgument", "TAKE_FROM_WORKTOP expects (resource, amount, Bucket(name))")
	}
	resource, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	amount, err := p.resolveDecimal(inst.Args[1])
	if err != nil {
		return err
	}
	bucketArg := inst.Args[2]
	id := p.nextNodeID(core.EntityInternalFungibleVault)
	bucket, err := p.worktop.TakeAmount(id, resource, amount)
	if err != nil {
		return err
	}
	p.buckets[indexFromArg(bucketArg)] = bucket
	return nil
}

func (p *Processor) takeAllFromWorktop(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "TAKE_ALL_FROM_WORKTOP expects (resource, Bucket(name))")
	}
	resource, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	id := p.nextNodeID(core.EntityInternalFungibleVault)
	bucket, err := p.worktop.TakeAll(id, resource)
	if err != nil {
		return err
	}
	p.buckets[indexFromArg(inst.Args[1])] = bucket
	return nil
}

func (p *Processor) returnToWorktop(inst Instruction) error {
	if len(inst.Args) != 1 {
		return utils.Application("InvalidArgument", "RETURN_TO_WORKTOP expects (Bucket(name))")
	}
	bucket, ok := p.buckets[indexFromArg(inst.Args[0])]
	if !ok {
		return utils.Application("BucketNotFound", "unknown bucket reference")
	}
	return p.worktop.PutBucket(bucket)
}

func (p *Processor) assertWorktopContains(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "ASSERT_WORKTOP_CONTAINS expects (resource, amount)")
	}
	resource, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	amount, err := p.resolveDecimal(inst.Args[1])
	if err != nil {
		return err
	}
	probe, err := p.worktop.TakeAmount(p.nextNodeID(core.EntityInternalFungibleVault), resource, amount)
	if err != nil {
		return utils.Application("WorktopAssertionFailed", "worktop does not hold the asserted amount")
	}
	return p.worktop.PutBucket(probe)
}

func (p *Processor) createProofFromBucketOfAmount(inst Instruction) error {
	if len(inst.Args) != 3 {
		return utils.Application("InvalidArgument", "CREATE_PROOF_FROM_BUCKET_OF_AMOUNT expects (Bucket(name), amount, Proof(name))")
	}
	bucket, ok := p.buckets[indexFromArg(inst.Args[0])]
	if !ok {
		return utils.Application("BucketNotFound", "unknown bucket reference")
	}
	amount, err := p.resolveDecimal(inst.Args[1])
	if err != nil {
		return err
	}
	proof, err := bucket.CreateProofOfAmount(p.nextNodeID(core.EntityInternalGenericComponent), amount)
	if err != nil {
		return err
	}
	p.proofs[indexFromArg(inst.Args[2])] = proof
	p.system.CurrentAuthZone().PushProof(proof)
	return nil
}

// lockFee debits the fee amount straight out of a previously registered
// vault (LOCK_FEE(Address(vault_address), amount); spec §5, costing).
func (p *Processor) lockFee(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "LOCK_FEE expects (Address(vault), amount)")
	}
	vaultAddr, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	amount, err := p.resolveDecimal(inst.Args[1])
	if err != nil {
		return err
	}
	vault, ok := p.system.VaultOf(vaultAddr)
	if !ok {
		return utils.Application("VaultNotFound", "no vault registered at that address")
	}
	return p.system.LockFee(vault, amount)
}

func (p *Processor) cloneProof(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "CLONE_PROOF expects (Proof(src), Proof(dst))")
	}
	src, ok := p.proofs[indexFromArg(inst.Args[0])]
	if !ok {
		return utils.Application("ProofNotFound", "unknown proof reference")
	}
	clone := src.Clone(p.nextNodeID(core.EntityInternalGenericComponent))
	p.proofs[indexFromArg(inst.Args[1])] = clone
	return nil
}

func (p *Processor) dropProof(inst Instruction) error {
	if len(inst.Args) != 1 {
		return utils.Application("InvalidArgument", "DROP_PROOF expects (Proof(name))")
	}
	idx := indexFromArg(inst.Args[0])
	if pr, ok := p.proofs[idx]; ok {
		pr.Release()
	}
	delete(p.proofs, idx)
	return nil
}

func (p *Processor) mintFungible(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "MINT_FUNGIBLE expects (resource, amount)")
	}
	resource, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	amount, err := p.resolveDecimal(inst.Args[1])
	if err != nil {
		return err
	}
	mgr, ok := p.system.ResourceManagerOf(resource)
	if !ok {
		return utils.Application("ResourceManagerNotFound", "no resource manager registered at that address")
	}
	bucket, err := mgr.MintFungible(p.nextNodeID(core.EntityInternalFungibleVault), amount, p.system.AuthZoneStack())
	if err != nil {
		return err
	}
	return p.worktop.PutBucket(bucket)
}

func (p *Processor) mintNonFungible(inst Instruction) error {
	if len(inst.Args) != 2 {
		return utils.Application("InvalidArgument", "MINT_NON_FUNGIBLE expects (resource, Map(id -> data))")
	}
	resource, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	mgr, ok := p.system.ResourceManagerOf(resource)
	if !ok {
		return utils.Application("ResourceManagerNotFound", "no resource manager registered at that address")
	}
	entries := inst.Args[1].Children
	units := make(map[core.NonFungibleLocalID][]byte, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		units[core.NonFungibleLocalID(entries[i].Text)] = []byte(entries[i+1].Text)
	}
	bucket, err := mgr.MintNonFungible(p.nextNodeID(core.EntityInternalNonFungibleVault), units, p.system.AuthZoneStack())
	if err != nil {
		return err
	}
	return p.worktop.PutBucket(bucket)
}

func (p *Processor) callMethod(inst Instruction) error {
	if len(inst.Args) < 2 {
		return utils.Application("InvalidArgument", "CALL_METHOD expects (component_address, method_name, ...)")
	}
	object, err := p.resolveAddress(inst.Args[0])
	if err != nil {
		return err
	}
	if inst.Args[1].Kind != ArgString {
		return utils.Application("InvalidArgument", "method name must be a string literal")
	}
	argNodes, payload := p.gatherArgNodes(inst.Args[2:])
	_, err = p.system.CallMethod(object, "", inst.Args[1].Text, argNodes, payload)
	return err
}

func (p *Processor) callFunction(inst Instruction) error {
	if len(inst.Args) < 3 {
		return utils.Application("InvalidArgument", "CALL_FUNCTION expects (package_address, blueprint_name, function_name, ...)")
	}
	if inst.Args[1].Kind != ArgString || inst.Args[2].Kind != ArgString {
		return utils.Application("InvalidArgument", "blueprint/function name must be string literals")
	}
	argNodes, payload := p.gatherArgNodes(inst.Args[3:])
	_, err := p.system.CallFunction(inst.Args[1].Text, inst.Args[2].Text, argNodes, payload)
	return err
}

// gatherArgNodes pulls bucket/proof references out of a call's
// trailing arguments (they become owned argument nodes passed into
// the callee frame) and renders the remaining literal arguments into
// an opaque payload blob for the callee to decode itself.
func (p *Processor) gatherArgNodes(args []Arg) ([]core.NodeID, []byte) {
	var nodes []core.NodeID
	var payload []byte
	for _, a := range args {
		switch a.Kind {
		case ArgBucketRef:
			if b, ok := p.buckets[indexFromArg(a)]; ok {
				nodes = append(nodes, b.ID)
			}
		case ArgProofRef:
			if pr, ok := p.proofs[indexFromArg(a)]; ok {
				nodes = append(nodes, pr.ID)
			}
		default:
			payload = append(payload, []byte(a.Text)...)
		}
	}
	return nodes, payload
}

// indexFromArg recovers the stable name-table index the parser
// assigned to a Bucket/Proof reference when it first saw that name.
func indexFromArg(a Arg) int { return a.Index }
