package manifest

// ArgKind is the literal shape of one manifest instruction argument
// (spec §6). Bucket/Proof references are resolved against the
// parser's name table before the instruction ever reaches the
// transaction processor.
type ArgKind int

const (
	ArgNumber ArgKind = iota
	ArgDecimal
	ArgString
	ArgBool
	ArgAddress
	ArgBucketRef
	ArgProofRef
	ArgArray
	ArgMap
	ArgEnum
	ArgNonFungibleLocalID
	ArgBlob
	ArgExpression
	ArgAddressReservationRef
	ArgNamedAddressRef
)

// Arg is one parsed instruction argument.
type Arg struct {
	Kind     ArgKind
	Text     string // literal text, or the referenced name for Bucket/Proof refs
	Index    int    // name-table index, set for ArgBucketRef/ArgProofRef
	Variant  byte   // ArgEnum discriminator
	Children []Arg  // ArgArray elements, ArgEnum fields, or ArgMap key/value pairs flattened
	Line     int
	Column   int
}

// Instruction is one parsed manifest instruction: an opcode name (e.g.
// "CALL_METHOD") plus its positional arguments (spec §6).
type Instruction struct {
	Name   string
	Args   []Arg
	Line   int
	Column int
}

// Manifest is the fully parsed instruction sequence produced by
// Parse, along with the per-transaction name tables assigning stable
// indices to Bucket/Proof/AddressReservation/NamedAddress names
// declared along the way (spec §4.9).
type Manifest struct {
	Instructions            []Instruction
	BucketNames             map[string]int
	ProofNames              map[string]int
	AddressReservationNames map[string]int
	NamedAddressNames       map[string]int
}
