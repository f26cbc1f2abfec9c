package manifest

import "testing"

func parseOK(t *testing.T, src string) Manifest {
	t.Helper()
	p, err := NewParser(src, 20)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	m, err := p.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func TestParseSimpleCallMethod(t *testing.T) {
	src := `CALL_METHOD(Address("account_sim1abc"), "withdraw", 10);`
	m := parseOK(t, src)
	if len(m.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(m.Instructions))
	}
	inst := m.Instructions[0]
	if inst.Name != "CALL_METHOD" {
		t.Fatalf("expected CALL_METHOD, got %s", inst.Name)
	}
	if inst.Args[0].Kind != ArgAddress || inst.Args[0].Text != "account_sim1abc" {
		t.Fatalf("unexpected address arg: %+v", inst.Args[0])
	}
}

func TestParseBucketNameTableAssignsStableIndices(t *testing.T) {
	src := `
TAKE_FROM_WORKTOP(Address("resource_sim1xyz"), 10, Bucket("xrd"));
CALL_METHOD(Address("account_sim1abc"), "deposit", Bucket("xrd"));
`
	m := parseOK(t, src)
	if len(m.BucketNames) != 1 {
		t.Fatalf("expected 1 bucket name, got %d", len(m.BucketNames))
	}
	first := m.Instructions[0].Args[2]
	second := m.Instructions[1].Args[2]
	if first.Index != second.Index {
		t.Fatalf("expected both Bucket(\"xrd\") references to share an index, got %d vs %d", first.Index, second.Index)
	}
}

func TestParseRejectsUnknownConstructor(t *testing.T) {
	src := `CALL_METHOD(Bogus("x"), "m");`
	p, err := NewParser(src, 20)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected parse error for unknown constructor")
	}
}

func TestParseEnforcesMaxDepth(t *testing.T) {
	src := "CALL_METHOD(" + nestedArrays(25) + ");"
	p, err := NewParser(src, 20)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected depth-limit error")
	}
}

func nestedArrays(depth int) string {
	s := "1"
	for i := 0; i < depth; i++ {
		s = "Array(" + s + ")"
	}
	return s
}

func TestParseEnumNumericDiscriminator(t *testing.T) {
	src := `CALL_METHOD(Address("account_sim1abc"), "set_status", Enum<1>(Decimal("10")));`
	m := parseOK(t, src)
	arg := m.Instructions[0].Args[2]
	if arg.Kind != ArgEnum || arg.Variant != 1 {
		t.Fatalf("expected enum variant 1, got %+v", arg)
	}
	if len(arg.Children) != 1 || arg.Children[0].Kind != ArgDecimal || arg.Children[0].Text != "10" {
		t.Fatalf("unexpected enum field: %+v", arg.Children)
	}
}

func TestParseEnumStringDiscriminatorAlias(t *testing.T) {
	src := `CALL_METHOD(Address("account_sim1abc"), "set_rule", Enum<"AllowAll">());`
	m := parseOK(t, src)
	arg := m.Instructions[0].Args[2]
	if arg.Kind != ArgEnum || arg.Variant != 0 {
		t.Fatalf("expected AllowAll to resolve to discriminator 0, got %+v", arg)
	}
}

func TestParseEnumRejectsUnknownAlias(t *testing.T) {
	src := `CALL_METHOD(Address("x"), "m", Enum<"Bogus">());`
	p, err := NewParser(src, 20)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected parse error for unknown enum discriminator alias")
	}
}

func TestParseWrapperConstructors(t *testing.T) {
	src := `CALL_METHOD(
	Address("account_sim1abc"),
	"m",
	Decimal("12.5"),
	NonFungibleLocalId("#1#"),
	Blob("a1b2"),
	Expression("ENTIRE_WORKTOP")
);`
	m := parseOK(t, src)
	args := m.Instructions[0].Args[2:]
	cases := []struct {
		kind ArgKind
		text string
	}{
		{ArgDecimal, "12.5"},
		{ArgNonFungibleLocalID, "#1#"},
		{ArgBlob, "a1b2"},
		{ArgExpression, "ENTIRE_WORKTOP"},
	}
	for i, c := range cases {
		if args[i].Kind != c.kind || args[i].Text != c.text {
			t.Fatalf("arg %d: expected {%v %q}, got %+v", i, c.kind, c.text, args[i])
		}
	}
}

func TestParseAddressReservationAndNamedAddressShareNameTable(t *testing.T) {
	src := `
ALLOCATE_GLOBAL_ADDRESS(Address("package_sim1pkg"), "Blueprint", AddressReservation("res1"), NamedAddress("res1"));
CALL_METHOD(Address("account_sim1abc"), "m", AddressReservation("res1"), NamedAddress("res1"));
`
	m := parseOK(t, src)
	if len(m.AddressReservationNames) != 1 {
		t.Fatalf("expected 1 address reservation name, got %d", len(m.AddressReservationNames))
	}
	if len(m.NamedAddressNames) != 1 {
		t.Fatalf("expected 1 named address name, got %d", len(m.NamedAddressNames))
	}
	first := m.Instructions[0].Args[2]
	second := m.Instructions[1].Args[2]
	if first.Index != second.Index {
		t.Fatalf("expected stable index across AddressReservation(\"res1\") references, got %d vs %d", first.Index, second.Index)
	}
	firstNamed := m.Instructions[0].Args[3]
	secondNamed := m.Instructions[1].Args[3]
	if firstNamed.Index != secondNamed.Index {
		t.Fatalf("expected stable index across NamedAddress(\"res1\") references, got %d vs %d", firstNamed.Index, secondNamed.Index)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := NewLexer(`"unterminated`)
	if _, err := l.Next(); err == nil {
		t.Fatalf("expected InputDecodeError for unterminated string")
	}
}
