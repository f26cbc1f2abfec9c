package sbor

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"unit", Unit()},
		{"bool", Bool(true)},
		{"u64", U64(42)},
		{"string", String("hello")},
		{"bytes", Bytes([]byte{1, 2, 3})},
		{"array", Array(U8(1), U8(2), U8(3))},
		{"tuple", Tuple(String("a"), Bool(false))},
		{"map", Map(MapEntry{Key: String("k"), Value: U64(1)})},
		{"enum", Enum(1, String("variant-field"))},
		{"own", Own([]byte{0xaa, 0xbb})},
		{"decimal", DecimalLiteral("1.500000000000000000")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.Kind != tc.v.Kind {
				t.Fatalf("kind mismatch: want %d got %d", tc.v.Kind, decoded.Kind)
			}
		})
	}
}

func TestSchemaValidateTupleArity(t *testing.T) {
	schema := TypeSchema{Kind: TypeTuple, Elements: []TypeSchema{{Kind: TypeString}, {Kind: TypeBool}}}
	if err := Validate(schema, Tuple(String("a"), Bool(true))); err != nil {
		t.Fatalf("expected valid tuple, got %v", err)
	}
	if err := Validate(schema, Tuple(String("a"))); err == nil {
		t.Fatalf("expected arity mismatch error")
	}
}

func TestSchemaValidateEnumVariant(t *testing.T) {
	schema := TypeSchema{Kind: TypeEnum, Variants: map[byte][]TypeSchema{
		0: {},
		1: {{Kind: TypeU64}},
	}}
	if err := Validate(schema, Enum(1, U64(5))); err != nil {
		t.Fatalf("expected valid enum variant 1, got %v", err)
	}
	if err := Validate(schema, Enum(2)); err == nil {
		t.Fatalf("expected unknown discriminator error")
	}
}
