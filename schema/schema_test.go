package schema

import (
	"testing"

	"github.com/synnergy-network/corevm/sbor"
)

func TestCompareIdenticalSchemasIsCompatible(t *testing.T) {
	base := map[string]Node{
		"Counter": {Kind: sbor.TypeTuple, Fields: []NamedNode{
			{Name: "value", Node: Node{Kind: sbor.TypeU64}},
		}},
	}
	res := Compare(base, base, RequireEquality())
	if !res.IsCompatible() {
		t.Fatalf("expected identical schemas to compare compatible, got %v", res.Diagnostics)
	}
}

func TestRequireEqualityRejectsNewType(t *testing.T) {
	base := map[string]Node{
		"Counter": {Kind: sbor.TypeU64},
	}
	compared := map[string]Node{
		"Counter": {Kind: sbor.TypeU64},
		"Gauge":   {Kind: sbor.TypeU64},
	}
	res := Compare(base, compared, RequireEquality())
	if res.IsCompatible() {
		t.Fatalf("expected new type to be rejected under RequireEquality")
	}
}

func TestAllowExtensionAllowsNewTypeAndField(t *testing.T) {
	base := map[string]Node{
		"Counter": {Kind: sbor.TypeTuple, Fields: []NamedNode{
			{Name: "value", Node: Node{Kind: sbor.TypeU64}},
		}},
	}
	compared := map[string]Node{
		"Counter": {Kind: sbor.TypeTuple, Fields: []NamedNode{
			{Name: "value", Node: Node{Kind: sbor.TypeU64}},
			{Name: "label", Node: Node{Kind: sbor.TypeString}},
		}},
		"Gauge": {Kind: sbor.TypeU64},
	}
	res := Compare(base, compared, AllowExtension())
	if !res.IsCompatible() {
		t.Fatalf("expected extension to be compatible, got %v", res.Diagnostics)
	}
}

func TestMissingFieldIsAlwaysIncompatible(t *testing.T) {
	base := map[string]Node{
		"Counter": {Kind: sbor.TypeTuple, Fields: []NamedNode{
			{Name: "value", Node: Node{Kind: sbor.TypeU64}},
			{Name: "label", Node: Node{Kind: sbor.TypeString}},
		}},
	}
	compared := map[string]Node{
		"Counter": {Kind: sbor.TypeTuple, Fields: []NamedNode{
			{Name: "value", Node: Node{Kind: sbor.TypeU64}},
		}},
	}
	res := Compare(base, compared, AllowExtension())
	if res.IsCompatible() {
		t.Fatalf("expected dropped field to be rejected even under AllowExtension")
	}
}

func TestEnumVariantArityChangeDetected(t *testing.T) {
	base := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: nil},
		}},
	}
	compared := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: []NamedNode{
				{Name: "since", Node: Node{Kind: sbor.TypeU64}},
			}},
		}},
	}
	res := Compare(base, compared, AllowExtension())
	if res.IsCompatible() {
		t.Fatalf("expected variant arity change to be flagged")
	}
}

func TestRequireEqualityRejectsNewEnumVariant(t *testing.T) {
	base := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: nil},
		}},
	}
	compared := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: nil},
			{Discriminator: 1, Name: "Retired", Fields: nil},
		}},
	}
	res := Compare(base, compared, RequireEquality())
	if res.IsCompatible() {
		t.Fatalf("expected new enum variant to be rejected under RequireEquality")
	}
}

func TestAllowExtensionAllowsNewEnumVariant(t *testing.T) {
	base := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: nil},
		}},
	}
	compared := map[string]Node{
		"Status": {Kind: sbor.TypeEnum, Variants: []Variant{
			{Discriminator: 0, Name: "Active", Fields: nil},
			{Discriminator: 1, Name: "Retired", Fields: nil},
		}},
	}
	res := Compare(base, compared, AllowExtension())
	if !res.IsCompatible() {
		t.Fatalf("expected new enum variant to be allowed under AllowExtension, got %v", res.Diagnostics)
	}
}

func TestKindChangeAlwaysIncompatible(t *testing.T) {
	base := map[string]Node{"X": {Kind: sbor.TypeU64}}
	compared := map[string]Node{"X": {Kind: sbor.TypeString}}
	res := Compare(base, compared, AllowExtension())
	if res.IsCompatible() {
		t.Fatalf("expected kind change to be rejected")
	}
}

func TestDiagnosticStringIncludesPath(t *testing.T) {
	d := Diagnostic{Path: []string{"Counter", "value"}, Message: "kind changed"}
	if got := d.String(); got != "Counter.value: kind changed" {
		t.Fatalf("unexpected diagnostic string: %s", got)
	}
}
