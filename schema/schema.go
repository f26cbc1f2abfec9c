// Package schema compares two versions of a blueprint's type schema
// along independent axes — completeness, structure, metadata and
// validation — so a package republish can be checked for backwards
// compatibility before it is accepted (spec §5, "Schema comparison").
// It is grounded on the original implementation's schema_comparison
// module (spec §3 SUPPLEMENTED FEATURES), reworked into idiomatic Go:
// a single Settings struct with one field per axis, a walk that accumulates Diagnostics
// carrying the ancestor path to each mismatch, and two presets
// (RequireEquality, AllowExtension) covering the two comparisons a
// package publisher actually needs.
package schema

import (
	"fmt"
	"strings"

	"github.com/synnergy-network/corevm/sbor"
)

// Node is one named type definition in a blueprint's schema: either a
// leaf SBOR kind or a structured type with named fields/variants.
// Unlike sbor.TypeSchema (which only needs to validate a Value's
// shape at runtime) Node carries the field and variant *names* a
// schema comparison needs to detect renames and additions.
type Node struct {
	Kind     sbor.TypeID
	Fields   []NamedNode // struct-like: ordered named fields
	Variants []Variant   // enum-like
	Element  *Node       // array element type
}

type NamedNode struct {
	Name string
	Node Node
}

type Variant struct {
	Discriminator byte
	Name          string
	Fields        []NamedNode
}

// CompletenessMode controls whether the compared schema may add new
// top-level types the base schema never declared.
type CompletenessMode int

const (
	CompletenessDisallowNewTypes CompletenessMode = iota
	CompletenessAllowNewTypes
)

// NameChangeRule controls whether a field/variant may be renamed
// between versions.
type NameChangeRule int

const (
	NameChangeDisallow NameChangeRule = iota
	NameChangeAllowAdd
	NameChangeAllowAny
)

// ValidationMode names whether the compared schema's field types must
// equal the base schema's or may accept a superset of values.
// compareNode does not read Settings.Validation: a change of kind is
// reported under either mode, and no other validation difference is
// checked.
type ValidationMode int

const (
	ValidationRequireEqual ValidationMode = iota
	ValidationAllowWidening
)

// Settings bundles the four independent comparison axes.
type Settings struct {
	Completeness CompletenessMode
	NameChange   NameChangeRule
	Validation   ValidationMode
	AllowNewFields bool // a struct may gain fields the base schema did not declare
}

// RequireEquality is the strictest preset: used when comparing a
// blueprint schema against itself across a hot-reload, where any
// difference at all should be rejected.
func RequireEquality() Settings {
	return Settings{
		Completeness: CompletenessDisallowNewTypes,
		NameChange:   NameChangeDisallow,
		Validation:   ValidationRequireEqual,
	}
}

// AllowExtension is the preset used when republishing a package: new
// types, new struct fields and new enum variants are accepted; a
// removed type, field or variant, or a change of kind, is reported.
func AllowExtension() Settings {
	return Settings{
		Completeness:   CompletenessAllowNewTypes,
		NameChange:     NameChangeAllowAdd,
		Validation:     ValidationAllowWidening,
		AllowNewFields: true,
	}
}

// Diagnostic is one mismatch found during comparison, carrying the
// dotted ancestor path from the schema root so a package author can
// find it without re-deriving the recursive structure themselves.
type Diagnostic struct {
	Path    []string
	Message string
}

func (d Diagnostic) String() string {
	if len(d.Path) == 0 {
		return d.Message
	}
	return strings.Join(d.Path, ".") + ": " + d.Message
}

// Result is the outcome of comparing two named type sets.
type Result struct {
	Diagnostics []Diagnostic
}

func (r Result) IsCompatible() bool { return len(r.Diagnostics) == 0 }

// Compare walks base and compared's named top-level types under
// settings, returning every incompatibility found. Types present in
// compared but absent from base are "new"; whether that is permitted
// is governed by settings.Completeness.
func Compare(base, compared map[string]Node, settings Settings) Result {
	var res Result
	for name, baseNode := range base {
		comparedNode, ok := compared[name]
		if !ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Path: []string{name}, Message: "type present in base schema is missing from compared schema",
			})
			continue
		}
		compareNode(baseNode, comparedNode, settings, []string{name}, &res)
	}
	if settings.Completeness == CompletenessDisallowNewTypes {
		for name := range compared {
			if _, ok := base[name]; !ok {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Path: []string{name}, Message: "type introduced in compared schema but completeness settings disallow new types",
				})
			}
		}
	}
	return res
}

func compareNode(base, compared Node, settings Settings, path []string, res *Result) {
	if base.Kind != compared.Kind {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Path: path, Message: fmt.Sprintf("kind changed from %d to %d", base.Kind, compared.Kind),
		})
		return
	}

	if base.Element != nil && compared.Element != nil {
		compareNode(*base.Element, *compared.Element, settings, append(path, "[]"), res)
	}

	comparedFields := make(map[string]Node, len(compared.Fields))
	for _, f := range compared.Fields {
		comparedFields[f.Name] = f.Node
	}
	for _, bf := range base.Fields {
		cf, ok := comparedFields[bf.Name]
		if !ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Path: append(path, bf.Name), Message: "field present in base schema is missing from compared schema",
			})
			continue
		}
		compareNode(bf.Node, cf, settings, append(append([]string{}, path...), bf.Name), res)
	}
	if !settings.AllowNewFields {
		baseNames := make(map[string]bool, len(base.Fields))
		for _, bf := range base.Fields {
			baseNames[bf.Name] = true
		}
		for _, cf := range compared.Fields {
			if !baseNames[cf.Name] {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Path: append(path, cf.Name), Message: "field added in compared schema but settings disallow new fields",
				})
			}
		}
	}

	comparedVariants := make(map[byte]Variant, len(compared.Variants))
	for _, v := range compared.Variants {
		comparedVariants[v.Discriminator] = v
	}
	for _, bv := range base.Variants {
		cv, ok := comparedVariants[bv.Discriminator]
		if !ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Path: append(path, fmt.Sprintf("variant[%d]", bv.Discriminator)),
				Message: "enum variant present in base schema is missing from compared schema",
			})
			continue
		}
		if bv.Name != cv.Name && settings.NameChange == NameChangeDisallow {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Path: append(path, fmt.Sprintf("variant[%d]", bv.Discriminator)),
				Message: fmt.Sprintf("variant renamed from %q to %q", bv.Name, cv.Name),
			})
		}
		if len(bv.Fields) != len(cv.Fields) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Path: append(path, fmt.Sprintf("variant[%d]", bv.Discriminator)),
				Message: "variant field arity changed",
			})
			continue
		}
		for i := range bv.Fields {
			compareNode(bv.Fields[i].Node, cv.Fields[i].Node, settings, append(append([]string{}, path...), fmt.Sprintf("variant[%d].%s", bv.Discriminator, bv.Fields[i].Name)), res)
		}
	}
	if !settings.AllowNewFields {
		baseVariants := make(map[byte]bool, len(base.Variants))
		for _, bv := range base.Variants {
			baseVariants[bv.Discriminator] = true
		}
		for _, cv := range compared.Variants {
			if !baseVariants[cv.Discriminator] {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Path:    append(path, fmt.Sprintf("variant[%d]", cv.Discriminator)),
					Message: "enum variant added in compared schema but settings disallow new variants",
				})
			}
		}
	}
}
