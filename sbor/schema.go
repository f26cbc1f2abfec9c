package sbor

import "fmt"

// TypeSchema describes the shape a Value must have: its TypeID plus,
// for container kinds, the schema of its elements (spec §5, "schema
// type-id validation" — the structural half of schema comparison
// lives here; the cross-version diffing lives in package schema).
type TypeSchema struct {
	Kind     TypeID
	Element  *TypeSchema   // Array
	Elements []TypeSchema  // Tuple, positional
	MapKey   *TypeSchema
	MapValue *TypeSchema
	Variants map[byte][]TypeSchema // Enum: discriminator -> field schemas
}

// Validate reports whether v structurally conforms to schema,
// returning a description of the first mismatch found.
func Validate(schema TypeSchema, v Value) error {
	if schema.Kind != v.Kind {
		return fmt.Errorf("expected type %d, got %d", schema.Kind, v.Kind)
	}
	switch schema.Kind {
	case TypeArray:
		if schema.Element == nil {
			return nil
		}
		for i, item := range v.Items {
			if err := Validate(*schema.Element, item); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
	case TypeTuple:
		if len(schema.Elements) != len(v.Items) {
			return fmt.Errorf("tuple arity mismatch: expected %d, got %d", len(schema.Elements), len(v.Items))
		}
		for i, elemSchema := range schema.Elements {
			if err := Validate(elemSchema, v.Items[i]); err != nil {
				return fmt.Errorf("tuple[%d]: %w", i, err)
			}
		}
	case TypeMap:
		if schema.MapKey == nil || schema.MapValue == nil {
			return nil
		}
		for i, e := range v.Entries {
			if err := Validate(*schema.MapKey, e.Key); err != nil {
				return fmt.Errorf("map key[%d]: %w", i, err)
			}
			if err := Validate(*schema.MapValue, e.Value); err != nil {
				return fmt.Errorf("map value[%d]: %w", i, err)
			}
		}
	case TypeEnum:
		fieldSchemas, ok := schema.Variants[v.Variant]
		if !ok {
			return fmt.Errorf("unknown enum discriminator %d", v.Variant)
		}
		if len(fieldSchemas) != len(v.Fields) {
			return fmt.Errorf("enum variant %d arity mismatch: expected %d, got %d", v.Variant, len(fieldSchemas), len(v.Fields))
		}
		for i, fs := range fieldSchemas {
			if err := Validate(fs, v.Fields[i]); err != nil {
				return fmt.Errorf("enum variant %d field[%d]: %w", v.Variant, i, err)
			}
		}
	}
	return nil
}
