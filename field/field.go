// Package field describes the requested shape of a response (fields, their
// arguments and per-type nested field sets) and builds the canonical
// field-key identifying one field occurrence inside a record.
//
// Descriptors are produced by an external compiler/codegen step; this
// package only consumes them structurally.
package field

// Kind tells whether a field holds a leaf value or an object.
type Kind uint8

const (
	// KindScalar fields hold leaf values (lists of leaves included).
	// Structured custom scalars (maps) are kept opaque.
	KindScalar Kind = iota
	// KindObject fields hold objects or (nested) lists of objects.
	KindObject
)

func (k Kind) String() string {
	if k == KindObject {
		return "object"
	}
	return "scalar"
}

// Field describes one requested field.
type Field struct {
	// ResponseName is the key in the response tree (the alias, if any).
	ResponseName string
	// Name is the schema field name. Empty means ResponseName.
	Name      string
	Kind      Kind
	Arguments map[string]any
	// FieldSets select the nested fields of object fields, per concrete type.
	FieldSets []FieldSet
}

// FieldSet is the set of fields to read for objects of TypeCondition.
// An empty TypeCondition marks the default set.
type FieldSet struct {
	TypeCondition string
	Fields        []Field
}

// Variables are the operation variables bound for one request.
type Variables map[string]any

// Variable is an argument value that refers to an operation variable.
type Variable struct {
	Name string
}

// FieldName returns Name, falling back to ResponseName.
func (f Field) FieldName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ResponseName
}

// IsObject reports whether f holds objects.
func (f Field) IsObject() bool { return f.Kind == KindObject }

// Scalar is a convenience constructor for a scalar field without arguments.
func Scalar(name string) Field {
	return Field{ResponseName: name, Name: name, Kind: KindScalar}
}

// Object is a convenience constructor for an object field without arguments
// whose nested fields are the same for every concrete type.
func Object(name string, fields ...Field) Field {
	return Field{
		ResponseName: name,
		Name:         name,
		Kind:         KindObject,
		FieldSets:    []FieldSet{{Fields: fields}},
	}
}

// WithArguments returns a copy of f carrying args.
func (f Field) WithArguments(args map[string]any) Field {
	f.Arguments = args
	return f
}

// WithAlias returns a copy of f answered under alias in the response.
func (f Field) WithAlias(alias string) Field {
	f.Name = f.FieldName()
	f.ResponseName = alias
	return f
}

// Select picks the field set for an object of the given concrete type:
// the set whose TypeCondition equals typename, else the default set.
// It returns nil when neither exists.
func Select(sets []FieldSet, typename string) []Field {
	var def []Field
	found := false
	for _, s := range sets {
		if typename != "" && s.TypeCondition == typename {
			return s.Fields
		}
		if s.TypeCondition == "" && !found {
			def = s.Fields
			found = true
		}
	}
	return def
}
