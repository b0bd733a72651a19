package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BuildKey returns the canonical identity of f inside a record.
//
// Without arguments the key is the field name. Otherwise it is
// name(<json>) where <json> is the canonical JSON of the resolved
// arguments: variables substituted, object keys sorted at every level,
// nulls written explicitly. A variable missing from vars is left out of its
// enclosing object; inside an array it becomes null so positions hold.
//
// When every argument resolves to missing the key is the bare name.
//
// Resolution is single-level: a variable's value is not scanned for
// further Variable placeholders.
func BuildKey(f Field, vars Variables) (string, error) {
	name := f.FieldName()
	if len(f.Arguments) == 0 {
		return name, nil
	}
	args := ResolveArguments(f, vars)
	if len(args) == 0 {
		return name, nil
	}
	raw, err := canonicalJSON(args)
	if err != nil {
		return "", fmt.Errorf("field %q: encode arguments: %w", name, err)
	}
	var b strings.Builder
	b.Grow(len(name) + len(raw) + 2)
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(raw)
	b.WriteByte(')')
	return b.String(), nil
}

// ResolveArguments returns f's arguments with every Variable replaced by its
// bound value. Absent variables are dropped from objects.
func ResolveArguments(f Field, vars Variables) map[string]any {
	if len(f.Arguments) == 0 {
		return nil
	}
	return resolveObject(f.Arguments, vars)
}

func resolveObject(in map[string]any, vars Variables) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		rv, ok := resolve(v, vars)
		if !ok {
			continue
		}
		out[k] = rv
	}
	return out
}

// resolve reports ok=false for an unbound variable.
func resolve(v any, vars Variables) (any, bool) {
	switch tv := v.(type) {
	case Variable:
		bound, ok := vars[tv.Name]
		return bound, ok
	case *Variable:
		if tv == nil {
			return nil, true
		}
		bound, ok := vars[tv.Name]
		return bound, ok
	case map[string]any:
		return resolveObject(tv, vars), true
	case []any:
		out := make([]any, len(tv))
		for i, el := range tv {
			rv, ok := resolve(el, vars)
			if !ok {
				rv = nil
			}
			out[i] = rv
		}
		return out, true
	}
	return v, true
}

// canonicalJSON relies on encoding/json sorting map keys at every level.
func canonicalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
