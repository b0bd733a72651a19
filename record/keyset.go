package record

import "sort"

// KeySet is a set of changed keys, usually in "recordKey.fieldKey" form.
type KeySet map[string]struct{}

// Add inserts keys into the set.
func (s KeySet) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Union adds every member of other to s.
func (s KeySet) Union(other KeySet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Has reports whether k is a member.
func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the members in ascending order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
