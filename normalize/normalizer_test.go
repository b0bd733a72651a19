package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/normcache/cachekey"
	"github.com/unkn0wn-root/normcache/field"
	"github.com/unkn0wn-root/normcache/record"
)

func heroSets() []field.FieldSet {
	return []field.FieldSet{{Fields: []field.Field{
		field.Object("hero",
			field.Scalar("id"),
			field.Scalar("name"),
			field.Object("friends", field.Scalar("id"), field.Scalar("name")),
		),
	}}}
}

func heroTree() map[string]any {
	return map[string]any{
		"hero": map[string]any{
			"id":   "1000",
			"name": "Luke",
			"friends": []any{
				map[string]any{"id": "1001", "name": "Leia"},
			},
		},
	}
}

func TestNormalizeWithIDResolver(t *testing.T) {
	res, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, heroSets(), heroTree(), nil)
	require.NoError(t, err)

	assert.Equal(t, record.Ref(record.QueryRoot), res.Root)
	assert.Equal(t, []string{"1000", "1001", record.QueryRoot}, res.Keys())

	root := res.Records[record.QueryRoot]
	assert.Equal(t, record.Ref("1000"), root.Fields["hero"])

	hero := res.Records["1000"]
	assert.Equal(t, record.Scalar{V: "1000"}, hero.Fields["id"])
	assert.Equal(t, record.Scalar{V: "Luke"}, hero.Fields["name"])
	assert.Equal(t, record.List{record.Ref("1001")}, hero.Fields["friends"])

	leia := res.Records["1001"]
	assert.Len(t, leia.Fields, 2)
	assert.Equal(t, record.Scalar{V: "Leia"}, leia.Fields["name"])
}

func TestNormalizeWithoutKeysUsesPaths(t *testing.T) {
	res, err := New(nil).Normalize(record.QueryRoot, heroSets(), heroTree(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{record.QueryRoot, "QUERY_ROOT.hero", "QUERY_ROOT.hero.friends.0"}, res.Keys())
	assert.Equal(t, record.List{record.Ref("QUERY_ROOT.hero.friends.0")}, res.Records["QUERY_ROOT.hero"].Fields["friends"])
}

func TestNormalizeNoKeyDistinctRootsNeverCollide(t *testing.T) {
	n := New(nil)
	a, err := n.Normalize("ROOT_A", heroSets(), heroTree(), nil)
	require.NoError(t, err)
	b, err := n.Normalize("ROOT_B", heroSets(), heroTree(), nil)
	require.NoError(t, err)

	for k := range a.Records {
		_, clash := b.Records[k]
		assert.False(t, clash, "key %q produced under both roots", k)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New(cachekey.ByID{})
	first, err := n.Normalize(record.QueryRoot, heroSets(), heroTree(), nil)
	require.NoError(t, err)
	second, err := n.Normalize(record.QueryRoot, heroSets(), heroTree(), nil)
	require.NoError(t, err)

	require.Equal(t, first.Keys(), second.Keys())
	for k, r := range first.Records {
		assert.True(t, r.Equal(second.Records[k]), "record %q differs", k)
	}
}

func TestNormalizeFieldKeysIncludeArguments(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("name")).WithArguments(map[string]any{"episode": field.Variable{Name: "ep"}}),
	}}}
	tree := map[string]any{"hero": map[string]any{"name": "R2-D2"}}

	res, err := New(nil).Normalize(record.QueryRoot, sets, tree, field.Variables{"ep": "JEDI"})
	require.NoError(t, err)

	fk := `hero({"episode":"JEDI"})`
	assert.Equal(t, record.Ref(record.QueryRoot+"."+fk), res.Records[record.QueryRoot].Fields[fk])
}

func TestNormalizeMergesAliasesOfOneEntity(t *testing.T) {
	hero := field.Object("hero", field.Scalar("id"), field.Scalar("name"))
	heroWithHeight := field.Object("hero", field.Scalar("id"), field.Scalar("height")).WithAlias("tall")
	sets := []field.FieldSet{{Fields: []field.Field{hero, heroWithHeight}}}
	tree := map[string]any{
		"hero": map[string]any{"id": "1000", "name": "Luke"},
		"tall": map[string]any{"id": "1000", "height": 1.72},
	}

	res, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.NoError(t, err)

	luke := res.Records["1000"]
	assert.Equal(t, record.Scalar{V: "Luke"}, luke.Fields["name"])
	assert.Equal(t, record.Scalar{V: 1.72}, luke.Fields["height"])
}

func TestNormalizeInconsistentScalarIsFatal(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("id"), field.Scalar("name")),
		field.Object("other", field.Scalar("id"), field.Scalar("name")),
	}}}
	tree := map[string]any{
		"hero":  map[string]any{"id": "1000", "name": "Luke"},
		"other": map[string]any{"id": "1000", "name": "Vader"},
	}

	_, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentScalar)

	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "1000", me.Key)
	assert.Equal(t, "name", me.FieldKey)
}

func TestNormalizeLargeIntegersConflictExactly(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Scalar("n"),
		field.Scalar("n").WithAlias("m"),
	}}}
	tree := map[string]any{
		"n": int64(9007199254740992),
		"m": int64(9007199254740993),
	}

	_, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.ErrorIs(t, err, ErrInconsistentScalar)

	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, record.QueryRoot, me.Key)
	assert.Equal(t, "n", me.FieldKey)

	// the same value through another numeric kind still merges
	tree["m"] = uint64(9007199254740992)
	_, err = New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.NoError(t, err)
}

func TestNormalizeDifferentListsAreUnsupported(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("id"), field.Scalar("tags")),
		field.Object("other", field.Scalar("id"), field.Scalar("tags")),
	}}}
	tree := map[string]any{
		"hero":  map[string]any{"id": "1", "tags": []any{"a"}},
		"other": map[string]any{"id": "1", "tags": []any{"a", "b"}},
	}

	_, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMerge)
}

func TestNormalizeShapeMismatchIsUnsupported(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("id"), field.Scalar("tags")),
		field.Object("other", field.Scalar("id"), field.Scalar("tags")),
	}}}
	tree := map[string]any{
		"hero":  map[string]any{"id": "1", "tags": "a"},
		"other": map[string]any{"id": "1", "tags": []any{"a"}},
	}

	_, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMerge)
}

func TestNormalizeTypeConditions(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{{
		ResponseName: "hero",
		Kind:         field.KindObject,
		FieldSets: []field.FieldSet{
			{Fields: []field.Field{field.Scalar("__typename"), field.Scalar("id")}},
			{TypeCondition: "Droid", Fields: []field.Field{field.Scalar("__typename"), field.Scalar("id"), field.Scalar("primaryFunction")}},
		},
	}}}}
	tree := map[string]any{"hero": map[string]any{"__typename": "Droid", "id": "2001", "primaryFunction": "Astromech", "ignored": 1}}

	res, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.NoError(t, err)

	r2 := res.Records["2001"]
	assert.Equal(t, record.Scalar{V: "Astromech"}, r2.Fields["primaryFunction"])
	assert.Equal(t, "Droid", r2.Typename())
	_, ok := r2.Fields["ignored"]
	assert.False(t, ok)
}

func TestNormalizeNullsAndScalarLists(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("id"), field.Scalar("appearsIn"), field.Scalar("meta")),
		field.Object("villain", field.Scalar("id")),
	}}}
	meta := map[string]any{"lat": 1.5}
	tree := map[string]any{
		"hero":    map[string]any{"id": "1", "appearsIn": []any{"NEWHOPE", nil}, "meta": meta},
		"villain": nil,
	}

	res, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.NoError(t, err)

	assert.Equal(t, record.Scalar{V: nil}, res.Records[record.QueryRoot].Fields["villain"])
	hero := res.Records["1"]
	assert.Equal(t, record.List{record.Scalar{V: "NEWHOPE"}, record.Scalar{V: nil}}, hero.Fields["appearsIn"])
	assert.Equal(t, record.Scalar{V: meta}, hero.Fields["meta"])
}

func TestNormalizeObjectFieldWithScalarValueFails(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{field.Object("hero", field.Scalar("id"))}}}
	_, err := New(nil).Normalize(record.QueryRoot, sets, map[string]any{"hero": "oops"}, nil)
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestNormalizeSelfReferenceTerminates(t *testing.T) {
	sets := []field.FieldSet{{Fields: []field.Field{
		field.Object("hero", field.Scalar("id"), field.Object("friends", field.Scalar("id"), field.Object("friends", field.Scalar("id")))),
	}}}
	tree := map[string]any{"hero": map[string]any{
		"id": "1000",
		"friends": []any{map[string]any{
			"id":      "1001",
			"friends": []any{map[string]any{"id": "1000"}},
		}},
	}}

	res, err := New(cachekey.ByID{}).Normalize(record.QueryRoot, sets, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, record.List{record.Ref("1000")}, res.Records["1001"].Fields["friends"])
	assert.Equal(t, record.List{record.Ref("1001")}, res.Records["1000"].Fields["friends"])
}
