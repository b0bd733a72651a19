package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/normcache/field"
)

func TestNoKeyAlwaysNone(t *testing.T) {
	f := field.Object("hero").WithArguments(map[string]any{"id": "1"})
	assert.True(t, NoKey{}.FromFieldArguments(f, nil).IsNone())
	assert.True(t, NoKey{}.FromFieldRecordSet(f, map[string]any{"id": "1"}).IsNone())
}

func TestByIDFromRecordSet(t *testing.T) {
	f := field.Object("hero")
	r := ByID{}

	assert.Equal(t, CacheKey("1000"), r.FromFieldRecordSet(f, map[string]any{"id": "1000", "name": "Luke"}))
	assert.Equal(t, CacheKey("42"), r.FromFieldRecordSet(f, map[string]any{"id": float64(42)}))
	assert.Equal(t, CacheKey("7"), r.FromFieldRecordSet(f, map[string]any{"id": 7}))
	assert.True(t, r.FromFieldRecordSet(f, map[string]any{"name": "Luke"}).IsNone())
	assert.True(t, r.FromFieldRecordSet(f, map[string]any{"id": nil}).IsNone())
}

func TestByIDPrefixTypename(t *testing.T) {
	f := field.Object("hero")
	r := ByID{PrefixTypename: true}

	assert.Equal(t, CacheKey("Human:1000"), r.FromFieldRecordSet(f, map[string]any{"id": "1000", "__typename": "Human"}))
	assert.Equal(t, CacheKey("1000"), r.FromFieldRecordSet(f, map[string]any{"id": "1000"}))
	assert.True(t, r.FromFieldArguments(f.WithArguments(map[string]any{"id": "1"}), nil).IsNone())
}

func TestByIDFromArgumentsResolvesVariables(t *testing.T) {
	f := field.Object("character").WithArguments(map[string]any{"id": field.Variable{Name: "id"}})
	r := ByID{}

	assert.Equal(t, CacheKey("1002"), r.FromFieldArguments(f, field.Variables{"id": "1002"}))
	assert.True(t, r.FromFieldArguments(f, field.Variables{}).IsNone())

	custom := ByID{ArgumentName: "characterId"}
	g := field.Object("character").WithArguments(map[string]any{"characterId": "9"})
	assert.Equal(t, CacheKey("9"), custom.FromFieldArguments(g, nil))
}

func TestFuncAdapter(t *testing.T) {
	r := Func{RecordSet: func(_ field.Field, s map[string]any) CacheKey {
		if s["__typename"] == "Query" {
			return "ROOT"
		}
		return None
	}}
	assert.Equal(t, CacheKey("ROOT"), r.FromFieldRecordSet(field.Field{}, map[string]any{"__typename": "Query"}))
	assert.True(t, r.FromFieldArguments(field.Field{}, nil).IsNone())
}
