package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	evicted := c.Set("d", 4)

	assert.Equal(t, []string{"a"}, evicted)
	assert.False(t, c.Contains("a"))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"d", "c", "b"}, c.Keys())
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New[string, int](3, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	evicted := c.Set("d", 4)
	assert.Equal(t, []string{"b"}, evicted)
	assert.True(t, c.Contains("a"))
}

func TestPeekDoesNotRefresh(t *testing.T) {
	c := New[string, int](2, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Peek("a")
	require.True(t, ok)

	c.Set("c", 3)
	assert.False(t, c.Contains("a"))
}

func TestUpdateReplacesValueAndWeight(t *testing.T) {
	c := New[string, string](10, func(_ string, v string) int64 { return int64(len(v)) })
	c.Set("a", "xxxx")
	c.Set("b", "yyyy")
	assert.Equal(t, int64(8), c.Weight())

	c.Set("a", "z")
	assert.Equal(t, int64(5), c.Weight())
	v, _ := c.Get("a")
	assert.Equal(t, "z", v)
}

func TestWeightedEvictionDropsUntilFits(t *testing.T) {
	c := New[string, string](10, func(_ string, v string) int64 { return int64(len(v)) })
	c.Set("a", "aaaa")
	c.Set("b", "bbbb")
	evicted := c.Set("c", "cccccccc")

	assert.Equal(t, []string{"a", "b"}, evicted)
	assert.Equal(t, int64(8), c.Weight())
	assert.Equal(t, 1, c.Len())
}

func TestOversizedEntryEvictsItself(t *testing.T) {
	c := New[string, string](3, func(_ string, v string) int64 { return int64(len(v)) })
	c.Set("a", "a")
	evicted := c.Set("big", "bigger")

	assert.ElementsMatch(t, []string{"a", "big"}, evicted)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Weight())
}

func TestRemoveAndClear(t *testing.T) {
	c := New[int, int](5, nil)
	for i := 0; i < 5; i++ {
		c.Set(i, i*i)
	}

	v, ok := c.Remove(3)
	require.True(t, ok)
	assert.Equal(t, 9, v)
	_, ok = c.Remove(3)
	assert.False(t, ok)
	assert.Equal(t, int64(4), c.Weight())

	dump := c.Dump()
	assert.Equal(t, map[int]int{0: 0, 1: 1, 2: 4, 4: 16}, dump)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Weight())
	assert.Empty(t, c.Keys())

	// still usable after clear
	c.Set(7, 49)
	assert.Equal(t, []int{7}, c.Keys())
}

func TestRemoveHeadAndTailKeepsLinksConsistent(t *testing.T) {
	c := New[string, int](10, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Remove("c") // head
	c.Remove("a") // tail
	assert.Equal(t, []string{"b"}, c.Keys())

	c.Set("d", 4)
	assert.Equal(t, []string{"d", "b"}, c.Keys())
}
