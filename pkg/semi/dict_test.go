package semi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDict(t *testing.T) *dictObject {
	t.Helper()
	return newDictObject(newHeap())
}

func Test_dictObject_SetGet(t *testing.T) {
	d := newTestDict(t)

	_, ok := d.Get(IntValue(1))
	require.False(t, ok, "empty dict should report missing key")

	d.Set(IntValue(1), IntValue(100))
	d.Set(IntValue(2), IntValue(200))

	v, ok := d.Get(IntValue(1))
	require.True(t, ok)
	assert.Equal(t, int64(100), v.AsInt())

	v, ok = d.Get(IntValue(2))
	require.True(t, ok)
	assert.Equal(t, int64(200), v.AsInt())

	assert.Equal(t, 2, d.Len())
}

func Test_dictObject_OverwriteExistingKey(t *testing.T) {
	d := newTestDict(t)
	d.Set(IntValue(1), IntValue(100))
	d.Set(IntValue(1), IntValue(999))

	v, ok := d.Get(IntValue(1))
	require.True(t, ok)
	assert.Equal(t, int64(999), v.AsInt())
	assert.Equal(t, 1, d.Len(), "overwriting a key must not grow the dict")
}

func Test_dictObject_Delete(t *testing.T) {
	d := newTestDict(t)
	d.Set(IntValue(1), IntValue(100))
	d.Set(IntValue(2), IntValue(200))

	require.True(t, d.Delete(IntValue(1)))
	require.False(t, d.Delete(IntValue(1)), "deleting twice reports absent the second time")

	_, ok := d.Get(IntValue(1))
	assert.False(t, ok)

	v, ok := d.Get(IntValue(2))
	require.True(t, ok)
	assert.Equal(t, int64(200), v.AsInt())
	assert.Equal(t, 1, d.Len())
}

func Test_dictObject_GrowPreservesEntries(t *testing.T) {
	d := newTestDict(t)
	const n = 200 // comfortably past dictMinCapacity's growth threshold
	for i := 0; i < n; i++ {
		d.Set(IntValue(int64(i)), IntValue(int64(i*i)))
	}
	require.Equal(t, n, d.Len())
	for i := 0; i < n; i++ {
		v, ok := d.Get(IntValue(int64(i)))
		require.True(t, ok, "key %d missing after growth", i)
		assert.Equal(t, int64(i*i), v.AsInt())
	}
}

func Test_dictObject_EachIsInsertionOrder(t *testing.T) {
	d := newTestDict(t)
	order := []int64{5, 1, 3, 2, 4}
	for _, k := range order {
		d.Set(IntValue(k), IntValue(k*10))
	}

	var seen []int64
	d.Each(func(k, v Value) {
		seen = append(seen, k.AsInt())
		assert.Equal(t, k.AsInt()*10, v.AsInt())
	})
	assert.Equal(t, order, seen)
}

func Test_dictObject_EachSkipsTombstones(t *testing.T) {
	d := newTestDict(t)
	d.Set(IntValue(1), IntValue(10))
	d.Set(IntValue(2), IntValue(20))
	d.Set(IntValue(3), IntValue(30))
	d.Delete(IntValue(2))

	var seen []int64
	d.Each(func(k, v Value) { seen = append(seen, k.AsInt()) })
	assert.Equal(t, []int64{1, 3}, seen)
}

func Test_dictObject_StringKeys(t *testing.T) {
	d := newTestDict(t)
	d.Set(InlineStringValue("a"), IntValue(1))
	d.Set(InlineStringValue("bb"), IntValue(2))

	v, ok := d.Get(InlineStringValue("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), v.AsInt())

	_, ok = d.Get(InlineStringValue("zz"))
	assert.False(t, ok)
}
