package bridge

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreservesKeyOrder(t *testing.T) {
	v, err := Decode([]byte(`{"zeta":1,"alpha":{"y":true,"x":null},"mid":[1,"two",3.5]}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok, "expected *Object, got %T", v)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	inner, _ := obj.Get("alpha")
	assert.Equal(t, []string{"y", "x"}, inner.(*Object).Keys())

	mid, _ := obj.Get("mid")
	assert.Equal(t, []any{1.0, "two", 3.5}, mid)
}

func TestDecodeDuplicateKeysKeepFirstPosition(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)

	obj := v.(*Object)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	a, _ := obj.Get("a")
	assert.Equal(t, 3.0, a)
}

func TestDecodeErrors(t *testing.T) {
	inputs := []string{
		``,
		`{`,
		`{"a" 1}`,
		`[1,]`,
		`1 2`,
		`{"a":1}x`,
		`1e400`,
		strings.Repeat("[", MaxDepth+2) + strings.Repeat("]", MaxDepth+2),
	}
	for _, in := range inputs {
		_, err := Decode([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`true`,
		`0`,
		`-12.5`,
		`"hello run it"`,
		`"quote \" and <html> & unicode é"`,
		`[]`,
		`{}`,
		`{"code":"hello run it"}`,
		`{"b":[1,{"d":false,"c":null}],"a":"x"}`,
	}
	for _, in := range inputs {
		v, err := Decode([]byte(in))
		require.NoError(t, err, in)

		out, err := Encode(v)
		require.NoError(t, err, in)

		again, err := Decode(out)
		require.NoError(t, err, string(out))
		assert.True(t, Equal(v, again), "round trip of %s produced %s", in, out)
	}
}

func TestEncodeKeepsOrderAndHTML(t *testing.T) {
	obj := NewObject()
	obj.Set("z", "<b>")
	obj.Set("a", 1)

	out, err := Encode(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"<b>","a":1}`, string(out))
}

func TestEncodeRejectsUnrepresentable(t *testing.T) {
	_, err := Encode([]any{1.0, math.NaN()})
	var me *MarshalError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "$[1]", me.Path)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Encode(map[string]any{"ch": make(chan int)})
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "$.ch", me.Path)
}

func TestEncodeGoMapsSorted(t *testing.T) {
	out, err := Encode(map[string]any{"b": 1, "a": []any{int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[2],"b":1}`, string(out))
}

func TestObjectJSONMethods(t *testing.T) {
	var obj Object
	require.NoError(t, obj.UnmarshalJSON([]byte(`{"k2":"v","k1":2}`)))
	assert.Equal(t, []string{"k2", "k1"}, obj.Keys())

	out, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"k2":"v","k1":2}`, string(out))

	assert.Error(t, obj.UnmarshalJSON([]byte(`[1]`)))
}

func TestEqual(t *testing.T) {
	a := NewObject()
	a.Set("x", 1.0)
	a.Set("y", []any{"s"})

	b := NewObject()
	b.Set("x", 1)
	b.Set("y", []any{"s"})

	c := NewObject()
	c.Set("y", []any{"s"})
	c.Set("x", 1.0)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c), "order matters")
	assert.False(t, Equal(1.0, "1"))
	assert.False(t, Equal([]any{1.0}, []any{1.0, 2.0}))
	assert.True(t, Equal(nil, nil))
}
