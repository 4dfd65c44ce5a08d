package value_test

import (
	"testing"

	"github.com/procbt/engine/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	assert.True(t, value.Empty.IsEmpty())
	v := value.New("int", 42)
	assert.False(t, v.IsEmpty())
}

func TestFieldFromMap(t *testing.T) {
	v := value.New("struct", map[string]any{
		"status": map[string]any{"code": float64(7)},
	})

	field, ok := v.Field("status.code")
	require.True(t, ok)
	assert.Equal(t, float64(7), field.Raw())

	_, ok = v.Field("missing.path")
	assert.False(t, ok)
}

func TestAssignIntoEmpty(t *testing.T) {
	dst := value.Empty
	src := value.New("int", 5)

	result, err := dst.Assign(src)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Raw())
}

func TestAssignTypeMismatch(t *testing.T) {
	dst := value.New("int", 1)
	src := value.New("string", "hi")

	_, err := dst.Assign(src)
	assert.Error(t, err)
}

func TestAssignDynamicMap(t *testing.T) {
	dst := value.New("struct", map[string]any{"a": 1})
	src := value.New("other", map[string]any{"b": 2})

	result, err := dst.Assign(src)
	require.NoError(t, err)
	assert.Equal(t, src.Raw(), result.Raw())
}

func TestParseJSON(t *testing.T) {
	v, err := value.ParseJSON("array", `[1,0,2]`)
	require.NoError(t, err)
	arr, ok := v.Raw().([]any)
	require.True(t, ok)
	assert.Len(t, arr, 3)
}
