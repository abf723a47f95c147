package options

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStrings(t *testing.T) {
	var src Source
	require.NoError(t, json.Unmarshal([]byte(`["Startup","Growth"]`), &src))
	assert.Equal(t, KindStrings, src.Kind)
	assert.Equal(t, []Option{{Value: "Startup", Label: "Startup"}, {Value: "Growth", Label: "Growth"}}, Normalize(src))
}

func TestNormalizePairsWithNumbers(t *testing.T) {
	var src Source
	require.NoError(t, json.Unmarshal([]byte(`[{"value":1,"label":"Low"},{"value":"2"}]`), &src))
	assert.Equal(t, KindPairs, src.Kind)
	assert.Equal(t, []Option{{Value: "1", Label: "Low"}, {Value: "2", Label: "2"}}, Normalize(src))
}

func TestNormalizeNumbersList(t *testing.T) {
	opts, err := Parse(`[1, 2.5, "x"]`)
	require.NoError(t, err)
	assert.Equal(t, []Option{{"1", "1"}, {"2.5", "2.5"}, {"x", "x"}}, opts)
}

func TestParseEmptyAndNull(t *testing.T) {
	opts, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, opts)
	opts, err = Parse("null")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestRejectsNonScalar(t *testing.T) {
	_, err := Parse(`[["nested"]]`)
	assert.Error(t, err)
	_, err = Parse(`{"value":"a"}`)
	assert.Error(t, err)
	_, err = Parse(`[{"value":true}]`)
	assert.Error(t, err)
}

func TestMarshalIsCanonical(t *testing.T) {
	b, err := json.Marshal(FromStrings("a"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"value":"a","label":"a"}]`, string(b))

	enc, err := Encode([]Option{{Value: "v", Label: "L"}})
	require.NoError(t, err)
	back, err := Parse(enc)
	require.NoError(t, err)
	assert.True(t, Contains(back, "v"))
	assert.False(t, Contains(back, "L"))
}
