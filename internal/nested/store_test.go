package nested

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_MissingPathReturnsEmptyStore(t *testing.T) {
	s := New()

	got := s.Get(MustPath("42", 3, "job"))
	child, ok := got.(*Store)
	require.True(t, ok, "expected *Store, got %T", got)
	assert.True(t, child.IsEmpty())

	// reads never create levels
	assert.Equal(t, 0, s.Len())
}

func TestSet_CreatesIntermediateLevels(t *testing.T) {
	s := New()
	s.Set(MustPath(1, 0, "jobA"), []string{"a", "b"})

	assert.Equal(t, []string{"1"}, s.Keys())
	assert.Equal(t, []string{"a", "b"}, s.Get(MustPath(1, 0, "jobA")))
	assert.IsType(t, &Store{}, s.Get(MustPath(1, 0)))
}

func TestSet_PrefixWriteKeepsSiblings(t *testing.T) {
	s := New()
	s.Set(MustPath("seed", "a", "x"), 1.0)
	s.Set(MustPath("seed", "b", "y"), 2.0)
	s.Set(MustPath("seed", "a", "z"), 3.0)

	assert.Equal(t, 1.0, s.Get(MustPath("seed", "a", "x")))
	assert.Equal(t, 2.0, s.Get(MustPath("seed", "b", "y")))
	assert.Equal(t, 3.0, s.Get(MustPath("seed", "a", "z")))
	assert.Equal(t, []string{"a", "b"}, s.Child(MustPath("seed")).Keys())
}

func TestSet_OverwriteKeepsOrder(t *testing.T) {
	s := New()
	s.Set(Path{"b"}, 1.0)
	s.Set(Path{"a"}, 2.0)
	s.Set(Path{"b"}, 3.0)

	assert.Equal(t, []string{"b", "a"}, s.Keys())
	assert.Equal(t, 3.0, s.Get(Path{"b"}))
}

func TestSet_LeafOnIntermediateLevelIsReplaced(t *testing.T) {
	s := New()
	s.Set(Path{"a"}, 1.0)
	s.Set(Path{"a", "b"}, 2.0)

	assert.Equal(t, 2.0, s.Get(Path{"a", "b"}))
}

func TestLookup(t *testing.T) {
	s := New()
	s.Set(Path{"a", "b"}, "v")

	v, ok := s.Lookup(Path{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = s.Lookup(Path{"a", "c"})
	assert.False(t, ok)
	_, ok = s.Lookup(Path{"a", "b", "c"})
	assert.False(t, ok)
}

func TestKey_Normalization(t *testing.T) {
	type seed int

	cases := []struct {
		in   any
		want string
	}{
		{"x", "x"},
		{7, "7"},
		{int64(-3), "-3"},
		{uint8(9), "9"},
		{seed(11), "11"},
	}
	for _, c := range cases {
		got, err := Key(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParsePath_RejectsUnsupportedKeys(t *testing.T) {
	_, err := ParsePath("a", 1.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentKeyType))

	var kte *KeyTypeError
	require.ErrorAs(t, err, &kte)
	assert.Equal(t, 1, kte.Index)
}

func TestJSON_RoundTripKeepsOrderAndStringKeys(t *testing.T) {
	s := New()
	s.Set(MustPath(20, "job_5", "lr"), map[string]any{"accuracy_score": []float64{0.5, 0.75}})
	s.Set(MustPath(3, "job_5", "lr"), map[string]any{"accuracy_score": []float64{0.25}})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"20":{"job_5":{"lr":{"accuracy_score":[0.5,0.75]}}},"3":{"job_5":{"lr":{"accuracy_score":[0.25]}}}}`, string(data))

	var back Store
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"20", "3"}, back.Keys())

	// integer keys written before the round trip are found through the same normalization
	rec := back.Child(MustPath(20, "job_5", "lr"))
	assert.Equal(t, []any{0.5, 0.75}, rec.Get(Path{"accuracy_score"}))
}

func TestUnmarshal_RejectsNonObject(t *testing.T) {
	var s Store
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestMarshal_NonFiniteFloats(t *testing.T) {
	s := New()
	s.Set(Path{"r2"}, []float64{math.NaN(), 0.5})
	s.Set(Path{"m", "gain"}, map[string]any{"hi": math.Inf(1), "lo": math.Inf(-1)})
	s.Set(Path{"label"}, "NaN")

	data, err := Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"r2":[NaN,0.5],"m":{"gain":{"hi":Infinity,"lo":-Infinity}},"label":"NaN"}`, string(data))

	back, err := Parse(data)
	require.NoError(t, err)
	r2 := back.Get(Path{"r2"}).([]any)
	require.Len(t, r2, 2)
	assert.True(t, math.IsNaN(r2[0].(float64)))
	assert.Equal(t, 0.5, r2[1])
	gain := back.Child(Path{"m"}).Get(Path{"gain"}).(*Store)
	assert.Equal(t, math.Inf(1), gain.Get(Path{"hi"}))
	assert.Equal(t, math.Inf(-1), gain.Get(Path{"lo"}))
	assert.Equal(t, "NaN", back.Get(Path{"label"}))
}

func TestParse_PythonTokens(t *testing.T) {
	s, err := Parse([]byte(`{"1": {"job_5": {"lr": {"r2_score": [NaN, -Infinity], "name": "Infinity \"NaN\""}}}}`))
	require.NoError(t, err)

	rec := s.Child(MustPath(1, "job_5", "lr"))
	vals := rec.Get(Path{"r2_score"}).([]any)
	assert.True(t, math.IsNaN(vals[0].(float64)))
	assert.Equal(t, math.Inf(-1), vals[1])
	assert.Equal(t, `Infinity "NaN"`, rec.Get(Path{"name"}))

	_, err = Parse([]byte(`{"a": [NaNa]}`))
	assert.Error(t, err)
}

func TestWalkAndToMap(t *testing.T) {
	s := New()
	s.Set(Path{"a", "x"}, 1.0)
	s.Set(Path{"b"}, 2.0)

	var visited []string
	require.NoError(t, s.Walk(func(p Path, leaf any) error {
		visited = append(visited, p[len(p)-1])
		return nil
	}))
	assert.Equal(t, []string{"x", "b"}, visited)

	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1.0}, "b": 2.0}, s.ToMap())
	assert.Equal(t, s.ToMap(), FromMap(s.ToMap()).ToMap())
}
