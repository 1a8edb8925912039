package counter

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount_MarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", `0`},
		{"5", `5`},
		{"5.0", `5`},
		{"1E+2", `100`},
		{"42.000", `42`},
		{"1.5", `1.5`},
		{"-3", `-3`},
		{"123456789012345678901234567890", `123456789012345678901234567890`},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			c, err := ParseCount(tc.in)
			require.NoError(t, err)

			b, err := json.Marshal(map[string]Count{"count": c})
			require.NoError(t, err)
			assert.JSONEq(t, `{"count":`+tc.want+`}`, string(b))
			assert.Equal(t, `{"count":`+tc.want+`}`, string(b))
		})
	}
}

func TestCount_ZeroValue(t *testing.T) {
	var c Count
	assert.True(t, c.IsInt())
	assert.Equal(t, "0", c.String())
	n, ok := c.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "1", c.Add(1).String())
}

func TestParseCount_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "NaN", "Inf", "1.2.3"} {
		_, err := ParseCount(s)
		var se *SerializationError
		require.True(t, errors.As(err, &se), "input %q", s)
		assert.Equal(t, s, se.Value)
	}
}

func TestCountOfFloat_NotFinite(t *testing.T) {
	_, err := CountOfFloat(math.Inf(1))
	var se *SerializationError
	require.ErrorAs(t, err, &se)

	c, err := CountOfFloat(2.5)
	require.NoError(t, err)
	assert.False(t, c.IsInt())
	assert.Equal(t, "2.5", c.String())
}

func TestCount_Int64(t *testing.T) {
	c, err := ParseCount("99999999999999999999")
	require.NoError(t, err)
	_, ok := c.Int64()
	assert.False(t, ok)

	c, err = ParseCount("0.25")
	require.NoError(t, err)
	_, ok = c.Int64()
	assert.False(t, ok)
	assert.Equal(t, "0.25", c.String())
}

func TestCount_UnmarshalJSON(t *testing.T) {
	var body struct {
		Count Count `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"count": 42}`), &body))
	n, ok := body.Count.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	err := json.Unmarshal([]byte(`{"count": "x"}`), &body)
	assert.Error(t, err)
}

func TestCount_Cmp(t *testing.T) {
	assert.Equal(t, -1, CountOf(1).Cmp(CountOf(2)))
	assert.Equal(t, 0, CountOf(2).Cmp(CountOf(1).Add(1)))
}

func TestParseCount_RejectsNonDecimal(t *testing.T) {
	for _, s := range []string{"1/2", "0x10", "0b101", "1p3", "1e999999999", "1e-999999999", "1e401", " 1", "1 "} {
		_, err := ParseCount(s)
		var se *SerializationError
		assert.True(t, errors.As(err, &se), "input %q", s)
	}

	_, err := ParseCount("1" + strings.Repeat("0", 200))
	var se *SerializationError
	require.ErrorAs(t, err, &se)
	assert.Less(t, len(se.Value), 200)
}

func TestParseCount_ExponentInRange(t *testing.T) {
	c, err := ParseCount("1e38")
	require.NoError(t, err)
	assert.True(t, c.IsInt())
	assert.Equal(t, "1"+strings.Repeat("0", 38), c.String())

	c, err = ParseCount("-2.5E-3")
	require.NoError(t, err)
	assert.Equal(t, "-0.0025", c.String())
}
