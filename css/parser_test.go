package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectorRoundTrip(t *testing.T) {
	for _, text := range []string{
		"div > p.a",
		"#x .y",
		"a + b ~ c",
		`[href^="http"]`,
		`[type="a" i]`,
		"li:nth-child(2n+1)",
		"li:nth-last-child(3)",
		":not(.a, .b)",
		"p::before",
		".a, .b .c",
	} {
		list, err := ParseSelector(text)
		require.NoError(t, err, text)
		assert.Equal(t, text, list.String())
	}
}

func TestParseSelectorStructure(t *testing.T) {
	list := MustParseSelector("ul > li.item:first-child, #x")
	require.Len(t, list.Complex, 2)

	c := list.Complex[0]
	require.Len(t, c.Compounds, 2)
	assert.Equal(t, CombinatorChild, c.Compounds[0].Combinator)
	subject := c.Rightmost()
	require.NotNil(t, subject)
	assert.Equal(t, "li.item:first-child", subject.String())

	nth := MustParseSelector(":nth-child(odd)").Complex[0].Rightmost().Simples[0]
	assert.Equal(t, NthIndex{A: 2, B: 1}, nth.Nth)
	assert.True(t, nth.Nth.Matches(3))
	assert.False(t, nth.Nth.Matches(4))
}

func TestParseSelectorErrors(t *testing.T) {
	for _, text := range []string{"", "   "} {
		_, err := ParseSelector(text)
		assert.ErrorIs(t, err, ErrEmptySelector, "%q", text)
	}

	for _, text := range []string{
		":bogus",
		"div >",
		":has(:has(a))",
		"[href",
		".a..b",
		":nth-child(x)",
		"::before::after",
	} {
		_, err := ParseSelector(text)
		assert.ErrorIs(t, err, ErrInvalidSelector, "%q", text)
	}

	assert.Panics(t, func() { MustParseSelector(":bogus") })
}

func TestParseAnPlusB(t *testing.T) {
	tests := []struct {
		in   string
		want NthIndex
	}{
		{"odd", NthIndex{2, 1}},
		{"even", NthIndex{2, 0}},
		{"3", NthIndex{0, 3}},
		{"n", NthIndex{1, 0}},
		{"-n+2", NthIndex{-1, 2}},
		{"2n-1", NthIndex{2, -1}},
		{" 3n + 4 ", NthIndex{3, 4}},
	}
	for _, tt := range tests {
		got, err := parseAnPlusB(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseAnPlusB("2x")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}
