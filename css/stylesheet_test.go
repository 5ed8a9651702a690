package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseStyleSheet(t *testing.T) {
	sheet, err := ParseStyleSheet(`
		.a, #b > p { COLOR: Red; margin: 0 !important }
		@media (min-width: 100px) {
			.m { color: blue }
			@supports (display: grid) { .s { display: grid } }
		}
	`, OriginAuthor)
	require.NoError(t, err)
	assert.Equal(t, OriginAuthor, sheet.Origin)
	require.Len(t, sheet.Rules, 3)

	first := sheet.Rules[0]
	assert.Equal(t, ".a, #b > p", first.SelectorText)
	require.Len(t, first.Selectors.Complex, 2)
	assert.Equal(t, []Declaration{
		{Property: "color", Value: "Red"},
		{Property: "margin", Value: "0", Important: true},
	}, first.Declarations)

	assert.Equal(t, ".m", sheet.Rules[1].SelectorText)
	assert.Equal(t, ".s", sheet.Rules[2].SelectorText)
	assert.Zero(t, sheet.Flags)
}

func TestParseStyleSheetAtRuleFlags(t *testing.T) {
	tests := []struct {
		text string
		flag RuleFlags
	}{
		{`@font-face { font-family: x; src: url(x.woff) }`, RuleFlagFontFace},
		{`@keyframes spin { from { opacity: 0 } to { opacity: 1 } }`, RuleFlagKeyframes},
		{`@property --x { syntax: "<length>"; inherits: false; initial-value: 0px }`, RuleFlagProperty},
		{`@counter-style thumbs { system: cyclic; symbols: "+"; }`, RuleFlagCounterStyle},
	}
	for _, tt := range tests {
		sheet, err := ParseStyleSheet(tt.text+" .a { color: red }", OriginAuthor)
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.flag, sheet.Flags, tt.text)
		require.Len(t, sheet.Rules, 1, tt.text)
		assert.Equal(t, ".a", sheet.Rules[0].SelectorText)
	}
}

func TestParseStyleSheetDropsInvalidRules(t *testing.T) {
	sheet, err := ParseStyleSheet(`.a..b { color: red } .ok { color: blue } :bogus { color: green }`, OriginUser)
	require.Error(t, err)
	require.NotNil(t, sheet)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrInvalidSelector)
	}
	require.Len(t, sheet.Rules, 1)
	assert.Equal(t, ".ok", sheet.Rules[0].SelectorText)
	assert.Equal(t, OriginUser, sheet.Origin)

	assert.Panics(t, func() { MustParseStyleSheet(`:bogus {}`, OriginAuthor) })
}

func TestStyleSheetString(t *testing.T) {
	sheet := MustParseStyleSheet(`.a  >  .b { color: red } #c { margin: 0 !important; padding: 1px }`, OriginAuthor)
	assert.Equal(t, ".a > .b { color: red; }\n#c { margin: 0 !important; padding: 1px; }\n", sheet.String())
}

func TestCascadeOriginString(t *testing.T) {
	assert.Equal(t, "user-agent", OriginUserAgent.String())
	assert.Equal(t, "user", OriginUser.String())
	assert.Equal(t, "author", OriginAuthor.String())
}
