package memberid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"EA-1234-2021":    "EA12342021",
		"ea.1234.2021":    "EA12342021",
		" ea 1234 2021 ":  "EA12342021",
		"EA--12__34#2021": "EA12342021",
		"":                "",
		"   ":             "",
	}
	for input, want := range cases {
		assert.Equal(t, want, Normalize(input), "input %q", input)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"EA-1234-2021", "ea12342021", "!!weird??", "", "1234"}
	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("EA12342021"))
	assert.True(t, IsValid("ea-1234-2021"))
	// Shape-only validation: any two-letter prefix passes.
	assert.True(t, IsValid("AB12342021"))

	assert.False(t, IsValid("EA1234"))
	assert.False(t, IsValid("1234567890"), "all-digit input lacks the alphabetic prefix")
	assert.False(t, IsValid("EA123420211"), "11 characters after normalization")
	assert.False(t, IsValid("EA1234202"), "9 characters after normalization")
	assert.False(t, IsValid(""))
}

func TestFormatForDisplay(t *testing.T) {
	assert.Equal(t, "EA-1234-2021", FormatForDisplay("EA12342021"))
	assert.Equal(t, "EA-1234-2021", FormatForDisplay("ea 1234 2021"))
	// Invalid input passes through unchanged.
	assert.Equal(t, "invalid", FormatForDisplay("invalid"))
	assert.Equal(t, "", FormatForDisplay(""))
}

func TestDisplayRoundTrip(t *testing.T) {
	ids := []string{"EA12342021", "AB00011999", "ZZ99992030"}
	for _, id := range ids {
		parsed := Parse(FormatForDisplay(Normalize(id)))
		require.NotNil(t, parsed, "id %s", id)
		assert.Equal(t, Normalize(id), parsed.Full)
	}
}

func TestExtractYear(t *testing.T) {
	year, ok := ExtractYear("EA-1234-2021")
	require.True(t, ok)
	assert.Equal(t, 2021, year)

	_, ok = ExtractYear("EA1234")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	parsed := Parse("ea-5678-2019")
	require.NotNil(t, parsed)
	assert.Equal(t, "EA", parsed.Prefix)
	assert.Equal(t, "5678", parsed.Digits)
	assert.Equal(t, 2019, parsed.Year)
	assert.Equal(t, "EA56782019", parsed.Full)

	assert.Nil(t, Parse("not an id"))
	assert.Nil(t, Parse("1234567890"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("EA-1234-2021", "ea12342021"))
	assert.True(t, Equal("E.A.1234:2021", "EA 1234 2021"))
	assert.False(t, Equal("EA-1234-2021", "EA-5678-2021"))
}

type fixedRand struct{ v int }

func (f fixedRand) Intn(n int) int { return f.v % n }

func TestGenerateFromContactNumber(t *testing.T) {
	gen := NewGenerator(fixedRand{v: 7}, func() time.Time {
		return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	})

	// Last four digits of the contact number win over the random source.
	assert.Equal(t, "EA-6789-2024", gen.Generate("+233 24 567 6789", 0))
	assert.Equal(t, "EA-6789-2021", gen.Generate("0245676789", 2021))
}

func TestGenerateRandomFallback(t *testing.T) {
	gen := NewGenerator(fixedRand{v: 7}, func() time.Time {
		return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	})

	// Fewer than four digits after stripping falls back to the random
	// segment, zero-padded.
	assert.Equal(t, "EA-0007-2024", gen.Generate("abc", 0))
	assert.Equal(t, "EA-0007-2024", gen.Generate("12", 0))
	assert.Equal(t, "EA-0007-2024", gen.Generate("", 0))
}

func TestGeneratedIdentifiersValidate(t *testing.T) {
	gen := NewGenerator(fixedRand{v: 42}, nil)
	id := gen.Generate("0551234567", 0)
	assert.True(t, IsValid(id))
	assert.Equal(t, id, FormatForDisplay(id))
}
