package semver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pluginmanifest/registry/internal/diagnostic"
)

func TestParse_ValidVersions(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		major      uint32
		minor      uint32
		patch      uint32
		preRelease []string
		build      string
	}{
		{name: "Plain", input: "1.2.3", major: 1, minor: 2, patch: 3},
		{name: "Zeros", input: "0.0.0"},
		{name: "SurroundingWhitespace", input: "  4.5.6 ", major: 4, minor: 5, patch: 6},
		{name: "PreRelease", input: "1.0.0-alpha", major: 1, preRelease: []string{"alpha"}},
		{name: "DottedPreRelease", input: "1.0.0-rc.1.2", major: 1, preRelease: []string{"rc", "1", "2"}},
		{name: "Build", input: "2.1.0+20240101", major: 2, minor: 1, build: "20240101"},
		{name: "PreReleaseAndBuild", input: "1.2.3-beta.2+sha.abc", major: 1, minor: 2, patch: 3, preRelease: []string{"beta", "2"}, build: "sha.abc"},
		{name: "HyphenInsideBuild", input: "1.2.3+exp-sha", major: 1, minor: 2, patch: 3, build: "exp-sha"},
		{name: "LargeSegment", input: "4294967295.0.1", major: 4294967295, patch: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
			assert.Equal(t, tt.patch, v.Patch)
			assert.Equal(t, tt.preRelease, v.PreRelease)
			assert.Equal(t, tt.build, v.Build)
		})
	}
}

func TestParse_InvalidVersions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
		value   string
	}{
		{name: "TwoSegments", input: "1.2", message: "must have 3 number segments", value: "1.2"},
		{name: "FourSegments", input: "1.2.3.4", message: "must have 3 number segments", value: "1.2.3.4"},
		{name: "WildcardSegment", input: "1.2.x", message: `version segment "patch" must be a number`, value: "x"},
		{name: "LeadingHyphen", input: "-1.2.3", message: "must have 3 number segments", value: ""},
		{name: "Empty", input: "", message: "must have 3 number segments", value: ""},
		{name: "NonNumericMajor", input: "a.2.3", message: `version segment "major" must be a number`, value: "a"},
		{name: "EmptyMinor", input: "1..3", message: `version segment "minor" must be a number`, value: ""},
		{name: "Overflow", input: "4294967296.0.0", message: `version segment "major" must be a number`, value: "4294967296"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			require.Error(t, err)

			var entry diagnostic.Entry
			require.True(t, errors.As(err, &entry))
			assert.Equal(t, "version", entry.Key)
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, tt.value, entry.ValueString())
			assert.Equal(t, Version{}, v)
		})
	}
}

func TestParseSegment_Negative(t *testing.T) {
	// The '-' pre-release split keeps negative numbers out of Parse, the
	// segment check still guards direct use.
	_, entry, ok := parseSegment("pluginVersion", "minor", "-4")
	assert.False(t, ok)
	assert.Equal(t, `version segment "minor" must be positive (>= 0)`, entry.Message)
}

func TestParseCollect_ReportsEverySegment(t *testing.T) {
	var report diagnostic.Report
	_, ok := ParseCollect("pluginVersion", "a.b.3", &report)
	assert.False(t, ok)
	require.Equal(t, 2, report.Len())

	entries := report.Entries()
	assert.Equal(t, `version segment "major" must be a number`, entries[0].Message)
	assert.Equal(t, `version segment "minor" must be a number`, entries[1].Message)
	assert.Equal(t, "pluginVersion", entries[0].Key)
}

func TestParse_StopsAtFirstSegment(t *testing.T) {
	_, err := Parse("a.b.c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"major"`)
}

func TestParse_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		major := rapid.Uint32().Draw(t, "major")
		minor := rapid.Uint32().Draw(t, "minor")
		patch := rapid.Uint32().Draw(t, "patch")
		withPre := rapid.Bool().Draw(t, "withPre")
		withBuild := rapid.Bool().Draw(t, "withBuild")

		raw := fmt.Sprintf("%d.%d.%d", major, minor, patch)
		var pre []string
		if withPre {
			pre = rapid.SliceOfN(rapid.StringMatching(`[0-9A-Za-z]{1,8}`), 1, 4).Draw(t, "pre")
			raw += "-" + joinDots(pre)
		}
		build := ""
		if withBuild {
			build = rapid.StringMatching(`[0-9A-Za-z][0-9A-Za-z.\-]{0,12}`).Draw(t, "build")
			raw += "+" + build
		}

		v, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		if v.Major != major || v.Minor != minor || v.Patch != patch {
			t.Fatalf("Parse(%q) = %d.%d.%d", raw, v.Major, v.Minor, v.Patch)
		}
		if withPre && joinDots(v.PreRelease) != joinDots(pre) {
			t.Fatalf("pre-release mismatch: %v vs %v", v.PreRelease, pre)
		}
		if v.Build != build {
			t.Fatalf("build mismatch: %q vs %q", v.Build, build)
		}
		if v.String() != raw {
			t.Fatalf("String() = %q, want %q", v.String(), raw)
		}
	})
}

func joinDots(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.4", -1},
		{"1.3.0", "1.2.9", 1},
		{"2.0.0", "10.0.0", -1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0", "1.0.0-rc.1", 1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1},
		{"1.0.0-rc.1", "1.0.0-beta.11", 1},
		{"1.0.0+build.1", "1.0.0+build.2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a := MustParse(tt.a)
			b := MustParse(tt.b)
			assert.Equal(t, tt.expected, a.Compare(b))
			assert.Equal(t, -tt.expected, b.Compare(a))
		})
	}
}

func TestVersion_CompareIsAntisymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.Custom(func(t *rapid.T) Version {
			return Version{
				Major: rapid.Uint32Range(0, 3).Draw(t, "major"),
				Minor: rapid.Uint32Range(0, 3).Draw(t, "minor"),
				Patch: rapid.Uint32Range(0, 3).Draw(t, "patch"),
			}
		})
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")
		if a.Compare(b) != -b.Compare(a) {
			t.Fatalf("Compare(%s, %s) not antisymmetric", a, b)
		}
	})
}
