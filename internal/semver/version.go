// Package semver parses dotted three-part versions and version ranges.
package semver

import (
	"math"
	"strconv"
	"strings"

	xsemver "golang.org/x/mod/semver"

	"github.com/pluginmanifest/registry/internal/diagnostic"
)

// Version is a parsed MAJOR.MINOR.PATCH[-PRE.RELEASE][+BUILD] version
type Version struct {
	Major      uint32
	Minor      uint32
	Patch      uint32
	PreRelease []string
	Build      string
}

var segmentNames = [3]string{"major", "minor", "patch"}

// Parse parses a version and stops at the first problem.
// The returned error is a diagnostic.Entry keyed "version".
func Parse(raw string) (Version, error) {
	var report diagnostic.Report
	v, ok := parse("version", raw, &report, true)
	if !ok {
		first, _ := report.First()
		return Version{}, first
	}
	return v, nil
}

// MustParse is like Parse but panics on malformed input
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseCollect parses a version and appends every segment failure to report
func ParseCollect(key, raw string, report *diagnostic.Report) (Version, bool) {
	return parse(key, raw, report, false)
}

func parse(key, raw string, report *diagnostic.Report, failFast bool) (Version, bool) {
	rest := strings.TrimSpace(raw)

	var v Version
	if before, after, found := strings.Cut(rest, "+"); found {
		rest, v.Build = before, after
	}
	if before, after, found := strings.Cut(rest, "-"); found {
		rest = before
		v.PreRelease = strings.Split(after, ".")
	}

	segments := strings.Split(rest, ".")
	if len(segments) != 3 {
		report.Add(diagnostic.New(key, rest, "must have 3 number segments"))
		return Version{}, false
	}

	var nums [3]uint32
	ok := true
	for i, segment := range segments {
		n, entry, valid := parseSegment(key, segmentNames[i], segment)
		if !valid {
			report.Add(entry)
			ok = false
			if failFast {
				return Version{}, false
			}
			continue
		}
		nums[i] = n
	}
	if !ok {
		return Version{}, false
	}

	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, true
}

func parseSegment(key, name, segment string) (uint32, diagnostic.Entry, bool) {
	n, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || n > math.MaxUint32 {
		return 0, diagnostic.New(key, segment, `version segment "`+name+`" must be a number`), false
	}
	if n < 0 {
		return 0, diagnostic.New(key, segment, `version segment "`+name+`" must be positive (>= 0)`), false
	}
	return uint32(n), diagnostic.Entry{}, true
}

// IsPreRelease reports whether the version carries pre-release identifiers
func (v Version) IsPreRelease() bool {
	return len(v.PreRelease) > 0
}

func (v Version) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(v.Major), 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(uint64(v.Minor), 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(uint64(v.Patch), 10))
	if v.IsPreRelease() {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.PreRelease, "."))
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// Compare returns -1, 0 or +1 following semantic version precedence.
// Build metadata is ignored.
func (v Version) Compare(o Version) int {
	if c := compareUint(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, o.Patch); c != 0 {
		return c
	}
	return comparePreRelease(v.PreRelease, o.PreRelease)
}

// Equal reports whether both versions have the same precedence
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

func compareUint(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// comparePreRelease orders pre-release identifier lists. A version without
// pre-release identifiers ranks above any pre-release of the same core.
func comparePreRelease(a, b []string) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}

	// x/mod/semver implements the identifier rules; the shared v0.0.0 core
	// makes it compare only the pre-release part.
	va := "v0.0.0-" + strings.Join(a, ".")
	vb := "v0.0.0-" + strings.Join(b, ".")
	if xsemver.IsValid(va) && xsemver.IsValid(vb) {
		return xsemver.Compare(va, vb)
	}
	return strings.Compare(va, vb)
}
