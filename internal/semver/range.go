package semver

import (
	"math"
	"strings"

	"github.com/pluginmanifest/registry/internal/diagnostic"
)

// RangeKind identifies the operator a range was written with
type RangeKind int

const (
	Exact RangeKind = iota
	Greater
	GreaterEqual
	Less
	LessEqual
	Hyphen
	Caret
	Tilde
	Wildcard
)

var rangeKindNames = map[RangeKind]string{
	Exact:        "exact",
	Greater:      "greater",
	GreaterEqual: "greater_equal",
	Less:         "less",
	LessEqual:    "less_equal",
	Hyphen:       "hyphen",
	Caret:        "caret",
	Tilde:        "tilde",
	Wildcard:     "wildcard",
}

func (k RangeKind) String() string {
	if name, ok := rangeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind name
func (k RangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Range is a constraint over versions. Absent bounds are nil.
type Range struct {
	Kind         RangeKind
	Min          *Version
	Max          *Version
	MinInclusive bool
	MaxInclusive bool
}

const hyphenSeparator = " - "

// ParseRange parses a range expression and stops at the first problem.
// The returned error is a diagnostic.Entry keyed "versionRange".
func ParseRange(raw string) (Range, error) {
	var report diagnostic.Report
	r, ok := parseRange("versionRange", raw, &report, true)
	if !ok {
		first, _ := report.First()
		return Range{}, first
	}
	return r, nil
}

// MustParseRange is like ParseRange but panics on malformed input
func MustParseRange(raw string) Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRangeCollect parses a range expression and appends every failure of
// the embedded versions to report
func ParseRangeCollect(key, raw string, report *diagnostic.Report) (Range, bool) {
	return parseRange(key, raw, report, false)
}

// Prefix order matters: ">=" must be tried before ">" and "<=" before "<".
func parseRange(key, raw string, report *diagnostic.Report, failFast bool) (Range, bool) {
	expr := strings.TrimSpace(raw)

	switch {
	case expr == "*" || strings.EqualFold(expr, "x"):
		return Range{Kind: Wildcard, MinInclusive: true, MaxInclusive: true}, true

	case strings.Contains(expr, hyphenSeparator):
		return parseHyphen(key, expr, report, failFast)

	case strings.HasPrefix(expr, "^"):
		lower, ok := parse(key, strings.TrimSpace(expr[1:]), report, failFast)
		if !ok {
			return Range{}, false
		}
		upper, segment, ok := caretUpper(lower)
		if !ok {
			report.Add(tooLarge(key, expr, segment, "caret"))
			return Range{}, false
		}
		return bounded(Caret, lower, upper), true

	case strings.HasPrefix(expr, "~"):
		lower, ok := parse(key, strings.TrimSpace(expr[1:]), report, failFast)
		if !ok {
			return Range{}, false
		}
		if lower.Minor == math.MaxUint32 {
			report.Add(tooLarge(key, expr, "minor", "tilde"))
			return Range{}, false
		}
		return bounded(Tilde, lower, Version{Major: lower.Major, Minor: lower.Minor + 1}), true

	case strings.HasPrefix(expr, ">="):
		return parseComparison(key, expr[2:], GreaterEqual, report, failFast)
	case strings.HasPrefix(expr, ">"):
		return parseComparison(key, expr[1:], Greater, report, failFast)
	case strings.HasPrefix(expr, "<="):
		return parseComparison(key, expr[2:], LessEqual, report, failFast)
	case strings.HasPrefix(expr, "<"):
		return parseComparison(key, expr[1:], Less, report, failFast)
	}

	v, ok := parse(key, expr, report, failFast)
	if !ok {
		return Range{}, false
	}
	return Range{Kind: Exact, Min: &v, Max: ptr(v), MinInclusive: true, MaxInclusive: true}, true
}

func parseHyphen(key, expr string, report *diagnostic.Report, failFast bool) (Range, bool) {
	parts := strings.Split(expr, hyphenSeparator)
	if len(parts) != 2 {
		report.Add(diagnostic.New(key, expr, "hyphen range must have exactly two versions"))
		return Range{}, false
	}

	lower, lowerOK := parse(key+".min", strings.TrimSpace(parts[0]), report, failFast)
	if !lowerOK && failFast {
		return Range{}, false
	}
	upper, upperOK := parse(key+".max", strings.TrimSpace(parts[1]), report, failFast)
	if !lowerOK || !upperOK {
		return Range{}, false
	}
	return Range{Kind: Hyphen, Min: &lower, Max: &upper, MinInclusive: true, MaxInclusive: true}, true
}

func parseComparison(key, rest string, kind RangeKind, report *diagnostic.Report, failFast bool) (Range, bool) {
	v, ok := parse(key, strings.TrimSpace(rest), report, failFast)
	if !ok {
		return Range{}, false
	}
	switch kind {
	case GreaterEqual:
		return Range{Kind: kind, Min: &v, MinInclusive: true}, true
	case Greater:
		return Range{Kind: kind, Min: &v}, true
	case LessEqual:
		return Range{Kind: kind, Max: &v, MaxInclusive: true}, true
	default:
		return Range{Kind: kind, Max: &v}, true
	}
}

// caretUpper bumps the left-most non-zero segment:
// ^1.2.3 < 2.0.0, ^0.2.3 < 0.3.0, ^0.0.3 < 0.0.4
// ok is false when that segment cannot be bumped without wrapping.
func caretUpper(v Version) (upper Version, segment string, ok bool) {
	switch {
	case v.Major > 0:
		return Version{Major: v.Major + 1}, "major", v.Major < math.MaxUint32
	case v.Minor > 0:
		return Version{Minor: v.Minor + 1}, "minor", v.Minor < math.MaxUint32
	default:
		return Version{Patch: v.Patch + 1}, "patch", v.Patch < math.MaxUint32
	}
}

func tooLarge(key, expr, segment, kind string) diagnostic.Entry {
	return diagnostic.New(key, expr, `version segment "`+segment+`" is too large for a `+kind+` range`)
}

func bounded(kind RangeKind, lower, upper Version) Range {
	return Range{Kind: kind, Min: &lower, Max: &upper, MinInclusive: true}
}

func ptr(v Version) *Version {
	return &v
}

// Contains reports whether v satisfies the range bounds
func (r Range) Contains(v Version) bool {
	if r.Kind == Wildcard {
		return true
	}
	if r.Min != nil {
		c := v.Compare(*r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != nil {
		c := v.Compare(*r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// String renders the range in the operator form it was parsed from
func (r Range) String() string {
	switch r.Kind {
	case Wildcard:
		return "*"
	case Hyphen:
		return r.Min.String() + hyphenSeparator + r.Max.String()
	case Caret:
		return "^" + r.Min.String()
	case Tilde:
		return "~" + r.Min.String()
	case GreaterEqual:
		return ">=" + r.Min.String()
	case Greater:
		return ">" + r.Min.String()
	case LessEqual:
		return "<=" + r.Max.String()
	case Less:
		return "<" + r.Max.String()
	case Exact:
		return r.Min.String()
	}
	return ""
}
