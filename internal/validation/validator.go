// Package validation holds the manifest field checks. Each check either does
// nothing or appends diagnostics to the validator's report; none of them stop
// a validation pass unless the validator was built with FailFast.
package validation

import (
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/semver"
)

// Validator runs checks and collects their diagnostics
type Validator struct {
	report   *diagnostic.Report
	failFast bool
}

// Option configures a Validator
type Option func(*Validator)

// FailFast makes every check a no-op once the first diagnostic is recorded
func FailFast() Option {
	return func(v *Validator) {
		v.failFast = true
	}
}

// WithFailFast is FailFast driven by a flag
func WithFailFast(enabled bool) Option {
	return func(v *Validator) {
		v.failFast = enabled
	}
}

// New creates a validator with an empty report
func New(opts ...Option) *Validator {
	v := &Validator{report: &diagnostic.Report{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Report returns the collected diagnostics
func (v *Validator) Report() *diagnostic.Report {
	return v.report
}

// Valid reports whether nothing has been collected so far
func (v *Validator) Valid() bool {
	return v.report.Empty()
}

func (v *Validator) halted() bool {
	return v.failFast && !v.report.Empty()
}

func (v *Validator) add(e diagnostic.Entry) {
	if v.halted() {
		return
	}
	v.report.Add(e)
}

// Required fails when value is blank
func (v *Validator) Required(key, value string) bool {
	if v.halted() {
		return false
	}
	if strings.TrimSpace(value) == "" {
		if value == "" {
			v.add(diagnostic.Absent(key, "cannot be empty"))
		} else {
			v.add(diagnostic.New(key, value, "cannot be empty"))
		}
		return false
	}
	return true
}

// Charset requires value and allows only ASCII letters, ASCII digits and
// the extra runes. Every offending rune is reported.
func (v *Validator) Charset(key, value string, extra ...rune) bool {
	if !v.Required(key, value) {
		return false
	}
	ok := true
	for i, r := range []rune(value) {
		if isASCIIAlnum(r) || containsRune(extra, r) {
			continue
		}
		ok = false
		v.add(diagnostic.New(key, value, fmt.Sprintf("contains illegal character: '%c' at index %d", r, i)))
		if v.halted() {
			return false
		}
	}
	return ok
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func containsRune(set []rune, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}

// PlainText rejects control characters in free text such as descriptions
func (v *Validator) PlainText(key, value string) bool {
	if v.halted() {
		return false
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			v.add(diagnostic.New(key, value, "contains iso-control character"))
			return false
		}
	}
	return true
}

// Identifier validates a "Group:Name" plugin identifier
func (v *Validator) Identifier(key, id string) bool {
	before := v.report.Len()
	if !v.Charset(key, id, '-', ':') && strings.TrimSpace(id) == "" {
		return false
	}
	if v.halted() {
		return false
	}

	if !strings.Contains(id, ":") {
		v.add(diagnostic.New(key, id, `must contain ':' in format "Group:Name"`))
		return false
	}
	parts := strings.Split(id, ":")
	if len(parts) != 2 {
		v.add(diagnostic.New(key, id, "has "+strconv.Itoa(len(parts))+" parts but can only contain 2"))
		return false
	}
	v.Required(key+"[group]", parts[0])
	v.Required(key+"[name]", parts[1])
	return v.report.Len() == before
}

// SemanticVersion validates a required version string
func (v *Validator) SemanticVersion(key, raw string) (semver.Version, bool) {
	if !v.Required(key, raw) {
		return semver.Version{}, false
	}
	var scratch diagnostic.Report
	ver, ok := semver.ParseCollect(key, raw, &scratch)
	v.merge(&scratch)
	return ver, ok
}

// SemanticVersionRange validates a required range expression
func (v *Validator) SemanticVersionRange(key, raw string) (semver.Range, bool) {
	if !v.Required(key, raw) {
		return semver.Range{}, false
	}
	var scratch diagnostic.Report
	r, ok := semver.ParseRangeCollect(key, raw, &scratch)
	v.merge(&scratch)
	return r, ok
}

func (v *Validator) merge(r *diagnostic.Report) {
	for _, e := range r.Entries() {
		v.add(e)
	}
}

// URI validates an http(s) URI with a dotted host. Blank values pass when
// emptyAllowed is set.
func (v *Validator) URI(key, raw string, emptyAllowed bool) bool {
	if v.halted() {
		return false
	}
	if strings.TrimSpace(raw) == "" {
		if emptyAllowed {
			return true
		}
		return v.Required(key, raw)
	}
	value := strings.TrimSpace(raw)

	u, err := url.Parse(value)
	if err != nil {
		v.add(diagnostic.New(key, raw, "is a malformed uri"))
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.add(diagnostic.New(key, raw, "must start with 'http://' or 'https://'"))
		return false
	}
	if u.Opaque != "" {
		v.add(diagnostic.New(key, raw, "must have non-null host"))
		return false
	}
	host := u.Hostname()
	if host == "" {
		v.add(diagnostic.New(key, raw, "must have a non-empty host"))
		return false
	}
	if !strings.Contains(host, ".") {
		v.add(diagnostic.New(key, raw, "must have a host which contains at least one '.'"))
		return false
	}
	return true
}

// Email validates the shape of an address: one '@', a local part and a
// dotted domain that neither starts nor ends with '.'
func (v *Validator) Email(key, raw string) bool {
	if v.halted() {
		return false
	}
	value := strings.TrimSpace(raw)

	at := strings.IndexByte(value, '@')
	switch {
	case at == -1:
		v.add(diagnostic.New(key, raw, "must contain a '@'"))
		return false
	case at != strings.LastIndexByte(value, '@'):
		v.add(diagnostic.New(key, raw, "must contain only one '@'"))
		return false
	}

	local, domain := value[:at], value[at+1:]
	switch {
	case local == "":
		v.add(diagnostic.New(key, raw, "must contain a recipient/local"))
	case domain == "":
		v.add(diagnostic.New(key, raw, "must have a domain"))
	case !strings.Contains(domain, "."):
		v.add(diagnostic.New(key, raw, "must contain a domain with at least one '.'"))
	case strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, "."):
		v.add(diagnostic.New(key, raw, "cannot contain a domain that starts or ends with a '.'"))
	default:
		return true
	}
	return false
}

// Author is the author shape the validator checks
type Author struct {
	Name  string
	Email string
	URL   string
}

// Authors validates the author list. Email and URL are optional and only
// checked when set.
func (v *Validator) Authors(authors []Author) bool {
	if v.halted() {
		return false
	}
	const key = "authors"
	if authors == nil {
		v.add(diagnostic.Absent(key, "must not be null"))
		return false
	}
	if len(authors) == 0 {
		v.add(diagnostic.New(key, "", "must have at least one author"))
		return false
	}

	before := v.report.Len()
	for i, a := range authors {
		prefix := key + "[" + strconv.Itoa(i) + "]"
		v.Required(prefix+".name", a.Name)
		if strings.TrimSpace(a.Email) != "" {
			v.Email(prefix+".email", a.Email)
		}
		if strings.TrimSpace(a.URL) != "" {
			v.URI(prefix+".url", a.URL, true)
		}
	}
	return v.report.Len() == before
}

// Dependencies validates an identifier → range map. The identifier and the
// range of each pair are checked independently.
func (v *Validator) Dependencies(kind string, deps iter.Seq2[string, string]) bool {
	before := v.report.Len()
	for id, rng := range deps {
		if v.halted() {
			return false
		}
		key := kind + "[" + id + "]"
		v.Identifier(key, id)
		v.SemanticVersionRange(key+".versionRange", rng)
	}
	return v.report.Len() == before
}

// FullyQualifiedName validates a dotted type name such as com.example.Main
func (v *Validator) FullyQualifiedName(key, value string) bool {
	if !v.Required(key, value) {
		return false
	}
	if strings.HasPrefix(value, ".") || strings.HasSuffix(value, ".") {
		v.add(diagnostic.New(key, value, "cannot start or end with '.'"))
		return false
	}
	for _, part := range strings.Split(value, ".") {
		if part == "" {
			v.add(diagnostic.New(key, value, "cannot contain consecutive '.'"))
			return false
		}
		for i, r := range part {
			if i == 0 && !isIdentifierStart(r) {
				v.add(diagnostic.New(key, value, "does not start with a valid java class character"))
				return false
			}
			if !isIdentifierPart(r) {
				v.add(diagnostic.New(key, value, "contains an invalid java class character"))
				return false
			}
		}
	}
	return true
}

func isIdentifierStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || unicode.IsDigit(r)
}
