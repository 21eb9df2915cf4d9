// Package diagnostic holds validation failures and renders them as a report.
package diagnostic

import (
	"strings"
)

// Entry is a single validation failure
type Entry struct {
	Key     string  `json:"key"`
	Value   *string `json:"value"`
	Message string  `json:"message"`
}

// New creates an entry for a value that was present
func New(key, value, message string) Entry {
	return Entry{Key: key, Value: &value, Message: message}
}

// Absent creates an entry for a value that was not supplied at all
func Absent(key, message string) Entry {
	return Entry{Key: key, Message: message}
}

// ValueString returns the offending value, or "null" when it was absent
func (e Entry) ValueString() string {
	if e.Value == nil {
		return "null"
	}
	return *e.Value
}

// Line formats the entry as "key message -> value"
func (e Entry) Line() string {
	return e.Key + " " + e.Message + " -> " + e.ValueString()
}

func (e Entry) Error() string {
	return e.Line()
}

// Report is an ordered collection of entries from one validation pass.
// Entries are never merged; deduplication happens only in Render.
type Report struct {
	entries []Entry
}

// Add appends an entry
func (r *Report) Add(e Entry) {
	r.entries = append(r.entries, e)
}

// Len returns the number of collected entries
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Empty reports whether no entry was collected
func (r *Report) Empty() bool {
	return r.Len() == 0
}

// Entries returns a copy of every collected entry in insertion order
func (r *Report) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// First returns the earliest entry
func (r *Report) First() (Entry, bool) {
	if r.Empty() {
		return Entry{}, false
	}
	return r.entries[0], true
}

// Keys returns the distinct keys in order of first appearance
func (r *Report) Keys() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(r.entries))
	var keys []string
	for _, e := range r.entries {
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		keys = append(keys, e.Key)
	}
	return keys
}

// Collapsed returns one entry per key. A key keeps the position of its
// first entry and the content of its last one.
func (r *Report) Collapsed() []Entry {
	if r == nil {
		return nil
	}
	pos := make(map[string]int, len(r.entries))
	var out []Entry
	for _, e := range r.entries {
		if i, ok := pos[e.Key]; ok {
			out[i] = e
			continue
		}
		pos[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

// Render formats the collapsed report, one line per key
func (r *Report) Render() string {
	collapsed := r.Collapsed()
	lines := make([]string, 0, len(collapsed))
	for _, e := range collapsed {
		lines = append(lines, e.Line())
	}
	return strings.Join(lines, "\n")
}
