package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"
)

// DependencyKind names one of the three dependency maps of a manifest
type DependencyKind int

const (
	Required DependencyKind = iota
	Optional
	LoadBefore
)

// DependencyKinds lists the kinds in document order
var DependencyKinds = []DependencyKind{Required, Optional, LoadBefore}

// String returns the diagnostic key prefix of the kind
func (k DependencyKind) String() string {
	switch k {
	case Required:
		return "dependencies"
	case Optional:
		return "optionalDependencies"
	case LoadBefore:
		return "loadBefore"
	}
	return "unknown"
}

// Dependencies maps plugin identifiers to version range expressions and
// remembers insertion order. The zero value is ready to use.
type Dependencies struct {
	keys   []string
	values map[string]string
}

// NewDependencies builds a map from alternating identifier, range pairs
func NewDependencies(pairs ...string) *Dependencies {
	d := &Dependencies{}
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i], pairs[i+1])
	}
	return d
}

// Set adds or replaces a dependency. A replaced identifier keeps its position.
func (d *Dependencies) Set(id, versionRange string) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[id]; !ok {
		d.keys = append(d.keys, id)
	}
	d.values[id] = versionRange
}

// Get returns the range registered for id
func (d *Dependencies) Get(id string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.values[id]
	return v, ok
}

// Len returns the number of dependencies
func (d *Dependencies) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the identifiers in insertion order
func (d *Dependencies) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// All iterates identifier, range pairs in insertion order
func (d *Dependencies) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if d == nil {
			return
		}
		for _, k := range d.keys {
			if !yield(k, d.values[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy
func (d *Dependencies) Clone() *Dependencies {
	out := &Dependencies{}
	for k, v := range d.All() {
		out.Set(k, v)
	}
	return out
}

// MarshalJSON writes the map as a JSON object in insertion order
func (d *Dependencies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, v := range d.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		if err := writeJSONString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSONString keeps range operators such as ">=" unescaped
func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON reads a JSON object of strings keeping key order
func (d *Dependencies) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = Dependencies{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dependencies must be an object, got %v", tok)
	}

	out := Dependencies{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("dependency key must be a string, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("dependency %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// MarshalYAML writes the map as a YAML mapping in insertion order
func (d *Dependencies) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for k, v := range d.All() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
		)
	}
	return node, nil
}

// UnmarshalYAML reads a YAML mapping of scalars keeping key order
func (d *Dependencies) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: dependencies must be a mapping", node.Line)
	}
	out := Dependencies{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if valueNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: dependency %q must be a version range string", valueNode.Line, keyNode.Value)
		}
		out.Set(keyNode.Value, valueNode.Value)
	}
	*d = out
	return nil
}
