package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// FileName is the name the rendered document is written under
const FileName = "manifest.json"

// Document is the canonical form of a valid manifest. Field order is the
// key order of the encoded document; optional keys are omitted when blank,
// empty or false.
type Document struct {
	Group                string           `json:"Group" yaml:"Group"`
	Name                 string           `json:"Name" yaml:"Name"`
	Version              string           `json:"Version" yaml:"Version"`
	Description          string           `json:"Description,omitempty" yaml:"Description,omitempty"`
	Authors              []DocumentAuthor `json:"Authors" yaml:"Authors"`
	Website              string           `json:"Website,omitempty" yaml:"Website,omitempty"`
	ServerVersion        string           `json:"ServerVersion" yaml:"ServerVersion"`
	Dependencies         *Dependencies    `json:"Dependencies,omitempty" yaml:"Dependencies,omitempty"`
	OptionalDependencies *Dependencies    `json:"OptionalDependencies,omitempty" yaml:"OptionalDependencies,omitempty"`
	LoadBefore           *Dependencies    `json:"LoadBefore,omitempty" yaml:"LoadBefore,omitempty"`
	DisabledByDefault    bool             `json:"DisabledByDefault,omitempty" yaml:"DisabledByDefault,omitempty"`
	IncludesAssetPack    bool             `json:"IncludesAssetPack,omitempty" yaml:"IncludesAssetPack,omitempty"`
	Main                 string           `json:"Main" yaml:"Main"`
}

// DocumentAuthor is an author entry of the document
type DocumentAuthor struct {
	Name  string `json:"Name" yaml:"Name"`
	Email string `json:"Email,omitempty" yaml:"Email,omitempty"`
	URL   string `json:"Url,omitempty" yaml:"Url,omitempty"`
}

// Identifier returns "Group:Name"
func (doc *Document) Identifier() string {
	return doc.Group + ":" + doc.Name
}

// DependencyMap returns the map of kind, or nil when the document has none
func (doc *Document) DependencyMap(kind DependencyKind) *Dependencies {
	switch kind {
	case Required:
		return doc.Dependencies
	case Optional:
		return doc.OptionalDependencies
	case LoadBefore:
		return doc.LoadBefore
	}
	return nil
}

// Encode writes doc as JSON. Pretty output is indented by two spaces.
func Encode(w io.Writer, doc *Document, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// Marshal returns the JSON document without a trailing newline
func Marshal(doc *Document, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, pretty); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MarshalYAMLDocument returns the document as YAML in canonical key order
func MarshalYAMLDocument(doc *Document) ([]byte, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return out, nil
}

// Decode reads a JSON document
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &doc, nil
}

// FromDocument turns a document back into a draft carrying the same values
func FromDocument(doc *Document) *Draft {
	d := NewDraft().
		SetGroup(doc.Group).
		SetName(doc.Name).
		SetVersion(doc.Version).
		SetDescription(doc.Description).
		SetWebsite(doc.Website).
		SetServerVersion(doc.ServerVersion).
		SetDisabledByDefault(doc.DisabledByDefault).
		SetIncludesAssetPack(doc.IncludesAssetPack).
		SetMain(doc.Main)

	if doc.Authors != nil {
		authors := make([]Author, 0, len(doc.Authors))
		for _, a := range doc.Authors {
			authors = append(authors, Author{Name: a.Name, Email: a.Email, URL: a.URL})
		}
		d.SetAuthors(authors)
	}
	for _, kind := range DependencyKinds {
		for id, rng := range doc.DependencyMap(kind).All() {
			d.AddDependency(kind, id, rng)
		}
	}
	return d
}
