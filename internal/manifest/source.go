package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a plugin source file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for source files with an unsupported extension
var ErrUnknownFormat = errors.New("unknown plugin source format")

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Source is the hand-written description of a plugin, as kept next to its
// code or in the registry repository
type Source struct {
	Group                string         `json:"group" yaml:"group" toml:"group"`
	Name                 string         `json:"name" yaml:"name" toml:"name"`
	Version              string         `json:"version" yaml:"version" toml:"version"`
	Description          string         `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
	Authors              []SourceAuthor `json:"authors,omitempty" yaml:"authors,omitempty" toml:"authors"`
	Website              string         `json:"website,omitempty" yaml:"website,omitempty" toml:"website"`
	ServerVersion        string         `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty" toml:"serverVersion"`
	Dependencies         *Dependencies  `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"-"`
	OptionalDependencies *Dependencies  `json:"optionalDependencies,omitempty" yaml:"optionalDependencies,omitempty" toml:"-"`
	LoadBefore           *Dependencies  `json:"loadBefore,omitempty" yaml:"loadBefore,omitempty" toml:"-"`
	DisabledByDefault    bool           `json:"disabledByDefault,omitempty" yaml:"disabledByDefault,omitempty" toml:"disabledByDefault"`
	IncludesAssetPack    bool           `json:"includesAssetPack,omitempty" yaml:"includesAssetPack,omitempty" toml:"includesAssetPack"`
	Main                 string         `json:"main" yaml:"main" toml:"main"`
}

// SourceAuthor is an author entry of a plugin source
type SourceAuthor struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty" toml:"email"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty" toml:"url"`
}

func (s *Source) dependencyMap(kind DependencyKind) **Dependencies {
	switch kind {
	case Optional:
		return &s.OptionalDependencies
	case LoadBefore:
		return &s.LoadBefore
	}
	return &s.Dependencies
}

// LoadSource reads a plugin source file, choosing the format by extension
func LoadSource(path string) (*Source, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin source: %w", err)
	}
	src, err := DecodeSource(format, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// DecodeSource parses a plugin source. Unknown keys are rejected and
// dependency order is kept in every format.
func DecodeSource(format Format, data []byte) (*Source, error) {
	var src Source
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&src); err != nil {
			return nil, fmt.Errorf("failed to parse json source: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&src); err != nil {
			return nil, fmt.Errorf("failed to parse yaml source: %w", err)
		}
	case FormatTOML:
		if err := decodeTOML(data, &src); err != nil {
			return nil, fmt.Errorf("failed to parse toml source: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &src, nil
}

// decodeTOML decodes the scalar fields into src, then the dependency tables
// as plain maps which are put back in file order using the decoder metadata.
func decodeTOML(data []byte, src *Source) error {
	md, err := toml.Decode(string(data), src)
	if err != nil {
		return err
	}

	var tables struct {
		Dependencies         map[string]string `toml:"dependencies"`
		OptionalDependencies map[string]string `toml:"optionalDependencies"`
		LoadBefore           map[string]string `toml:"loadBefore"`
	}
	if _, err := toml.Decode(string(data), &tables); err != nil {
		return err
	}
	values := map[string]map[string]string{
		Required.String():   tables.Dependencies,
		Optional.String():   tables.OptionalDependencies,
		LoadBefore.String(): tables.LoadBefore,
	}

	for _, kind := range DependencyKinds {
		if values[kind.String()] != nil {
			*src.dependencyMap(kind) = &Dependencies{}
		}
	}
	for _, key := range md.Keys() {
		if len(key) != 2 {
			continue
		}
		table, ok := values[key[0]]
		if !ok || table == nil {
			continue
		}
		for _, kind := range DependencyKinds {
			if kind.String() == key[0] {
				(*src.dependencyMap(kind)).Set(key[1], table[key[1]])
			}
		}
	}

	// keys the metadata did not list still land in the map, sorted
	for _, kind := range DependencyKinds {
		table := values[kind.String()]
		ids := slices.Sorted(maps.Keys(table))
		for _, id := range ids {
			deps := *src.dependencyMap(kind)
			if _, ok := deps.Get(id); !ok {
				deps.Set(id, table[id])
			}
		}
	}

	for _, key := range md.Undecoded() {
		if _, ok := values[key[0]]; ok {
			continue
		}
		return fmt.Errorf("unknown key %q", key.String())
	}
	return nil
}

// Draft converts the source into a draft. A blank server version keeps the
// draft default.
func (s *Source) Draft() *Draft {
	d := NewDraft().
		SetGroup(s.Group).
		SetName(s.Name).
		SetVersion(s.Version).
		SetDescription(s.Description).
		SetWebsite(s.Website).
		SetDisabledByDefault(s.DisabledByDefault).
		SetIncludesAssetPack(s.IncludesAssetPack).
		SetMain(s.Main)
	if s.ServerVersion != "" {
		d.SetServerVersion(s.ServerVersion)
	}
	if s.Authors != nil {
		authors := make([]Author, 0, len(s.Authors))
		for _, a := range s.Authors {
			authors = append(authors, Author{Name: a.Name, Email: a.Email, URL: a.URL})
		}
		d.SetAuthors(authors)
	}
	for _, kind := range DependencyKinds {
		for id, rng := range (*s.dependencyMap(kind)).All() {
			d.AddDependency(kind, id, rng)
		}
	}
	return d
}
