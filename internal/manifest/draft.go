// Package manifest models a plugin manifest. A Draft is filled through
// setters, validated in one pass and rendered into a canonical Document.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/validation"
)

// ErrSealed is returned by Render once a draft has been rendered successfully
var ErrSealed = errors.New("manifest draft already rendered")

// InvalidError carries the report of a failed Render
type InvalidError struct {
	Report *diagnostic.Report
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid plugin manifest (%d problems):\n%s", e.Report.Len(), e.Report.Render())
}

// Author is one manifest author. Email and URL are optional.
type Author struct {
	Name  string
	Email string
	URL   string
}

// Draft is the mutable manifest a single caller fills before rendering.
// Setters are ignored after a successful Render.
type Draft struct {
	group         string
	name          string
	version       string
	description   string
	authors       []Author
	website       string
	serverVersion string
	deps          [3]*Dependencies
	disabled      bool
	assetPack     bool
	main          string

	sealed bool
}

// NewDraft creates an empty draft accepting any server version
func NewDraft() *Draft {
	d := &Draft{serverVersion: "*"}
	for i := range d.deps {
		d.deps[i] = &Dependencies{}
	}
	return d
}

// SetGroup sets the plugin group
func (d *Draft) SetGroup(group string) *Draft {
	if !d.sealed {
		d.group = group
	}
	return d
}

// SetName sets the plugin name
func (d *Draft) SetName(name string) *Draft {
	if !d.sealed {
		d.name = name
	}
	return d
}

// SetVersion sets the plugin version, a semantic version
func (d *Draft) SetVersion(version string) *Draft {
	if !d.sealed {
		d.version = version
	}
	return d
}

// SetDescription sets the optional plain-text description
func (d *Draft) SetDescription(description string) *Draft {
	if !d.sealed {
		d.description = description
	}
	return d
}

// SetWebsite sets the optional website URI
func (d *Draft) SetWebsite(website string) *Draft {
	if !d.sealed {
		d.website = website
	}
	return d
}

// SetServerVersion sets the range of server versions the plugin supports
func (d *Draft) SetServerVersion(versionRange string) *Draft {
	if !d.sealed {
		d.serverVersion = versionRange
	}
	return d
}

// SetMain sets the fully-qualified name of the main type
func (d *Draft) SetMain(main string) *Draft {
	if !d.sealed {
		d.main = main
	}
	return d
}

// AddAuthor appends an author
func (d *Draft) AddAuthor(a Author) *Draft {
	if !d.sealed {
		d.authors = append(d.authors, a)
	}
	return d
}

// SetAuthors replaces the author list with a copy of authors. A nil slice
// clears the list, which fails validation as missing.
func (d *Draft) SetAuthors(authors []Author) *Draft {
	if d.sealed {
		return d
	}
	if authors == nil {
		d.authors = nil
		return d
	}
	d.authors = append(make([]Author, 0, len(authors)), authors...)
	return d
}

// AddDependency registers id with a version range in the map of kind
func (d *Draft) AddDependency(kind DependencyKind, id, versionRange string) *Draft {
	if !d.sealed && int(kind) < len(d.deps) {
		d.deps[kind].Set(id, versionRange)
	}
	return d
}

// AddRequiredDependency registers a dependency the plugin cannot load without
func (d *Draft) AddRequiredDependency(id, versionRange string) *Draft {
	return d.AddDependency(Required, id, versionRange)
}

// AddOptionalDependency registers a dependency used when present
func (d *Draft) AddOptionalDependency(id, versionRange string) *Draft {
	return d.AddDependency(Optional, id, versionRange)
}

// AddLoadBeforeDependency registers a plugin that must load after this one
func (d *Draft) AddLoadBeforeDependency(id, versionRange string) *Draft {
	return d.AddDependency(LoadBefore, id, versionRange)
}

// SetDisabledByDefault marks the plugin as disabled until enabled by the server owner
func (d *Draft) SetDisabledByDefault(disabled bool) *Draft {
	if !d.sealed {
		d.disabled = disabled
	}
	return d
}

// SetIncludesAssetPack marks the plugin as shipping an asset pack
func (d *Draft) SetIncludesAssetPack(included bool) *Draft {
	if !d.sealed {
		d.assetPack = included
	}
	return d
}

// Group returns the plugin group as set
func (d *Draft) Group() string { return d.group }

// Name returns the plugin name as set
func (d *Draft) Name() string { return d.name }

// Version returns the plugin version as set, before Render trims it
func (d *Draft) Version() string { return d.version }

// Description returns the plugin description
func (d *Draft) Description() string { return d.description }

// Website returns the website as set, before Render trims it
func (d *Draft) Website() string { return d.website }

// ServerVersion returns the server version range as set
func (d *Draft) ServerVersion() string { return d.serverVersion }

// Main returns the fully-qualified main type name
func (d *Draft) Main() string { return d.main }

// DisabledByDefault reports whether the plugin starts disabled
func (d *Draft) DisabledByDefault() bool { return d.disabled }

// IncludesAssetPack reports whether the plugin ships an asset pack
func (d *Draft) IncludesAssetPack() bool { return d.assetPack }

// Authors returns a copy of the author list
func (d *Draft) Authors() []Author {
	if d.authors == nil {
		return nil
	}
	return append([]Author(nil), d.authors...)
}

// Dependencies returns a copy of the map of kind
func (d *Draft) Dependencies(kind DependencyKind) *Dependencies {
	if int(kind) >= len(d.deps) {
		return &Dependencies{}
	}
	return d.deps[kind].Clone()
}

// Identifier returns "group:name"
func (d *Draft) Identifier() string {
	return d.group + ":" + d.name
}

// Sealed reports whether the draft was rendered
func (d *Draft) Sealed() bool {
	return d.sealed
}

// Check runs every field check and returns the report without rendering
func (d *Draft) Check(opts ...validation.Option) *diagnostic.Report {
	v := validation.New(opts...)

	v.Charset("pluginGroup", d.group, '-')
	v.Charset("pluginName", d.name, '-')
	v.SemanticVersion("pluginVersion", d.version)
	if d.description != "" {
		v.PlainText("pluginDescription", d.description)
	}
	v.URI("pluginWebsite", d.website, true)

	var authors []validation.Author
	if d.authors != nil {
		authors = make([]validation.Author, 0, len(d.authors))
		for _, a := range d.authors {
			authors = append(authors, validation.Author{Name: a.Name, Email: a.Email, URL: a.URL})
		}
	}
	v.Authors(authors)

	v.SemanticVersionRange("serverVersion", d.serverVersion)
	for _, kind := range DependencyKinds {
		v.Dependencies(kind.String(), d.deps[kind].All())
	}
	v.FullyQualifiedName("pluginMainClass", d.main)

	return v.Report()
}

// trimmedRanges copies deps with surrounding blanks stripped from each range;
// nil when deps is empty
func trimmedRanges(deps *Dependencies) *Dependencies {
	if deps.Len() == 0 {
		return nil
	}
	out := &Dependencies{}
	for id, versionRange := range deps.All() {
		out.Set(id, strings.TrimSpace(versionRange))
	}
	return out
}

// Render validates the draft and builds its canonical document. A failed
// Render returns *InvalidError and leaves the draft as it was; a successful
// one seals the draft.
func (d *Draft) Render(opts ...validation.Option) (*Document, error) {
	if d.sealed {
		return nil, ErrSealed
	}
	if report := d.Check(opts...); !report.Empty() {
		return nil, &InvalidError{Report: report}
	}

	doc := &Document{
		Group:             d.group,
		Name:              d.name,
		Version:           strings.TrimSpace(d.version),
		Description:       d.description,
		Authors:           make([]DocumentAuthor, 0, len(d.authors)),
		Website:           strings.TrimSpace(d.website),
		ServerVersion:     strings.TrimSpace(d.serverVersion),
		DisabledByDefault: d.disabled,
		IncludesAssetPack: d.assetPack,
		Main:              d.main,
	}
	for _, a := range d.authors {
		doc.Authors = append(doc.Authors, DocumentAuthor{
			Name:  a.Name,
			Email: strings.TrimSpace(a.Email),
			URL:   strings.TrimSpace(a.URL),
		})
	}
	doc.Dependencies = trimmedRanges(d.deps[Required])
	doc.OptionalDependencies = trimmedRanges(d.deps[Optional])
	doc.LoadBefore = trimmedRanges(d.deps[LoadBefore])

	d.sealed = true
	return doc, nil
}
