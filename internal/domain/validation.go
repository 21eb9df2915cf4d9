package domain

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/validation"
)

// NewValidator creates the struct validator for index files and request
// payloads. On top of the manifest tags it knows source_path: a path inside
// the repository with a supported source extension.
func NewValidator() *validator.Validate {
	v := validation.NewStructValidator()

	_ = v.RegisterValidation("source_path", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		if !filepath.IsLocal(path) {
			return false
		}
		_, err := manifest.FormatFromPath(path)
		return err == nil
	})

	return v
}

// ValidateIndex validates every entry of an index and rejects duplicate
// identifiers
func ValidateIndex(v *validator.Validate, index *Index) error {
	if err := v.Struct(index); err != nil {
		return &IndexError{Entries: validation.FromStructErrors("index", err)}
	}

	seen := make(map[string]int, len(index.Plugins))
	var dups []diagnostic.Entry
	for i, entry := range index.Plugins {
		if first, ok := seen[entry.Identifier]; ok {
			dups = append(dups, diagnostic.New(
				fmt.Sprintf("Index.Plugins[%d].Identifier", i),
				entry.Identifier,
				fmt.Sprintf("duplicates Index.Plugins[%d]", first),
			))
			continue
		}
		seen[entry.Identifier] = i
	}
	if len(dups) > 0 {
		return &IndexError{Entries: dups}
	}
	return nil
}

// IndexError lists the problems of an invalid index
type IndexError struct {
	Entries []diagnostic.Entry
}

func (e *IndexError) Error() string {
	var report diagnostic.Report
	for _, entry := range e.Entries {
		report.Add(entry)
	}
	return "invalid index:\n" + report.Render()
}
