package manifest

import (
	"strings"
)

// Defaults are values supplied by the surrounding build: project
// coordinates, discovered main type candidates, the current user name and
// whether the project ships resources.
type Defaults struct {
	ProjectGroup   string
	ProjectName    string
	ProjectVersion string
	MainCandidates []string
	UserName       string
	HasResources   bool
}

// FallbackVersion is used when neither the source nor the project has a
// version
const FallbackVersion = "0.0.0"

// Defaulted records one field ApplyDefaults filled in, or left alone
type Defaulted struct {
	Field  string
	Value  string
	Reason string
}

// ApplyDefaults fills blank fields of the draft from defaults and returns
// what it changed. Fields that are already set are never overwritten.
func (d *Draft) ApplyDefaults(defaults Defaults) []Defaulted {
	if d.sealed {
		return nil
	}
	var applied []Defaulted
	fill := func(field string, current *string, value, reason string) {
		if strings.TrimSpace(*current) != "" || strings.TrimSpace(value) == "" {
			return
		}
		*current = value
		applied = append(applied, Defaulted{Field: field, Value: value, Reason: reason})
	}

	fill("Group", &d.group, defaults.ProjectGroup, "project group")
	fill("Name", &d.name, defaults.ProjectName, "project name")
	fill("Version", &d.version, defaults.ProjectVersion, "project version")
	fill("Version", &d.version, FallbackVersion, "fallback version")
	fill("ServerVersion", &d.serverVersion, "*", "any server version")

	if strings.TrimSpace(d.main) == "" {
		switch len(defaults.MainCandidates) {
		case 0:
		case 1:
			fill("Main", &d.main, defaults.MainCandidates[0], "single main candidate")
		default:
			applied = append(applied, Defaulted{
				Field:  "Main",
				Reason: "multiple main candidates: " + strings.Join(defaults.MainCandidates, ", "),
			})
		}
	}

	if len(d.authors) == 0 {
		name, reason := strings.TrimSpace(defaults.UserName), "user name"
		if name == "" {
			name, reason = d.name+"-Author", "plugin name"
		}
		d.authors = []Author{{Name: name}}
		applied = append(applied, Defaulted{Field: "Authors", Value: name, Reason: reason})
	}

	if defaults.HasResources && !d.assetPack {
		d.assetPack = true
		applied = append(applied, Defaulted{Field: "IncludesAssetPack", Value: "true", Reason: "resources found"})
	}
	return applied
}
