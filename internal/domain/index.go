package domain

// Index represents the index.yaml file structure
type Index struct {
	Version   string       `json:"version" yaml:"version"`
	Commit    string       `json:"commit" yaml:"commit"`
	UpdatedAt string       `json:"updated_at" yaml:"updated_at"`
	Plugins   []IndexEntry `json:"plugins" yaml:"plugins" validate:"dive"`
}

// IndexEntry points at the source file of one plugin
type IndexEntry struct {
	Identifier  string            `json:"identifier" yaml:"identifier" validate:"required,plugin_identifier"`
	Path        string            `json:"path" yaml:"path" validate:"required,source_path"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" validate:"max=200"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}
