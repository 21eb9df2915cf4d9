package domain

import (
	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/semver"
)

// PluginResponse wraps a rendered manifest with registry metadata
type PluginResponse struct {
	Identifier  string             `json:"identifier"`
	Description string             `json:"description,omitempty"`
	Manifest    *manifest.Document `json:"manifest,omitempty"`
	Problems    int                `json:"problems,omitempty"`
	Meta        *PluginMeta        `json:"_meta,omitempty"`
}

// PluginMeta describes where a manifest came from
type PluginMeta struct {
	Path   string `json:"path"`
	Commit string `json:"commit"`
	Valid  bool   `json:"valid"`
}

// PluginListResponse represents a paginated list of plugins
type PluginListResponse struct {
	Plugins  []PluginResponse `json:"plugins"`
	Metadata ListMetadata     `json:"metadata"`
}

// ListMetadata contains pagination metadata
type ListMetadata struct {
	NextCursor string `json:"nextCursor,omitempty"`
	Count      int    `json:"count"`
}

// Dependency status values
const (
	DependencySatisfied   = "satisfied"
	DependencyUnsatisfied = "unsatisfied"
	DependencyMissing     = "missing"
	DependencyInvalid     = "invalid"
)

// DependencyStatus is the check of one declared dependency against the
// version the registry holds for it
type DependencyStatus struct {
	Kind              string `json:"kind"`
	Identifier        string `json:"identifier"`
	Range             string `json:"range"`
	RegisteredVersion string `json:"registered_version,omitempty"`
	Status            string `json:"status"`
	Detail            string `json:"detail,omitempty"`
}

// DependencyReport lists the dependency statuses of one plugin
type DependencyReport struct {
	Identifier   string             `json:"identifier"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Satisfied    bool               `json:"satisfied"`
}

// AuditEntry is the validation result of one indexed plugin
type AuditEntry struct {
	Identifier string             `json:"identifier"`
	Path       string             `json:"path"`
	Valid      bool               `json:"valid"`
	Errors     []diagnostic.Entry `json:"errors,omitempty"`
	Report     string             `json:"report,omitempty"`
}

// AuditResponse summarizes the validation of the whole index
type AuditResponse struct {
	Commit  string       `json:"commit"`
	Total   int          `json:"total"`
	Invalid int          `json:"invalid"`
	Plugins []AuditEntry `json:"plugins"`
}

// RangeCheckRequest asks whether a version satisfies a range
type RangeCheckRequest struct {
	Range   string `json:"range" validate:"required,semver_range"`
	Version string `json:"version" validate:"required,semver"`
}

// RangeCheckResponse is the parsed range and the check result
type RangeCheckResponse struct {
	Range     string           `json:"range"`
	Kind      semver.RangeKind `json:"kind"`
	Min       string           `json:"min,omitempty"`
	Max       string           `json:"max,omitempty"`
	Version   string           `json:"version"`
	Satisfied bool             `json:"satisfied"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string      `json:"status"`
	RepoURL     string      `json:"repo_url"`
	Branch      string      `json:"branch"`
	CommitSHA   string      `json:"commit_sha"`
	LastSyncAt  string      `json:"last_sync_at"`
	IndexStatus string      `json:"index_status"`
	PluginCount int         `json:"plugin_count"`
	CacheStats  *CacheStats `json:"cache_stats,omitempty"`
	Sync        *SyncStatus `json:"sync,omitempty"`
}

// SyncStatus reports the repository sync loop
type SyncStatus struct {
	Syncing    bool   `json:"syncing"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
	LastCommit string `json:"last_commit,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	HitRate  float64 `json:"hit_rate"`
	Ranges   int     `json:"ranges"`
}

// PingResponse represents the ping response
type PingResponse struct {
	Pong bool `json:"pong"`
}

// VersionResponse represents the version info response
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// ErrorResponse represents an API error following Huma format
type ErrorResponse struct {
	Status int           `json:"status"`
	Title  string        `json:"title"`
	Detail string        `json:"detail,omitempty"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail provides detailed error information
type ErrorDetail struct {
	Message  string      `json:"message"`
	Location string      `json:"location,omitempty"`
	Value    interface{} `json:"value,omitempty"`
}

// ErrorDetails converts diagnostics into error details, one per entry
func ErrorDetails(entries []diagnostic.Entry) []ErrorDetail {
	details := make([]ErrorDetail, 0, len(entries))
	for _, e := range entries {
		d := ErrorDetail{Message: e.Message, Location: e.Key}
		if e.Value != nil {
			d.Value = *e.Value
		}
		details = append(details, d)
	}
	return details
}
