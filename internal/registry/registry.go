package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/domain"
	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/middleware"
	"github.com/pluginmanifest/registry/internal/semver"
	"github.com/pluginmanifest/registry/internal/validation"
)

// IndexFile is the path of the plugin index inside the source
const IndexFile = "index.yaml"

var (
	// ErrIndexNotLoaded is returned before the first successful LoadIndex
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrPluginNotFound is returned for identifiers missing from the index
	ErrPluginNotFound = errors.New("plugin not found")
)

// Source is the file tree the registry reads index.yaml and plugin
// sources from
type Source interface {
	ReadFile(path string) ([]byte, error)
	CurrentCommit() string
	RepoURL() string
	Branch() string
}

// rendered is the cached outcome of rendering one plugin source
type rendered struct {
	entry domain.IndexEntry
	doc   *manifest.Document
	err   error
}

// Registry serves validated manifests of the plugins listed in index.yaml
type Registry struct {
	source    Source
	cache     *lru.Cache[string, *rendered]
	ranges    *lru.Cache[string, semver.Range]
	index     *domain.Index
	indexMu   sync.RWMutex
	cacheSize int
	failFast  bool
	validate  *validator.Validate
	logger    *slog.Logger

	// Stats
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	lastSyncAt  atomic.Value // time.Time
}

// Config holds registry configuration
type Config struct {
	Source    Source
	CacheSize int
	// FailFast stops manifest validation at the first problem
	FailFast bool
	Logger   *slog.Logger
}

// New creates a new registry instance
func New(cfg Config) (*Registry, error) {
	if cfg.Source == nil {
		return nil, errors.New("source is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cache, err := lru.New[string, *rendered](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	ranges, err := lru.New[string, semver.Range](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create range cache: %w", err)
	}

	r := &Registry{
		source:    cfg.Source,
		cache:     cache,
		ranges:    ranges,
		cacheSize: cfg.CacheSize,
		failFast:  cfg.FailFast,
		validate:  domain.NewValidator(),
		logger:    cfg.Logger,
	}
	r.lastSyncAt.Store(time.Time{})

	return r, nil
}

// LoadIndex loads and validates the index.yaml file
func (r *Registry) LoadIndex() error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	return r.loadIndexLocked()
}

// loadIndexLocked expects indexMu held for writing
func (r *Registry) loadIndexLocked() error {
	content, err := r.source.ReadFile(IndexFile)
	if err != nil {
		middleware.RegistryIndexValid.Set(0)
		return fmt.Errorf("index.yaml not found: %w", err)
	}

	var index domain.Index
	if err := yaml.Unmarshal(content, &index); err != nil {
		middleware.RegistryIndexValid.Set(0)
		return fmt.Errorf("failed to parse index.yaml: %w", err)
	}
	if err := domain.ValidateIndex(r.validate, &index); err != nil {
		middleware.RegistryIndexValid.Set(0)
		return err
	}

	if len(index.Plugins) == 0 {
		r.logger.Warn("index.yaml contains no plugins")
	}

	r.index = &index
	r.lastSyncAt.Store(time.Now())
	middleware.RegistryIndexValid.Set(1)
	middleware.RegistryPluginsTotal.Set(float64(len(index.Plugins)))

	r.logger.Info("index loaded",
		"version", index.Version,
		"commit", index.Commit,
		"plugin_count", len(index.Plugins),
	)

	return nil
}

// Refresh reloads the index after the source changed. A nil list, or one
// naming index.yaml, drops every rendered manifest; otherwise only the
// manifests rendered from the changed paths are dropped. Eviction and reload
// happen under the index lock so no render against the old index is cached
// afterwards.
func (r *Registry) Refresh(changed []string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	if changed == nil || slices.Contains(changed, IndexFile) {
		r.cache.Purge()
		r.cacheHits.Store(0)
		r.cacheMisses.Store(0)
	} else {
		evicted := 0
		for _, id := range r.cache.Keys() {
			if res, ok := r.cache.Peek(id); ok && slices.Contains(changed, res.entry.Path) {
				r.cache.Remove(id)
				evicted++
			}
		}
		r.logger.Debug("evicted changed manifests", "count", evicted)
	}
	middleware.RegistryCacheSize.Set(float64(r.cache.Len()))

	return r.loadIndexLocked()
}

// GetManifest renders the manifest of a plugin. An invalid source yields a
// *manifest.InvalidError together with the index entry.
func (r *Registry) GetManifest(id string) (*manifest.Document, domain.IndexEntry, error) {
	decodedID, err := url.PathUnescape(id)
	if err != nil {
		decodedID = id
	}

	// held across lookup, render and cache insert so Refresh cannot slip in
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if res, ok := r.cache.Get(decodedID); ok {
		r.cacheHits.Add(1)
		middleware.RegistryCacheHits.Inc()
		return res.doc, res.entry, res.err
	}
	r.cacheMisses.Add(1)
	middleware.RegistryCacheMisses.Inc()

	entry, err := r.lookupLocked(decodedID)
	if err != nil {
		return nil, domain.IndexEntry{}, err
	}

	doc, err := r.render(entry)
	var invalid *manifest.InvalidError
	if err != nil && !errors.As(err, &invalid) {
		// read and parse failures are not cached, the next sync may fix them
		return nil, entry, err
	}

	r.cache.Add(decodedID, &rendered{entry: entry, doc: doc, err: err})
	middleware.RegistryCacheSize.Set(float64(r.cache.Len()))
	return doc, entry, err
}

// lookupLocked expects indexMu held
func (r *Registry) lookupLocked(id string) (domain.IndexEntry, error) {
	if r.index == nil {
		return domain.IndexEntry{}, ErrIndexNotLoaded
	}
	for _, entry := range r.index.Plugins {
		if entry.Identifier == id {
			return entry, nil
		}
	}
	return domain.IndexEntry{}, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
}

func (r *Registry) render(entry domain.IndexEntry) (*manifest.Document, error) {
	content, err := r.source.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin source: %w", err)
	}
	format, err := manifest.FormatFromPath(entry.Path)
	if err != nil {
		return nil, err
	}
	src, err := manifest.DecodeSource(format, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plugin source %s: %w", entry.Path, err)
	}

	doc, err := src.Draft().Render(validation.WithFailFast(r.failFast))
	if err == nil && doc.Identifier() != entry.Identifier {
		report := &diagnostic.Report{}
		report.Add(diagnostic.New("identifier", doc.Identifier(), "does not match index entry "+entry.Identifier))
		doc, err = nil, &manifest.InvalidError{Report: report}
	}

	var invalid *manifest.InvalidError
	if errors.As(err, &invalid) {
		middleware.ManifestValidations.WithLabelValues("registry", "invalid").Inc()
		middleware.ManifestDiagnostics.Add(float64(invalid.Report.Len()))
		r.logger.Debug("plugin source is invalid",
			"identifier", entry.Identifier,
			"path", entry.Path,
			"problems", invalid.Report.Len(),
		)
	}
	if err != nil {
		return nil, err
	}

	middleware.ManifestValidations.WithLabelValues("registry", "valid").Inc()
	return doc, nil
}

// ListPlugins returns a paginated list of plugins with their manifests
func (r *Registry) ListPlugins(cursor string, limit int) (*domain.PluginListResponse, error) {
	entries, err := r.sortedEntries()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 30
	}
	if limit > 100 {
		limit = 100
	}

	startIdx := 0
	if cursor != "" {
		for i, e := range entries {
			if e.Identifier == cursor {
				startIdx = i + 1
				break
			}
		}
	}
	endIdx := startIdx + limit
	if endIdx > len(entries) {
		endIdx = len(entries)
	}

	results := make([]domain.PluginResponse, 0, endIdx-startIdx)
	for _, entry := range entries[startIdx:endIdx] {
		results = append(results, r.pluginResponse(entry))
	}

	var nextCursor string
	if endIdx < len(entries) {
		nextCursor = entries[endIdx-1].Identifier
	}

	return &domain.PluginListResponse{
		Plugins: results,
		Metadata: domain.ListMetadata{
			NextCursor: nextCursor,
			Count:      len(results),
		},
	}, nil
}

func (r *Registry) pluginResponse(entry domain.IndexEntry) domain.PluginResponse {
	resp := domain.PluginResponse{
		Identifier:  entry.Identifier,
		Description: entry.Description,
		Meta: &domain.PluginMeta{
			Path:   entry.Path,
			Commit: r.source.CurrentCommit(),
		},
	}

	doc, _, err := r.GetManifest(entry.Identifier)
	var invalid *manifest.InvalidError
	switch {
	case err == nil:
		resp.Manifest = doc
		resp.Meta.Valid = true
	case errors.As(err, &invalid):
		resp.Problems = invalid.Report.Len()
	default:
		resp.Problems = 1
		r.logger.Warn("failed to load plugin source", "identifier", entry.Identifier, "error", err)
	}
	return resp
}

func (r *Registry) sortedEntries() ([]domain.IndexEntry, error) {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return nil, ErrIndexNotLoaded
	}
	entries := make([]domain.IndexEntry, len(r.index.Plugins))
	copy(entries, r.index.Plugins)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identifier < entries[j].Identifier
	})
	return entries, nil
}

// SearchPlugins searches for plugins whose identifier or description
// contains the query
func (r *Registry) SearchPlugins(query string) ([]domain.IndexEntry, error) {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return nil, ErrIndexNotLoaded
	}

	query = strings.ToLower(query)
	results := []domain.IndexEntry{}
	for _, entry := range r.index.Plugins {
		if strings.Contains(strings.ToLower(entry.Identifier), query) ||
			strings.Contains(strings.ToLower(entry.Description), query) {
			results = append(results, entry)
		}
	}

	return results, nil
}

// Audit renders every indexed plugin and reports the invalid ones
func (r *Registry) Audit() (*domain.AuditResponse, error) {
	entries, err := r.sortedEntries()
	if err != nil {
		return nil, err
	}

	resp := &domain.AuditResponse{
		Commit:  r.source.CurrentCommit(),
		Total:   len(entries),
		Plugins: make([]domain.AuditEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		audit := domain.AuditEntry{Identifier: entry.Identifier, Path: entry.Path}
		_, _, err := r.GetManifest(entry.Identifier)
		var invalid *manifest.InvalidError
		switch {
		case err == nil:
			audit.Valid = true
		case errors.As(err, &invalid):
			audit.Errors = invalid.Report.Entries()
			audit.Report = invalid.Report.Render()
		default:
			audit.Errors = []diagnostic.Entry{diagnostic.New("source", entry.Path, err.Error())}
			audit.Report = audit.Errors[0].Line()
		}
		if !audit.Valid {
			resp.Invalid++
		}
		resp.Plugins = append(resp.Plugins, audit)
	}
	return resp, nil
}

// ParseRange parses a range expression through the range cache
func (r *Registry) ParseRange(expr string) (semver.Range, error) {
	if rng, ok := r.ranges.Get(expr); ok {
		return rng, nil
	}
	rng, err := semver.ParseRange(expr)
	if err != nil {
		return semver.Range{}, err
	}
	r.ranges.Add(expr, rng)
	return rng, nil
}

// DependencyStatus checks each dependency of a plugin against the version
// the registry holds for it. Only that one registered version is tested.
func (r *Registry) DependencyStatus(id string) (*domain.DependencyReport, error) {
	doc, entry, err := r.GetManifest(id)
	if err != nil {
		return nil, err
	}

	report := &domain.DependencyReport{
		Identifier:   entry.Identifier,
		Dependencies: []domain.DependencyStatus{},
		Satisfied:    true,
	}
	for _, kind := range manifest.DependencyKinds {
		for depID, expr := range doc.DependencyMap(kind).All() {
			status := r.dependencyStatus(depID, expr)
			status.Kind = kind.String()
			if kind == manifest.Required && status.Status != domain.DependencySatisfied {
				report.Satisfied = false
			}
			report.Dependencies = append(report.Dependencies, status)
		}
	}
	return report, nil
}

func (r *Registry) dependencyStatus(depID, expr string) domain.DependencyStatus {
	status := domain.DependencyStatus{Identifier: depID, Range: expr}

	rng, err := r.ParseRange(expr)
	if err != nil {
		status.Status = domain.DependencyInvalid
		status.Detail = err.Error()
		return status
	}

	dep, _, err := r.GetManifest(depID)
	switch {
	case errors.Is(err, ErrPluginNotFound):
		status.Status = domain.DependencyMissing
		return status
	case err != nil:
		status.Status = domain.DependencyInvalid
		status.Detail = "registered manifest is invalid"
		return status
	}

	status.RegisteredVersion = dep.Version
	version, err := semver.Parse(dep.Version)
	if err != nil {
		status.Status = domain.DependencyInvalid
		status.Detail = err.Error()
		return status
	}
	if rng.Contains(version) {
		status.Status = domain.DependencySatisfied
	} else {
		status.Status = domain.DependencyUnsatisfied
	}
	return status
}

// PluginCount returns the number of plugins in the index
func (r *Registry) PluginCount() int {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return 0
	}
	return len(r.index.Plugins)
}

// IndexStatus returns the current index status
func (r *Registry) IndexStatus() string {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil {
		return "not_loaded"
	}
	return "valid"
}

// CacheStats returns current cache statistics
func (r *Registry) CacheStats() *domain.CacheStats {
	hits := r.cacheHits.Load()
	misses := r.cacheMisses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return &domain.CacheStats{
		Size:     r.cache.Len(),
		Capacity: r.cacheSize,
		HitRate:  hitRate,
		Ranges:   r.ranges.Len(),
	}
}

// LastSyncAt returns the last sync timestamp
func (r *Registry) LastSyncAt() time.Time {
	return r.lastSyncAt.Load().(time.Time)
}

// Source returns the underlying file source
func (r *Registry) Source() Source {
	return r.source
}
