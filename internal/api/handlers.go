package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pluginmanifest/registry/internal/domain"
	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/middleware"
	"github.com/pluginmanifest/registry/internal/registry"
	"github.com/pluginmanifest/registry/internal/semver"
	"github.com/pluginmanifest/registry/internal/sync"
	"github.com/pluginmanifest/registry/internal/validation"
)

// Build information (set at compile time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// syncStatus is the part of the sync manager the health check reads
type syncStatus interface {
	Status() sync.Status
}

// Handlers provides HTTP handlers for the API
type Handlers struct {
	registry *registry.Registry
	sync     syncStatus
	validate *validator.Validate
	failFast bool
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance. failFast is the default for
// manifest validation requests that do not pass ?failFast.
func NewHandlers(reg *registry.Registry, failFast bool, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		registry: reg,
		validate: domain.NewValidator(),
		failFast: failFast,
		logger:   logger,
	}
}

// Health returns health check information
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	source := h.registry.Source()

	status := "ok"
	indexStatus := h.registry.IndexStatus()
	if indexStatus != "valid" {
		status = "degraded"
	}

	resp := domain.HealthResponse{
		Status:      status,
		RepoURL:     source.RepoURL(),
		Branch:      source.Branch(),
		CommitSHA:   source.CurrentCommit(),
		LastSyncAt:  h.registry.LastSyncAt().Format(time.RFC3339),
		IndexStatus: indexStatus,
		PluginCount: h.registry.PluginCount(),
		CacheStats:  h.registry.CacheStats(),
	}
	if h.sync != nil {
		st := h.sync.Status()
		resp.Sync = &domain.SyncStatus{
			Syncing:    st.Syncing,
			LastCommit: st.LastCommit,
			LastError:  st.LastError,
		}
		if !st.LastSync.IsZero() {
			resp.Sync.LastSyncAt = st.LastSync.Format(time.RFC3339)
		}
		if st.LastError != "" {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ping returns a simple pong response
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.PingResponse{Pong: true})
}

// Version returns build version information
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildInfo())
}

// BuildInfo returns the linked build information, falling back to the
// module build info for untagged builds
func BuildInfo() domain.VersionResponse {
	resp := domain.VersionResponse{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if info, ok := debug.ReadBuildInfo(); ok && resp.Version == "dev" {
		if info.Main.Version != "" {
			resp.Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				resp.GitCommit = setting.Value
			case "vcs.time":
				resp.BuildTime = setting.Value
			}
		}
	}
	return resp
}

// ListPlugins returns a paginated list of plugins
func (h *Handlers) ListPlugins(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = l
	}

	resp, err := h.registry.ListPlugins(cursor, limit)
	if err != nil {
		h.logger.Error("failed to list plugins", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable",
			"Index not available. Ensure index.yaml exists and is valid.")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPlugin returns the canonical manifest of a plugin
func (h *Handlers) GetPlugin(w http.ResponseWriter, r *http.Request) {
	id, ok := pluginID(w, r)
	if !ok {
		return
	}

	doc, entry, err := h.registry.GetManifest(id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.PluginResponse{
		Identifier:  entry.Identifier,
		Description: entry.Description,
		Manifest:    doc,
		Meta: &domain.PluginMeta{
			Path:   entry.Path,
			Commit: h.registry.Source().CurrentCommit(),
			Valid:  true,
		},
	})
}

// GetDependencies checks the dependencies of a plugin against the registry
func (h *Handlers) GetDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := pluginID(w, r)
	if !ok {
		return
	}

	report, err := h.registry.DependencyStatus(id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Search returns the index entries matching ?q
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "query parameter q is required")
		return
	}

	results, err := h.registry.SearchPlugins(query)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"plugins": results,
		"count":   len(results),
	})
}

// Audit validates every indexed plugin
func (h *Handlers) Audit(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registry.Audit()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ValidateManifest validates a plugin source sent as JSON and answers with
// the canonical document or every diagnostic
func (h *Handlers) ValidateManifest(w http.ResponseWriter, r *http.Request) {
	failFast, ok := boolQuery(w, r, "failFast", h.failFast)
	if !ok {
		return
	}
	pretty, ok := boolQuery(w, r, "pretty", false)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Bad Request", "failed to read body")
		return
	}
	src, err := manifest.DecodeSource(manifest.FormatJSON, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	_, span := middleware.StartSpan(r.Context(), "manifest.render",
		attribute.String("plugin.identifier", src.Group+":"+src.Name),
		attribute.Bool("validation.fail_fast", failFast),
	)
	doc, err := src.Draft().Render(validation.WithFailFast(failFast))
	span.End()

	var invalid *manifest.InvalidError
	if errors.As(err, &invalid) {
		middleware.ManifestValidations.WithLabelValues("api", "invalid").Inc()
		middleware.ManifestDiagnostics.Add(float64(invalid.Report.Len()))
		writeJSON(w, http.StatusUnprocessableEntity, domain.ErrorResponse{
			Status: http.StatusUnprocessableEntity,
			Title:  "Unprocessable Entity",
			Detail: invalid.Report.Render(),
			Errors: domain.ErrorDetails(invalid.Report.Entries()),
		})
		return
	}
	if err != nil {
		h.logger.Error("manifest render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}
	middleware.ManifestValidations.WithLabelValues("api", "valid").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = manifest.Encode(w, doc, pretty)
}

// CheckRange reports whether a version satisfies a range
func (h *Handlers) CheckRange(w http.ResponseWriter, r *http.Request) {
	var req domain.RangeCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, domain.ErrorResponse{
			Status: http.StatusUnprocessableEntity,
			Title:  "Unprocessable Entity",
			Detail: "range check request is invalid",
			Errors: domain.ErrorDetails(validation.FromStructErrors("request", err)),
		})
		return
	}

	rng, err := h.registry.ParseRange(req.Range)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}
	version, err := semver.Parse(req.Version)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}

	resp := domain.RangeCheckResponse{
		Range:     rng.String(),
		Kind:      rng.Kind,
		Version:   version.String(),
		Satisfied: rng.Contains(version),
	}
	if rng.Min != nil {
		resp.Min = rng.Min.String()
	}
	if rng.Max != nil {
		resp.Max = rng.Max.String()
	}
	result := "unsatisfied"
	if resp.Satisfied {
		result = "satisfied"
	}
	middleware.RangeChecks.WithLabelValues(result).Inc()

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writeRegistryError(w http.ResponseWriter, id string, err error) {
	var invalid *manifest.InvalidError
	switch {
	case errors.Is(err, registry.ErrPluginNotFound):
		writeError(w, http.StatusNotFound, "Not Found", "Plugin not found: "+id)
	case errors.Is(err, registry.ErrIndexNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, domain.ErrorResponse{
			Status: http.StatusUnprocessableEntity,
			Title:  "Unprocessable Entity",
			Detail: invalid.Report.Render(),
			Errors: domain.ErrorDetails(invalid.Report.Entries()),
		})
	default:
		h.logger.Error("failed to load plugin", "identifier", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "failed to load plugin source")
	}
}

// Helper functions

func pluginID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "pluginID")
	id, err := url.PathUnescape(raw)
	if err != nil {
		id = raw
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "Plugin identifier is required")
		return "", false
	}
	return id, true
}

func boolQuery(w http.ResponseWriter, r *http.Request, name string, fallback bool) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", name+" must be a boolean")
		return false, false
	}
	return b, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, title, detail string) {
	resp := domain.ErrorResponse{
		Status: status,
		Title:  title,
		Detail: detail,
	}
	writeJSON(w, status, resp)
}
