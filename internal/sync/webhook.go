package sync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/registry"
)

// maxWebhookBody caps the payload read before the signature is checked
const maxWebhookBody = 10 << 20

// Trigger schedules a sync
type Trigger interface {
	Trigger()
}

// WebhookHandler handles GitHub webhook events
type WebhookHandler struct {
	secret  []byte
	trigger Trigger
	branch  string
	logger  *slog.Logger
}

// PushEvent is the part of a GitHub push payload the handler reads
type PushEvent struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits []struct {
		ID       string   `json:"id"`
		Added    []string `json:"added"`
		Removed  []string `json:"removed"`
		Modified []string `json:"modified"`
	} `json:"commits"`
}

// touchesPlugins reports whether a commit changed index.yaml or a plugin
// source. A push without file lists is assumed to touch them.
func (e *PushEvent) touchesPlugins() bool {
	if len(e.Commits) == 0 {
		return true
	}
	for _, c := range e.Commits {
		for _, files := range [][]string{c.Added, c.Removed, c.Modified} {
			for _, f := range files {
				if f == registry.IndexFile || isSourceFile(f) {
					return true
				}
			}
		}
	}
	return false
}

func isSourceFile(path string) bool {
	_, err := manifest.FormatFromPath(path)
	return err == nil
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(secret string, trigger Trigger, branch string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		secret:  []byte(secret),
		trigger: trigger,
		branch:  branch,
		logger:  logger,
	}
}

// ServeHTTP handles incoming webhook requests
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.validateSignature(r.Header.Get("X-Hub-Signature-256"), body) {
		h.logger.Warn("invalid webhook signature", "remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	h.logger.Info("webhook received",
		"event", eventType,
		"delivery_id", r.Header.Get("X-GitHub-Delivery"),
	)

	switch eventType {
	case "ping":
		writeStatus(w, "pong", "")
		return
	case "push":
	default:
		h.logger.Debug("ignoring non-push event", "event", eventType)
		writeStatus(w, "ignored", "not a push event")
		return
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("failed to parse push event", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	expectedRef := "refs/heads/" + h.branch
	if event.Ref != expectedRef {
		h.logger.Debug("ignoring push to different branch", "ref", event.Ref, "expected", expectedRef)
		writeStatus(w, "ignored", "different branch")
		return
	}
	if !event.touchesPlugins() {
		writeStatus(w, "ignored", "no plugin sources changed")
		return
	}

	h.logger.Info("push event for tracked branch",
		"ref", event.Ref,
		"before", shortSHA(event.Before),
		"after", shortSHA(event.After),
		"commit_count", len(event.Commits),
		"pusher", event.Pusher.Name,
	)

	h.trigger.Trigger()
	writeStatus(w, "accepted", "")
}

func (h *WebhookHandler) validateSignature(signature string, body []byte) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(sign(h.secret, body)))
}

// Sign returns the X-Hub-Signature-256 header value for body
func Sign(secret string, body []byte) string {
	return sign([]byte(secret), body)
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func writeStatus(w http.ResponseWriter, status, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}{status, reason})
}
