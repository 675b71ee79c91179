package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/picstash/picstash/internal/config"
	apierr "github.com/picstash/picstash/internal/errors"
	"github.com/picstash/picstash/internal/index"
	"github.com/picstash/picstash/internal/metrics"
	"github.com/picstash/picstash/internal/naming"
	"github.com/picstash/picstash/internal/storage"
)

// DeleteHandler contains the deletion handlers: by (namespace, filename)
// pair and by previously issued public URL.
type DeleteHandler struct {
	cfg   *config.Config
	store storage.Backend
	index index.Store
}

// NewDeleteHandler creates a DeleteHandler with the given dependencies.
// The index may be nil; recording is skipped.
func NewDeleteHandler(cfg *config.Config, store storage.Backend, idx index.Store) *DeleteHandler {
	return &DeleteHandler{cfg: cfg, store: store, index: idx}
}

type deleteRequest struct {
	Filename  string `json:"filename"`
	Namespace string `json:"namespace"`
}

type deleteByURLRequest struct {
	URL string `json:"url"`
}

type deleteResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
}

// ByName handles DELETE /delete with body {filename, namespace}.
func (h *DeleteHandler) ByName(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierr.ErrMissingField.WithMessage("Filename and namespace are required"))
		return
	}
	if req.Filename == "" || req.Namespace == "" {
		WriteError(w, apierr.ErrMissingField.WithMessage("Filename and namespace are required"))
		return
	}
	if !h.cfg.NamespaceAllowed(req.Namespace) {
		WriteError(w, invalidNamespace(h.cfg, req.Namespace))
		return
	}

	if err := h.remove(r, req.Namespace, req.Filename); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Success:  true,
		Message:  "File deleted successfully",
		Filename: req.Filename,
	})
}

// ByURL handles DELETE /delete-by-url with body {url}. The URL is parsed
// back into (namespace, name) as the exact inverse of URL construction.
func (h *DeleteHandler) ByURL(w http.ResponseWriter, r *http.Request) {
	var req deleteByURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierr.ErrMissingField.WithMessage("URL is required"))
		return
	}
	if req.URL == "" {
		WriteError(w, apierr.ErrMissingField.WithMessage("URL is required"))
		return
	}

	ns, name, err := naming.ParseObjectURL(req.URL)
	if err != nil {
		WriteError(w, apierr.ErrInvalidURL)
		return
	}
	if !h.cfg.NamespaceAllowed(ns) {
		WriteError(w, invalidNamespace(h.cfg, ns))
		return
	}

	if err := h.remove(r, ns, name); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Success: true,
		Message: "File deleted successfully",
	})
}

// remove sanitizes the caller-supplied name and deletes the object. A name
// that sanitization rejects cannot refer to any stored object, so it reports
// not-found rather than leaking why.
func (h *DeleteHandler) remove(r *http.Request, ns, rawName string) error {
	name, err := naming.SanitizeName(rawName)
	if err != nil {
		return apierr.ErrFileNotFound
	}

	ctx := r.Context()
	if err := h.store.Delete(ctx, ns, name); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return apierr.ErrFileNotFound
		}
		slog.Error("delete object", "namespace", ns, "name", name, "error", err)
		return apierr.ErrInternal
	}
	metrics.DeletesTotal.WithLabelValues(ns).Inc()

	if h.index != nil {
		if err := h.index.Delete(ctx, ns, name); err != nil {
			slog.Warn("remove upload from index", "namespace", ns, "name", name, "error", err)
		}
	}
	return nil
}
