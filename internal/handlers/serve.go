package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/picstash/picstash/internal/config"
	apierr "github.com/picstash/picstash/internal/errors"
	"github.com/picstash/picstash/internal/naming"
	"github.com/picstash/picstash/internal/storage"
)

// ServeHandler streams stored objects back to readers.
type ServeHandler struct {
	cfg   *config.Config
	store storage.Backend
}

func NewServeHandler(cfg *config.Config, store storage.Backend) *ServeHandler {
	return &ServeHandler{cfg: cfg, store: store}
}

// Object handles GET /uploads/{namespace}/{filename}. Stored objects are
// immutable, so readers get long-lived cache headers.
func (h *ServeHandler) Object(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")
	if !h.cfg.NamespaceAllowed(ns) {
		WriteError(w, apierr.ErrNotFound)
		return
	}

	name, err := naming.SanitizeName(chi.URLParam(r, "filename"))
	if err != nil {
		WriteError(w, apierr.ErrFileNotFound)
		return
	}

	body, size, err := h.store.Get(r.Context(), ns, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			WriteError(w, apierr.ErrFileNotFound)
			return
		}
		slog.Error("read object", "namespace", ns, "name", name, "error", err)
		WriteError(w, apierr.ErrInternal)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000, immutable")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("stream object", "namespace", ns, "name", name, "error", err)
	}
}
