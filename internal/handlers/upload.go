package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/picstash/picstash/internal/config"
	apierr "github.com/picstash/picstash/internal/errors"
	"github.com/picstash/picstash/internal/imageproc"
	"github.com/picstash/picstash/internal/index"
	"github.com/picstash/picstash/internal/metrics"
	"github.com/picstash/picstash/internal/naming"
	"github.com/picstash/picstash/internal/storage"
)

// UploadHandler contains the upload-intake handlers: validation, image
// normalization, collision-safe naming, and persistence.
type UploadHandler struct {
	cfg        *config.Config
	store      storage.Backend
	index      index.Store
	normalizer *imageproc.Normalizer
}

// NewUploadHandler creates an UploadHandler with the given dependencies.
// The index may be nil; recording is skipped.
func NewUploadHandler(cfg *config.Config, store storage.Backend, idx index.Store, n *imageproc.Normalizer) *UploadHandler {
	return &UploadHandler{cfg: cfg, store: store, index: idx, normalizer: n}
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Namespace string `json:"namespace"`
}

type uploadedFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type multiUploadResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	URLs    []string       `json:"urls"`
	Files   []uploadedFile `json:"files"`
}

// Single handles POST /upload/{namespace}: one file under the "image" field.
func (h *UploadHandler) Single(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")
	if !h.cfg.NamespaceAllowed(ns) {
		WriteError(w, invalidNamespace(h.cfg, ns))
		return
	}

	maxBody := h.cfg.Limits.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(maxBody); err != nil {
		WriteError(w, uploadParseError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteError(w, apierr.ErrNoFile)
		return
	}
	defer file.Close()

	if err := h.validateFile(header); err != nil {
		WriteError(w, err)
		return
	}

	stored, err := h.process(r, ns, file, header)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		URL:       stored.URL,
		Filename:  stored.Filename,
		Namespace: ns,
	})
}

// Multiple handles POST /upload-multiple/{namespace}: up to the configured
// maximum of files under the "images" field. Every file is validated before
// any is processed; files are then normalized and stored concurrently, and a
// failure in any one aborts the request. Files already written by the time
// of the failure are not rolled back.
func (h *UploadHandler) Multiple(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")
	if !h.cfg.NamespaceAllowed(ns) {
		WriteError(w, invalidNamespace(h.cfg, ns))
		return
	}

	maxBody := h.cfg.Limits.MaxFileSize*int64(h.cfg.Limits.MaxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(maxBody); err != nil {
		WriteError(w, uploadParseError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		WriteError(w, apierr.ErrNoFile)
		return
	}
	if len(headers) > h.cfg.Limits.MaxFiles {
		WriteError(w, apierr.ErrTooManyFiles.WithMessage(
			"Too many files. Maximum: %d", h.cfg.Limits.MaxFiles))
		return
	}

	// Validate everything before touching storage.
	for _, hdr := range headers {
		if err := h.validateFile(hdr); err != nil {
			WriteError(w, err)
			return
		}
	}

	results := make([]uploadedFile, len(headers))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, hdr := range headers {
		g.Go(func() error {
			file, err := hdr.Open()
			if err != nil {
				return apierr.ErrInternal
			}
			defer file.Close()

			stored, perr := h.processCtx(ctx, ns, file, hdr)
			if perr != nil {
				return perr
			}
			results[i] = *stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		WriteError(w, err)
		return
	}

	urls := make([]string, len(results))
	for i, f := range results {
		urls[i] = f.URL
	}
	writeJSON(w, http.StatusOK, multiUploadResponse{
		Success: true,
		Count:   len(results),
		URLs:    urls,
		Files:   results,
	})
}

// validateFile checks a file's declared MIME type and size against the
// configured bounds.
func (h *UploadHandler) validateFile(hdr *multipart.FileHeader) error {
	mime := hdr.Header.Get("Content-Type")
	if !h.cfg.TypeAllowed(mime) {
		return apierr.ErrInvalidFileType.WithMessage(
			"Invalid file type. Allowed: %s", strings.Join(h.cfg.Image.AllowedTypes, ", "))
	}
	if hdr.Size > h.cfg.Limits.MaxFileSize {
		return apierr.ErrFileTooLarge.WithMessage(
			"File too large. Maximum size: %dMB", h.cfg.Limits.MaxFileSize>>20)
	}
	return nil
}

func (h *UploadHandler) process(r *http.Request, ns string, file multipart.File, hdr *multipart.FileHeader) (*uploadedFile, error) {
	return h.processCtx(r.Context(), ns, file, hdr)
}

// processCtx runs one validated file through normalize, name, and store.
// All returned errors are *apierr.APIError.
func (h *UploadHandler) processCtx(ctx context.Context, ns string, file multipart.File, hdr *multipart.FileHeader) (*uploadedFile, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		slog.Error("read upload body", "namespace", ns, "error", err)
		return nil, apierr.ErrInternal
	}
	metrics.BytesReceivedTotal.Add(float64(len(raw)))

	start := time.Now()
	normalized, err := h.normalizer.Normalize(raw)
	if err != nil {
		slog.Warn("normalize image", "namespace", ns, "filename", hdr.Filename, "error", err)
		return nil, apierr.ErrUnprocessableImage.WithDetails(fmt.Sprintf("decode %q failed", hdr.Filename))
	}
	metrics.NormalizeDuration.Observe(time.Since(start).Seconds())

	name := naming.GenerateName()
	if err := h.store.Put(ctx, ns, name, normalized); err != nil {
		slog.Error("store object", "namespace", ns, "name", name, "error", err)
		return nil, apierr.ErrInternal
	}
	metrics.UploadsTotal.WithLabelValues(ns).Inc()
	metrics.BytesStoredTotal.Add(float64(len(normalized)))

	// The index is advisory; a failed record never fails the upload.
	if h.index != nil {
		e := index.Entry{Namespace: ns, Name: name, Size: int64(len(normalized)), CreatedAt: time.Now()}
		if err := h.index.Put(ctx, e); err != nil {
			slog.Warn("record upload in index", "namespace", ns, "name", name, "error", err)
		}
	}

	return &uploadedFile{
		URL:      naming.ObjectURL(h.cfg.Server.Domain, ns, name),
		Filename: name,
	}, nil
}

// uploadParseError classifies a multipart parse failure: a body past the
// byte cap is "too large", anything else is treated as no usable file.
func uploadParseError(err error) *apierr.APIError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apierr.ErrFileTooLarge
	}
	return apierr.ErrNoFile
}

// invalidNamespace builds the rejection listing the allowed set.
func invalidNamespace(cfg *config.Config, ns string) *apierr.APIError {
	return apierr.ErrInvalidNamespace.WithMessage(
		"Invalid namespace %q. Allowed: %s", ns, strings.Join(cfg.Namespaces, ", "))
}
