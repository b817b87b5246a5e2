package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
)

// ImageHandler serves stored person photos.
type ImageHandler struct {
	images *service.ImageService
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(images *service.ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

// HandleServe serves stored bytes. Only sniffed raster image types are
// rendered inline; anything else is downloaded as an opaque attachment so an
// upload can never execute as a page on this origin.
// GET /images/{name}
func (h *ImageHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := h.images.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("serve image", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	if ct := http.DetectContentType(data); inlineImage(ct) {
		hdr.Set("Content-Type", ct)
	} else {
		hdr.Set("Content-Type", "application/octet-stream")
		hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	hdr.Set("Content-Security-Policy", "default-src 'none'; sandbox")
	hdr.Set("X-Content-Type-Options", "nosniff")
	// Stored names are unique per upload, so the content never changes.
	hdr.Set("Cache-Control", "public, max-age=31536000, immutable")
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// inlineImage reports whether a sniffed type is safe to render in place.
// DetectContentType never yields SVG, but scriptable image formats stay
// excluded regardless.
func inlineImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") && !strings.Contains(contentType, "svg")
}
