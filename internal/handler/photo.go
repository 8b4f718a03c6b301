package handler

import (
	"log/slog"
	"net/http"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/photo"
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type PhotoHandler struct {
	uploader *photo.Uploader
	logger   *slog.Logger
}

// NewPhotoHandler accepts a nil uploader; uploads then return 503 and the
// rest of the app runs without photo evidence.
func NewPhotoHandler(uploader *photo.Uploader, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{uploader: uploader, logger: logger}
}

// Upload stores one work photo and returns its URL for inclusion in a later
// completion request.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "photo storage not configured"})
		return
	}

	familyID := auth.FamilyID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes)
	if err := r.ParseMultipartForm(photo.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo too large or malformed"})
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo field is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedPhotoTypes[contentType] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo must be JPEG, PNG, or WebP"})
		return
	}

	url, err := h.uploader.Upload(r.Context(), familyID, contentType, file, header.Size)
	if err != nil {
		h.logger.Error("upload photo", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store photo"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
