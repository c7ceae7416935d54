package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// UploadImage stores the multipart "file" field as an image of the note
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	noteID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("Invalid upload", "note_id", noteID.String(), "error", err)
		badRequest(w, r, "Missing or invalid file field")
		return
	}
	defer file.Close()

	image, err := h.service.UploadImage(r.Context(), simplenotes.UploadImageRequest{
		NoteID:      noteID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		writeError(w, r, "Failed to upload image", err, "note_id", noteID.String())
		return
	}

	slog.Info("Image uploaded", "image_id", image.ID.String(), "note_id", noteID.String(), "short_url", image.ShortURL)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, image)
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	noteID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	images, err := h.service.ListImages(r.Context(), noteID)
	if err != nil {
		writeError(w, r, "Failed to list images", err, "note_id", noteID.String())
		return
	}

	render.JSON(w, r, images)
}

func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	image, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		writeError(w, r, "Failed to get image", err, "image_id", id.String())
		return
	}

	render.JSON(w, r, image)
}

// DeleteImage removes the blob, then the row
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		writeError(w, r, "Failed to delete image", err, "image_id", id.String())
		return
	}

	slog.Info("Image deleted", "image_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// ServeFile streams image bytes for content-based URLs
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	noteID, ok := parseID(w, r, "note_id")
	if !ok {
		return
	}
	filename := chi.URLParam(r, "filename")

	rc, err := h.service.OpenImage(r.Context(), noteID, filename)
	if err != nil {
		writeError(w, r, "Failed to open image", err, "note_id", noteID.String(), "filename", filename)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("Failed to stream image", "note_id", noteID.String(), "filename", filename, "error", err)
	}
}
