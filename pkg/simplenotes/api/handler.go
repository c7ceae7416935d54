// Package api exposes the notes service over HTTP with chi.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// maxUploadSize bounds a multipart image upload
const maxUploadSize = 32 << 20

// Handler handles HTTP requests for notes, tags and images
type Handler struct {
	service simplenotes.Service
}

// NewHandler creates a new handler
func NewHandler(service simplenotes.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the JSON API, meant to be mounted under the API prefix
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/notes", func(r chi.Router) {
		r.Post("/", h.CreateNote)
		r.Get("/", h.ListNotes)
		r.Get("/{id}", h.GetNote)
		r.Patch("/{id}", h.PatchNote)
		r.Put("/{id}", h.ReplaceNote)
		r.Delete("/{id}", h.DeleteNote)

		r.Post("/{id}/images", h.UploadImage)
		r.Get("/{id}/images", h.ListImages)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.ListTags)
		r.Post("/", h.CreateTag)
		r.Get("/{id}", h.GetTag)
		r.Patch("/{id}", h.RenameTag)
		r.Delete("/{id}", h.DeleteTag)
	})

	r.Get("/images/{id}", h.GetImage)
	r.Delete("/images/{id}", h.DeleteImage)
	r.Get("/files/{note_id}/{filename}", h.ServeFile)

	return r
}

// RedirectShortURL answers GET /i/{code} with a temporary redirect to the
// image URL.
func (h *Handler) RedirectShortURL(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	image, err := h.service.GetImageByShortURL(r.Context(), code)
	if err != nil {
		writeError(w, r, "Failed to resolve short url", err, "short_url", code)
		return
	}

	http.Redirect(w, r, image.URL, http.StatusTemporaryRedirect)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var storageErr *simplenotes.StorageError
	switch {
	case errors.Is(err, simplenotes.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplenotes.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, simplenotes.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &storageErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	status := statusFor(err)
	args = append(args, "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, args...)
	} else {
		slog.Warn(msg, args...)
	}

	body := ErrorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, param)
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Warn("Invalid ID", param, idStr, "error", err)
		badRequest(w, r, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads skip and limit query parameters
func parsePage(w http.ResponseWriter, r *http.Request) (offset, limit int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"skip", &offset}, {"limit", &limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(w, r, "Invalid "+p.name)
			return 0, 0, false
		}
		*p.dst = v
	}
	return offset, limit, true
}
