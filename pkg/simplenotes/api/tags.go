package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// TagRequest names a tag. ID is only read when replacing a note.
type TagRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := parsePage(w, r)
	if !ok {
		return
	}

	tags, err := h.service.ListTags(r.Context(), simplenotes.ListTagsRequest{Offset: offset, Limit: limit})
	if err != nil {
		writeError(w, r, "Failed to list tags", err)
		return
	}

	render.JSON(w, r, tags)
}

// CreateTag creates a tag; an existing name is a conflict
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tag, err := h.service.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, "Failed to create tag", err, "name", req.Name)
		return
	}

	slog.Info("Tag created", "tag_id", tag.ID.String(), "name", tag.Name)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, tag)
}

func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	tag, err := h.service.GetTag(r.Context(), id)
	if err != nil {
		writeError(w, r, "Failed to get tag", err, "tag_id", id.String())
		return
	}

	render.JSON(w, r, tag)
}

// RenameTag renames a tag
func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tag, err := h.service.RenameTag(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, r, "Failed to rename tag", err, "tag_id", id.String())
		return
	}

	slog.Info("Tag renamed", "tag_id", id.String(), "name", tag.Name)
	render.JSON(w, r, tag)
}

func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTag(r.Context(), id); err != nil {
		writeError(w, r, "Failed to delete tag", err, "tag_id", id.String())
		return
	}

	slog.Info("Tag deleted", "tag_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}
