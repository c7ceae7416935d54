package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// CreateNoteRequest is the request body for creating a note
type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// PatchNoteRequest is the request body for a partial update. A non-empty
// tag_ids replaces the note's tags.
type PatchNoteRequest struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	TagIDs  []string `json:"tag_ids"`
	Version *int     `json:"version"`
}

// ReplaceNoteRequest is the request body for a full update
type ReplaceNoteRequest struct {
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Tags    []TagRequest `json:"tags"`
	Version *int         `json:"version"`
}

// CreateNote creates a note, creating missing tags by name
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	note, err := h.service.CreateNote(r.Context(), simplenotes.CreateNoteRequest{
		Title:    req.Title,
		Content:  req.Content,
		TagNames: req.Tags,
	})
	if err != nil {
		writeError(w, r, "Failed to create note", err)
		return
	}

	slog.Info("Note created", "note_id", note.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, note)
}

// ListNotes lists notes, filtered by ?tag= when given
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := parsePage(w, r)
	if !ok {
		return
	}

	notes, err := h.service.ListNotes(r.Context(), simplenotes.ListNotesRequest{
		Tag:    r.URL.Query().Get("tag"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, "Failed to list notes", err)
		return
	}

	render.JSON(w, r, notes)
}

// GetNote retrieves a note by ID
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	note, err := h.service.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, r, "Failed to get note", err, "note_id", id.String())
		return
	}

	render.JSON(w, r, note)
}

// PatchNote updates the supplied fields of a note
func (h *Handler) PatchNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req PatchNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tagIDs := make([]uuid.UUID, 0, len(req.TagIDs))
	for _, raw := range req.TagIDs {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, r, "Invalid tag id "+raw)
			return
		}
		tagIDs = append(tagIDs, tagID)
	}

	note, err := h.service.PatchNote(r.Context(), simplenotes.PatchNoteRequest{
		ID:              id,
		Title:           req.Title,
		Content:         req.Content,
		TagIDs:          tagIDs,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		writeError(w, r, "Failed to patch note", err, "note_id", id.String())
		return
	}

	slog.Info("Note patched", "note_id", id.String(), "version", note.Version)
	render.JSON(w, r, note)
}

// ReplaceNote overwrites a note with the request body
func (h *Handler) ReplaceNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req ReplaceNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tags := make([]simplenotes.Tag, 0, len(req.Tags))
	for _, t := range req.Tags {
		tagID, err := uuid.Parse(t.ID)
		if err != nil {
			badRequest(w, r, "Invalid tag id "+t.ID)
			return
		}
		tags = append(tags, simplenotes.Tag{ID: tagID, Name: t.Name})
	}

	note, err := h.service.ReplaceNote(r.Context(), simplenotes.ReplaceNoteRequest{
		ID:              id,
		Title:           req.Title,
		Content:         req.Content,
		Tags:            tags,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		writeError(w, r, "Failed to replace note", err, "note_id", id.String())
		return
	}

	slog.Info("Note replaced", "note_id", id.String(), "version", note.Version)
	render.JSON(w, r, note)
}

// DeleteNote deletes a note together with its images
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteNote(r.Context(), id); err != nil {
		writeError(w, r, "Failed to delete note", err, "note_id", id.String())
		return
	}

	slog.Info("Note deleted", "note_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}
