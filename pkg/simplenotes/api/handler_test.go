package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/memory"
	memorystorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/memory"
)

// setupHandlerTest mounts the handler the way cmd/server does, on in-memory
// backends
func setupHandlerTest(t *testing.T) (http.Handler, simplenotes.Service) {
	service, err := simplenotes.New(
		simplenotes.WithRepository(memory.New()),
		simplenotes.WithBlobStore("memory", memorystorage.New()),
		simplenotes.WithEventSink(simplenotes.NewNoopEventSink()),
	)
	require.NoError(t, err)

	handler := NewHandler(service)
	router := chi.NewRouter()
	router.Mount("/api/v1", handler.Routes())
	router.Get("/i/{code}", handler.RedirectShortURL)
	return router, service
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadImage(t *testing.T, router http.Handler, noteID, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/"+noteID+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHandler_CreateNote_Success(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/notes", CreateNoteRequest{
		Title:   "Groceries",
		Content: "milk",
		Tags:    []string{"home", "errands"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	note := decode[simplenotes.Note](t, w)
	assert.NotEqual(t, uuid.Nil, note.ID)
	assert.Equal(t, "Groceries", note.Title)
	assert.Equal(t, 1, note.Version)
	require.Len(t, note.Tags, 2)
	assert.Equal(t, "errands", note.Tags[0].Name)
	assert.Equal(t, "home", note.Tags[1].Name)
}

func TestHandler_CreateNote_Validation(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/notes", CreateNoteRequest{Title: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetNote(t *testing.T) {
	router, service := setupHandlerTest(t)

	t.Run("found", func(t *testing.T) {
		created, err := service.CreateNote(t.Context(), simplenotes.CreateNoteRequest{Title: "a"})
		require.NoError(t, err)

		w := doJSON(t, router, http.MethodGet, "/api/v1/notes/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, created.ID, decode[simplenotes.Note](t, w).ID)
	})

	t.Run("not found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/notes/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decode[ErrorResponse](t, w).Error, "not found")
	})

	t.Run("bad id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/notes/nope", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_ListNotes(t *testing.T) {
	router, service := setupHandlerTest(t)
	ctx := t.Context()

	_, err := service.CreateNote(ctx, simplenotes.CreateNoteRequest{Title: "one", TagNames: []string{"work"}})
	require.NoError(t, err)
	_, err = service.CreateNote(ctx, simplenotes.CreateNoteRequest{Title: "two"})
	require.NoError(t, err)
	_, err = service.CreateNote(ctx, simplenotes.CreateNoteRequest{Title: "three", TagNames: []string{"work"}})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/api/v1/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]simplenotes.Note](t, w), 3)

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes?tag=work", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[[]simplenotes.Note](t, w)
	require.Len(t, notes, 2)
	assert.Equal(t, "one", notes[0].Title)
	assert.Equal(t, "three", notes[1].Title)

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes = decode[[]simplenotes.Note](t, w)
	require.Len(t, notes, 1)
	assert.Equal(t, "two", notes[0].Title)

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_PatchNote(t *testing.T) {
	router, service := setupHandlerTest(t)
	ctx := t.Context()

	note, err := service.CreateNote(ctx, simplenotes.CreateNoteRequest{Title: "draft", Content: "body"})
	require.NoError(t, err)
	tag, err := service.CreateTag(ctx, "urgent")
	require.NoError(t, err)

	title := "final"
	w := doJSON(t, router, http.MethodPatch, "/api/v1/notes/"+note.ID.String(), PatchNoteRequest{
		Title:  &title,
		TagIDs: []string{tag.ID.String()},
	})
	require.Equal(t, http.StatusOK, w.Code)

	patched := decode[simplenotes.Note](t, w)
	assert.Equal(t, "final", patched.Title)
	assert.Equal(t, "body", patched.Content)
	assert.Equal(t, 2, patched.Version)
	require.Len(t, patched.Tags, 1)
	assert.Equal(t, "urgent", patched.Tags[0].Name)

	stale := 1
	w = doJSON(t, router, http.MethodPatch, "/api/v1/notes/"+note.ID.String(), PatchNoteRequest{Title: &title, Version: &stale})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/notes/"+note.ID.String(), PatchNoteRequest{TagIDs: []string{"bogus"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ReplaceNote(t *testing.T) {
	router, service := setupHandlerTest(t)
	ctx := t.Context()

	note, err := service.CreateNote(ctx, simplenotes.CreateNoteRequest{Title: "old", Content: "old", TagNames: []string{"a"}})
	require.NoError(t, err)
	b, err := service.CreateTag(ctx, "b")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPut, "/api/v1/notes/"+note.ID.String(), ReplaceNoteRequest{
		Title: "new",
		Tags:  []TagRequest{{ID: b.ID.String(), Name: "b"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	replaced := decode[simplenotes.Note](t, w)
	assert.Equal(t, "new", replaced.Title)
	assert.Empty(t, replaced.Content)
	require.Len(t, replaced.Tags, 1)
	assert.Equal(t, b.ID, replaced.Tags[0].ID)
}

func TestHandler_DeleteNote(t *testing.T) {
	router, service := setupHandlerTest(t)

	note, err := service.CreateNote(t.Context(), simplenotes.CreateNoteRequest{Title: "gone"})
	require.NoError(t, err)
	w := uploadImage(t, router, note.ID.String(), "a.png", "image/png", []byte("png"))
	require.Equal(t, http.StatusCreated, w.Code)
	image := decode[simplenotes.Image](t, w)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/notes/"+note.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes/"+note.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/files/"+note.ID.String()+"/"+image.Filename, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/notes/"+note.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Tags(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags", TagRequest{Name: "work"})
	require.Equal(t, http.StatusCreated, w.Code)
	tag := decode[simplenotes.Tag](t, w)
	assert.Equal(t, "work", tag.Name)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tags", TagRequest{Name: "work"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tags", TagRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/tags/"+tag.ID.String(), TagRequest{Name: "office"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "office", decode[simplenotes.Tag](t, w).Name)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+tag.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "office", decode[simplenotes.Tag](t, w).Name)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]simplenotes.Tag](t, w), 1)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+tag.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ImageLifecycle(t *testing.T) {
	router, service := setupHandlerTest(t)

	note, err := service.CreateNote(t.Context(), simplenotes.CreateNoteRequest{Title: "pics"})
	require.NoError(t, err)

	w := uploadImage(t, router, note.ID.String(), "Photo.PNG", "image/png", []byte("fake png bytes"))
	require.Equal(t, http.StatusCreated, w.Code)
	image := decode[simplenotes.Image](t, w)
	assert.Equal(t, note.ID, image.NoteID)
	assert.Equal(t, "image/png", image.ContentType)
	assert.NotEmpty(t, image.ShortURL)
	assert.Equal(t, "/api/v1/files/"+image.ObjectName(), image.URL)

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes/"+note.ID.String()+"/images", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]simplenotes.Image](t, w), 1)

	w = doJSON(t, router, http.MethodGet, "/api/v1/images/"+image.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, image.ShortURL, decode[simplenotes.Image](t, w).ShortURL)

	w = doJSON(t, router, http.MethodGet, image.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fake png bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = doJSON(t, router, http.MethodGet, "/i/"+image.ShortURL, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, image.URL, w.Header().Get("Location"))

	w = doJSON(t, router, http.MethodDelete, "/api/v1/images/"+image.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/images/"+image.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/i/"+image.ShortURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UploadImage_Errors(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := uploadImage(t, router, uuid.NewString(), "a.png", "image/png", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/"+uuid.NewString()+"/images", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", simplenotes.ErrNoteNotFound, http.StatusNotFound},
		{"object not found", &simplenotes.StorageError{Backend: "s3", Err: simplenotes.ErrObjectNotFound}, http.StatusNotFound},
		{"conflict", simplenotes.ErrVersionMismatch, http.StatusConflict},
		{"validation", &simplenotes.ValidationError{Field: "title", Reason: "is required"}, http.StatusBadRequest},
		{"storage", &simplenotes.StorageError{Backend: "s3", Err: fmt.Errorf("connection refused")}, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
