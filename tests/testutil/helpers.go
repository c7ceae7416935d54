package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Do sends a JSON request and returns the response status and body
func Do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// Redirects are asserted on, not followed
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// DoExpect sends a JSON request, requires status and decodes the body into out
func DoExpect(t *testing.T, method, url string, body any, status int, out any) {
	t.Helper()
	code, data := Do(t, method, url, body)
	require.Equal(t, status, code, string(data))
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

// CreateNote creates a note via the API
func CreateNote(t *testing.T, serverURL, title string, tags ...string) simplenotes.Note {
	t.Helper()
	var note simplenotes.Note
	DoExpect(t, http.MethodPost, serverURL+APIPrefix+"/notes", map[string]any{
		"title":   title,
		"content": "content of " + title,
		"tags":    tags,
	}, http.StatusCreated, &note)
	return note
}

// UploadImage uploads data as the multipart file field and returns the status
// and body
func UploadImage(t *testing.T, serverURL, noteID, filename string, data []byte) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(serverURL+APIPrefix+"/notes/"+noteID+"/images", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

// MustUploadImage uploads an image and requires 201
func MustUploadImage(t *testing.T, serverURL, noteID, filename string, data []byte) simplenotes.Image {
	t.Helper()
	code, body := UploadImage(t, serverURL, noteID, filename, data)
	require.Equal(t, http.StatusCreated, code, string(body))

	var image simplenotes.Image
	require.NoError(t, json.Unmarshal(body, &image))
	return image
}
