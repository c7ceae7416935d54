package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/api"
	memoryrepo "github.com/tendant/simple-notes/pkg/simplenotes/repo/memory"
	memorystorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/memory"
)

// APIPrefix is where NewServer mounts the JSON API
const APIPrefix = "/api/v1"

// SetupTestServer creates a test server backed by in-memory stores
func SetupTestServer(t *testing.T) *httptest.Server {
	svc, err := simplenotes.New(
		simplenotes.WithRepository(memoryrepo.New()),
		simplenotes.WithBlobStore("memory", memorystorage.New()),
	)
	require.NoError(t, err)
	return NewServer(t, svc)
}

// NewServer serves svc with the same routes as cmd/server. The server is
// closed when the test ends.
func NewServer(t *testing.T, svc simplenotes.Service) *httptest.Server {
	handler := api.NewHandler(svc)

	r := chi.NewRouter()
	r.Mount(APIPrefix, handler.Routes())
	r.Get("/i/{code}", handler.RedirectShortURL)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}
