package drive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/angelmondragon/labaccess-backend/internal/badges"
)

func TestSaveUploadsIntoFolder(t *testing.T) {
	var body string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file-42"}`))
	}))
	defer srv.Close()

	svc, err := driveapi.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	store, err := NewWithService(svc, "folder-1")
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), badges.File{
		Name:        "42   2024-03-01  John Doe.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
		Description: `{"eid":"jd1234"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "drive://file-42", ref)
	assert.Contains(t, query, "uploadType=multipart")
	assert.Contains(t, body, "folder-1")
	assert.Contains(t, body, "%PDF-1.4")
	assert.True(t, strings.Contains(body, "42   2024-03-01  John Doe.pdf"))
}

func TestNewWithServiceRequiresFolder(t *testing.T) {
	svc, err := driveapi.NewService(context.Background(), option.WithHTTPClient(http.DefaultClient))
	require.NoError(t, err)
	_, err = NewWithService(svc, " ")
	require.Error(t, err)
}
