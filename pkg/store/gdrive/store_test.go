package gdrive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{FileID: "file1"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresFileID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStore_FetchMetadataAndContent(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/file1", r.URL.Path)
		if r.URL.Query().Get("alt") == "media" {
			_, _ = w.Write([]byte("workbook"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file1","mimeType":"application/octet-stream","modifiedTime":"2026-01-01T00:00:00.000Z"}`))
	})
	ctx := context.Background()

	token, err := s.FetchMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.VersionToken("2026-01-01T00:00:00.000Z"), token)

	data, err := s.FetchContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	assert.Equal(t, "gdrive:file1", s.Describe())
}

func TestStore_NativeSheetIsFormatError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file1","mimeType":"application/vnd.google-apps.spreadsheet","modifiedTime":"x"}`))
	})

	_, err := s.FetchMetadata(context.Background())
	assert.ErrorIs(t, err, sheetid.ErrFormat)
}

func TestStore_UnauthorizedIsAuthentication(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	})

	_, err := s.FetchMetadata(context.Background())
	assert.ErrorIs(t, err, store.ErrAuthentication)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"401", &googleapi.Error{Code: 401}, store.ErrAuthentication},
		{"403", &googleapi.Error{Code: 403}, store.ErrAuthentication},
		{
			"403 rate limited",
			&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}},
			store.ErrTransient,
		},
		{"500", &googleapi.Error{Code: 500}, store.ErrTransient},
		{"412", &googleapi.Error{Code: 412}, store.ErrConflict},
		{"network", errors.New("connection refused"), store.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("get file", tt.err), tt.want)
		})
	}
}

func TestClassify_NotFound(t *testing.T) {
	err := classify("get file", &googleapi.Error{Code: 404, Message: "File not found"})

	var apiErr *googleapi.Error
	assert.ErrorAs(t, err, &apiErr)
	assert.NotErrorIs(t, err, store.ErrTransient)
}
