package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDownloadsSource(t *testing.T) {
	payload := []byte("fake video bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/clip.mp4", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	resolver := NewHTTPResolver()

	localPath, err := resolver.Resolve(context.Background(), srv.URL+"/uploads/clip.mp4", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.mp4"), localPath)

	got, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestResolveFallbackName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	resolver := NewHTTPResolver()

	localPath, err := resolver.Resolve(context.Background(), srv.URL+"/", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input"), localPath)
}

func TestResolveNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := NewHTTPResolver()
	_, err := resolver.Resolve(context.Background(), srv.URL+"/missing.mp4", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestResolveCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewHTTPResolver()
	_, err := resolver.Resolve(ctx, srv.URL+"/clip.mp4", t.TempDir())
	require.Error(t, err)
}
