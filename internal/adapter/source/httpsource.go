package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"vidpress/internal/port"
)

// HTTPResolver downloads a source_ref URL into the job's scratch directory.
// The transport that accepted the upload serves the bytes back by reference,
// so inputs are resolved only at execution time.
type HTTPResolver struct {
	client *http.Client
}

func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, sourceRef, destDir string) (string, error) {
	u, err := url.Parse(sourceRef)
	if err != nil {
		return "", fmt.Errorf("parse source ref: %w", err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		name = "input"
	}
	localPath := filepath.Join(destDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("write local file: %w", err)
	}
	return localPath, nil
}

var _ port.SourceResolver = (*HTTPResolver)(nil)
