package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Metadata is the small JSON sidecar published next to the artifact by
// the external generator job. It lets clients skip a download when the
// cached artifact is already current.
type Metadata struct {
	Version     string `json:"version"`
	GeneratedAt int64  `json:"generated_at"`
	FileSize    int64  `json:"file_size"`
	AppCount    int    `json:"app_count"`
}

// Source produces the published cache artifact and its metadata.
type Source interface {
	FetchArtifact(ctx context.Context) ([]byte, error)
	FetchMetadata(ctx context.Context) (*Metadata, error)
}

// HTTPSource downloads the artifact published by the weekly job.
type HTTPSource struct {
	ArtifactURL string
	MetadataURL string
	Client      *http.Client
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (s *HTTPSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPSource) FetchArtifact(ctx context.Context) ([]byte, error) {
	if s.ArtifactURL == "" {
		return nil, fmt.Errorf("artifact URL is not configured")
	}
	return s.get(ctx, s.ArtifactURL)
}

func (s *HTTPSource) FetchMetadata(ctx context.Context) (*Metadata, error) {
	if s.MetadataURL == "" {
		return nil, fmt.Errorf("metadata URL is not configured")
	}
	b, err := s.get(ctx, s.MetadataURL)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return &m, nil
}
