package icons

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register the decoders for the formats catalogs actually ship.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// maxIconBytes bounds one fetched asset.
const maxIconBytes = 4 << 20

// Fetcher retrieves the raw bytes behind one icon reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPFetcher fetches remote icon references.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", ref, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
}

// FileFetcher resolves icon references against a local media directory,
// for catalogs that ship cached icon trees alongside the documents.
type FileFetcher struct {
	Root string
}

func (f *FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ref
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, ref)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) > maxIconBytes {
		return nil, fmt.Errorf("icon %s exceeds size limit", ref)
	}
	return b, nil
}

// sniffFormat validates the asset and names its format. SVG is passed
// through by prefix sniff; raster formats must decode a config header.
func sniffFormat(data []byte) (string, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<svg")) || bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return "svg", nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("undecodable icon asset: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("icon asset has invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return strings.ToLower(format), nil
}
