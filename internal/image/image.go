// Package image moves pictures between data URIs, files and the network.
package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/manash/olive/internal/security"
	"github.com/manash/olive/pkg/models"
)

const maxRedirects = 10

type Saver struct {
	httpClient *http.Client
}

func NewSaver() *Saver {
	return &Saver{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *Saver) Save(ctx context.Context, img *models.GeneratedImage, path string) error {
	var data []byte
	var err error

	switch {
	case len(img.Data) > 0:
		data = img.Data
	case img.Base64 != "":
		data, _, err = DecodeDataURI(EncodeDataURI("image/png", img.Base64))
		if err != nil {
			return err
		}
	case img.URL != "":
		data, err = s.Download(ctx, img.URL)
		if err != nil {
			return fmt.Errorf("failed to download image: %w", err)
		}
	default:
		return fmt.Errorf("no image data available")
	}

	if err := s.write(path, data); err != nil {
		return err
	}
	img.Filename = path
	return nil
}

// SaveDataURI writes the image behind a data URI, as stored in design
// results and variations.
func (s *Saver) SaveDataURI(uri, path string) error {
	data, _, err := DecodeDataURI(uri)
	if err != nil {
		return err
	}
	return s.write(path, data)
}

// Download fetches a remote image such as a generated render served by URL.
// The host must resolve to public addresses.
func (s *Saver) Download(ctx context.Context, url string) ([]byte, error) {
	return s.fetch(ctx, url, security.CheckRemoteImageURL)
}

// DownloadThumbnail fetches a product thumbnail from a shopping search
// result. Only known thumbnail hosts are contacted.
func (s *Saver) DownloadThumbnail(ctx context.Context, url string) ([]byte, error) {
	return s.fetch(ctx, url, security.CheckThumbnailURL)
}

func (s *Saver) fetch(ctx context.Context, url string, check func(context.Context, string) error) ([]byte, error) {
	if err := check(ctx, url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := *s.httpClient
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return check(next.Context(), next.URL.String())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}
	return data, nil
}

func (s *Saver) write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func GenerateFilename(prefix string, index int, format models.OutputFormat) string {
	return GenerateFilenameWithTime(prefix, index, format, time.Now())
}

func GenerateFilenameWithTime(prefix string, index int, format models.OutputFormat, t time.Time) string {
	timestamp := t.Format("20060102-150405")
	if index > 0 {
		return fmt.Sprintf("%s-%s-%d.%s", prefix, timestamp, index+1, format)
	}
	return fmt.Sprintf("%s-%s.%s", prefix, timestamp, format)
}
