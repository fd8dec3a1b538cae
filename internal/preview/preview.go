// Package preview implements the local-preview generator consumed by the
// upload engine: dimension measurement for validation and small on-disk
// thumbnails shown while the real upload is still in flight.
package preview

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/driftline/attachkit/internal/attach"
	"github.com/google/uuid"
	"github.com/h2non/bimg"
)

const thumbnailEdge = 320

// DiskGenerator writes preview thumbnails under Dir and serves them by
// file URI. Implements attach.Previewer.
type DiskGenerator struct {
	Dir string
}

// NewDiskGenerator ensures dir exists and returns a generator writing into it.
// The directory is cleaned first; a trailing separator in config would
// otherwise break the ownership check in Release.
func NewDiskGenerator(dir string) (*DiskGenerator, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating preview dir %s: %w", dir, err)
	}
	return &DiskGenerator{Dir: dir}, nil
}

// Measure returns the pixel dimensions of the file without decoding the
// full image.
func (g *DiskGenerator) Measure(src attach.Source) (attach.Dimensions, error) {
	data, err := src.Bytes()
	if err != nil {
		return attach.Dimensions{}, err
	}
	size, err := bimg.Size(data)
	if err != nil {
		return attach.Dimensions{}, fmt.Errorf("reading image header: %w", err)
	}
	return attach.Dimensions{Width: size.Width, Height: size.Height}, nil
}

// CreatePreview decodes the file, downsizes it, and writes a jpeg thumbnail
// into the preview directory. Returns a file:// URI.
func (g *DiskGenerator) CreatePreview(src attach.Source) (string, error) {
	data, err := src.Bytes()
	if err != nil {
		return "", err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", src.Name(), err)
	}
	thumb := imaging.Fit(img, thumbnailEdge, thumbnailEdge, imaging.Lanczos)

	path := filepath.Join(g.Dir, uuid.New().String()+".jpg")
	if err := imaging.Save(thumb, path); err != nil {
		return "", fmt.Errorf("saving preview %s: %w", path, err)
	}
	return "file://" + path, nil
}

// Release removes the thumbnail behind a previously issued URI. Unknown or
// foreign URIs are ignored.
func (g *DiskGenerator) Release(uri string) {
	path := strings.TrimPrefix(uri, "file://")
	if !strings.HasPrefix(path, g.Dir+string(filepath.Separator)) {
		return
	}
	os.Remove(path)
}
