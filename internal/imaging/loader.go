package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrLoadFailed is returned (wrapped) for every input that cannot become a
// usable bitmap: a missing file, an empty file, undecodable bytes, or an image
// with zero width or height.
var ErrLoadFailed = errors.New("image load failed")

// LoadImage reads and decodes the image at path.
//
// Parameters:
//   - path: Absolute or relative path to the image. PNG, JPEG, GIF, BMP and WebP
//     are decoded through the standard image registry; HEIC/HEIF photos and the
//     first page of a PDF are also accepted.
//
// Returns:
//   - image.Image: The decoded image with EXIF orientation applied.
//   - error: Wraps ErrLoadFailed for any failure, so callers can test a single
//     condition with errors.Is regardless of the underlying cause.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrLoadFailed, path, err)
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image using the same rules as LoadImage.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrLoadFailed)
	}

	var (
		img image.Image
		err error
	)
	switch {
	case isPDF(data):
		img, err = decodePDF(data)
	case isHEIC(data):
		img, err = heic.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrLoadFailed, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrLoadFailed)
	}
	return img, nil
}

func decodePDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, errors.New("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEIC checks for an ftyp box with a HEIF family brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// ImageCache keeps decoded photographs by path so that consecutive requests
// about the same file decode it once. When full, the oldest entry is evicted.
//
// Safe for concurrent use. Cached images are shared and must be treated as
// read-only; pipeline stages clone before mutating.
type ImageCache struct {
	mu     sync.RWMutex
	max    int
	order  []string
	images map[string]image.Image
}

// NewImageCache returns a cache holding at most max images; max <= 0 means
// unbounded.
func NewImageCache(max int) *ImageCache {
	return &ImageCache{
		max:    max,
		images: make(map[string]image.Image),
	}
}

// Load returns the cached image for path, decoding it with LoadImage on a
// miss. Failures are not cached, so a file that appears later can still be
// read.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	img, ok := c.images[path]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[path]; !ok {
		for c.max > 0 && len(c.order) >= c.max {
			c.evictLocked(c.order[0])
		}
		c.order = append(c.order, path)
	}
	c.images[path] = img
	return img, nil
}

// Evict drops path from the cache.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	c.evictLocked(path)
	c.mu.Unlock()
}

func (c *ImageCache) evictLocked(path string) {
	if _, ok := c.images[path]; !ok {
		return
	}
	delete(c.images, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.order = nil
	c.mu.Unlock()
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes a source photograph.
type ImageInfo struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Format comes from the file extension; "unknown" when unrecognized.
	Format string `json:"format"`

	FileSizeBytes int64 `json:"file_size_bytes"`
}

var formatsByExt = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".bmp":  "bmp",
	".webp": "webp",
	".heic": "heic",
	".heif": "heic",
	".pdf":  "pdf",
}

// Info loads path through the cache and describes it. Width and height are
// measured after EXIF orientation.
func (c *ImageCache) Info(path string) (*ImageInfo, error) {
	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = "unknown"
	}
	return &ImageInfo{
		Path:          path,
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
