package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
)

// createPatternImage creates quadrants: red, green, blue, white.
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	cropped, err := Crop(img, image.Rect(50, 0, 100, 50))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if cropped.Bounds().Dx() != 50 || cropped.Bounds().Dy() != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}

	r, g, b, _ := cropped.At(10, 10).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("top-right quadrant color: got (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}
}

func TestCrop_DoesNotAliasSource(t *testing.T) {
	img := createInMemoryImage(20, 20, color.RGBA{10, 10, 10, 255})

	cropped, err := Crop(img, image.Rect(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	img.Set(0, 0, color.RGBA{200, 200, 200, 255})

	r, _, _, _ := cropped.At(0, 0).RGBA()
	if r>>8 != 10 {
		t.Errorf("crop changed after source mutation: got %d, want 10", r>>8)
	}
}

func TestCrop_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name string
		rect image.Rectangle
	}{
		{"x negative", image.Rect(-1, 0, 50, 50)},
		{"y negative", image.Rect(0, -1, 50, 50)},
		{"too wide", image.Rect(0, 0, 101, 50)},
		{"too tall", image.Rect(0, 0, 50, 101)},
		{"empty", image.Rect(10, 10, 10, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.rect); err == nil {
				t.Error("Crop should fail")
			}
		})
	}
}

func TestEncode(t *testing.T) {
	img := createPatternImage(100, 60)

	tests := []struct {
		name          string
		scale         float64
		wantW, wantH  int
	}{
		{"unscaled", 1.0, 100, 60},
		{"zoom", 2.0, 200, 120},
		{"shrink", 0.5, 50, 30},
		{"non-positive scale ignored", 0, 100, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Encode(img, tt.scale)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
			if result.MimeType != "image/png" {
				t.Errorf("MimeType: got %s, want image/png", result.MimeType)
			}

			raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
			if err != nil {
				t.Fatalf("failed to decode base64: %v", err)
			}
			decoded, err := png.Decode(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("failed to decode PNG: %v", err)
			}
			if decoded.Bounds().Dx() != tt.wantW {
				t.Errorf("decoded width: got %d, want %d", decoded.Bounds().Dx(), tt.wantW)
			}
		})
	}
}

func TestSave(t *testing.T) {
	img := createPatternImage(40, 40)
	path := filepath.Join(t.TempDir(), "nested", "out", "card.png")

	if err := Save(img, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage after Save failed: %v", err)
	}
	if loaded.Bounds().Dx() != 40 {
		t.Errorf("width: got %d, want 40", loaded.Bounds().Dx())
	}
}

func TestSave_UnknownExtension(t *testing.T) {
	img := createPatternImage(10, 10)
	if err := Save(img, filepath.Join(t.TempDir(), "card.xyz")); err == nil {
		t.Error("Save should fail for an unsupported extension")
	}
}
