package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(text)
}

// createTextRegion creates a region crop with rendered text, the way a name
// or collector number crop looks after extraction
func createTextRegion(text string, fg, bg color.Color) *image.RGBA {
	width := len(text)*7 + 20
	height := 24

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	drawText(img, 10, 17, text, fg)
	return img
}

func newTestTesseract(t *testing.T) *Tesseract {
	t.Helper()
	tess, err := NewTesseract("eng", "")
	if err != nil {
		if strings.Contains(err.Error(), "tesseract") ||
			strings.Contains(err.Error(), "library") {
			t.Skip("Tesseract not available")
		}
		t.Fatalf("NewTesseract failed: %v", err)
	}
	t.Cleanup(func() { tess.Close() })
	return tess
}

func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") ||
		strings.Contains(msg, "traineddata") || strings.Contains(msg, "initialize") {
		t.Skip("Tesseract not available")
	}
}

func TestNewTesseract_DefaultLanguage(t *testing.T) {
	tess, err := NewTesseract("", "")
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("NewTesseract failed: %v", err)
	}
	defer tess.Close()

	if tess.Language() != DefaultLanguage {
		t.Errorf("Language() = %q, want %q", tess.Language(), DefaultLanguage)
	}
}

func TestTesseract_EmptyImage(t *testing.T) {
	tess := newTestTesseract(t)

	text, err := tess.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)), FieldName)
	if err != nil {
		t.Fatalf("Recognize(empty) error = %v", err)
	}
	if text != "" {
		t.Errorf("Recognize(empty) = %q, want empty", text)
	}
}

func TestTesseract_CancelledContext(t *testing.T) {
	tess := newTestTesseract(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tess.Recognize(ctx, createTextRegion("42", color.Black, color.White), FieldCollectorNumber); err == nil {
		t.Error("Expected error for a cancelled context")
	}
}

func TestTesseract_RealText(t *testing.T) {
	tess := newTestTesseract(t)

	tests := []struct {
		field Field
		text  string
		check func(string) bool
	}{
		{FieldName, "Lightning Bolt", func(s string) bool { return !strings.HasSuffix(s, " ") }},
		{FieldCollectorNumber, "0157", func(s string) bool { return strings.Trim(s, "0123456789") == "" }},
		{FieldSetCode, "MKM", func(s string) bool { return len(s) <= 3 && strings.ToUpper(s) == s }},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			got, err := tess.Recognize(context.Background(), createTextRegion(tt.text, color.Black, color.White), tt.field)
			if err != nil {
				skipIfUnavailable(t, err)
				t.Fatalf("Recognize failed: %v", err)
			}

			t.Logf("Input: %q, Output: %q", tt.text, got)
			if !tt.check(got) {
				t.Errorf("Output %q violates the %s cleanup rules", got, tt.field)
			}
		})
	}
}

func TestTesseract_LightOnDark(t *testing.T) {
	tess := newTestTesseract(t)

	got, err := tess.Recognize(context.Background(), createTextRegion("271", color.White, color.Black), FieldCollectorNumber)
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("Recognize failed: %v", err)
	}
	t.Logf("Light-on-dark output: %q", got)
}

func TestPageSegMode(t *testing.T) {
	tests := []struct {
		field Field
		want  gosseract.PageSegMode
	}{
		{FieldName, gosseract.PSM_SINGLE_LINE},
		{FieldCollectorNumber, gosseract.PSM_SINGLE_LINE},
		{FieldSetCode, gosseract.PSM_SINGLE_WORD},
	}

	for _, tt := range tests {
		if got := pageSegMode(tt.field); got != tt.want {
			t.Errorf("pageSegMode(%s) = %v, want %v", tt.field, got, tt.want)
		}
	}
}
