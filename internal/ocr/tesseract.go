package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// Tesseract recognizes card text with a local Tesseract installation.
//
// One gosseract client is created per Tesseract value and reused across
// calls; calls are serialized because the underlying TessBaseAPI is not safe
// for concurrent use.
type Tesseract struct {
	mu       sync.Mutex
	client   *gosseract.Client
	language string
}

// NewTesseract creates a recognizer for language (e.g. "eng").
//
// Parameters:
//   - language: Tesseract language code. The matching traineddata must be
//     installed; an empty string selects DefaultLanguage.
//   - tessdataPrefix: Directory holding traineddata files, or "" for the
//     system default (TESSDATA_PREFIX or the compiled-in path).
//
// Returns:
//   - *Tesseract: Ready recognizer. Call Close when done.
//   - error: Non-nil if the language or tessdata path is rejected.
func NewTesseract(language, tessdataPrefix string) (*Tesseract, error) {
	if language == "" {
		language = DefaultLanguage
	}

	client := gosseract.NewClient()
	if tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(tessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	// Dictionary correction hurts on card names and codes.
	for _, v := range []string{"load_system_dawg", "load_freq_dawg"} {
		if err := client.SetVariable(gosseract.SettableVariable(v), "0"); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set %s: %w", v, err)
		}
	}

	return &Tesseract{client: client, language: language}, nil
}

// Language returns the configured language code.
func (t *Tesseract) Language() string {
	return t.language
}

// Recognize preprocesses img for field and runs Tesseract on it.
//
// Names and collector numbers are read as a single line, set codes as a
// single word. The result is passed through CleanText.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, field Field) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	processed := Preprocess(img, field)
	if processed == nil {
		return "", nil
	}

	data, err := imgproc.EncodePNG(processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode region: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetWhitelist(field.Whitelist()); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := t.client.SetPageSegMode(pageSegMode(field)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return CleanText(field, strings.TrimSpace(text)), nil
}

// Close releases the Tesseract engine.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

func pageSegMode(field Field) gosseract.PageSegMode {
	if field == FieldSetCode {
		return gosseract.PSM_SINGLE_WORD
	}
	return gosseract.PSM_SINGLE_LINE
}
