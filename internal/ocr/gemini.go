package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const geminiTimeout = 30 * time.Second

var geminiPrompts = map[Field]string{
	FieldName: "This image is the title bar of a trading card. " +
		"Reply with the card name exactly as printed and nothing else.",
	FieldCollectorNumber: "This image is the bottom-left corner of a trading card. " +
		"Reply with the collector number digits only, without the set size, and nothing else.",
	FieldSetCode: "This image is the bottom-left corner of a trading card. " +
		"Reply with the three-letter set code in uppercase and nothing else.",
}

// Gemini recognizes card text with a Google Gemini vision model. It is an
// alternative to Tesseract for worn or stylized cards.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini recognizer.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{client: client, model: model}, nil
}

// Recognize sends the upscaled colour crop with a field-specific prompt.
// Vision models read colour better than a binarized image, so only the
// upscale step of Preprocess is applied.
func (g *Gemini) Recognize(ctx context.Context, img image.Image, field Field) (string, error) {
	b := img.Bounds()
	if b.Empty() {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	scale, filter := upscaleFor(field)
	upscaled := imaging.Resize(img, int(float64(b.Dx())*scale), int(float64(b.Dy())*scale), filter)
	data, err := imgproc.EncodePNG(upscaled)
	if err != nil {
		return "", fmt.Errorf("failed to encode region: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(geminiPrompts[field]))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return CleanText(field, strings.TrimSpace(text.String())), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
