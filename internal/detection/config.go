package detection

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// Card sizes supported by the normalizer.
const (
	CardWidth  = 480
	CardHeight = 680

	LargeCardWidth  = 630
	LargeCardHeight = 880
)

// Corner ordering strategies understood by DetectorConfig.CornerOrder.
const (
	CornerOrderYX    = "yx"
	CornerOrderAngle = "angle"
)

var validate = validator.New()

// DetectorConfig holds every tuning constant of the card detector. It is a
// plain value: copies are independent and a Detector never modifies its own.
type DetectorConfig struct {
	// Output size of the normalized card.
	TargetWidth  int `json:"target_width" validate:"gt=0"`
	TargetHeight int `json:"target_height" validate:"gt=0"`

	// MinAreaFraction is the smallest contour area accepted, as a fraction of
	// minDim², where minDim is the shorter side of the photograph.
	MinAreaFraction float64 `json:"min_area_fraction" validate:"gt=0,lt=1"`

	// TargetAspect is the expected width/height of the card's bounding box
	// and AspectTolerance the accepted absolute deviation from it.
	TargetAspect    float64 `json:"target_aspect" validate:"gt=0"`
	AspectTolerance float64 `json:"aspect_tolerance" validate:"gte=0"`

	// ApproxEpsilon scales the contour perimeter into the Douglas-Peucker
	// tolerance used to find the card corners.
	ApproxEpsilon float64 `json:"approx_epsilon" validate:"gt=0,lt=1"`

	// ThresholdOffset is the constant subtracted from the local mean by the
	// adaptive threshold.
	ThresholdOffset float64 `json:"threshold_offset"`

	// CornerOrder selects SortCorners ("yx") or SortCornersByAngle ("angle").
	CornerOrder string `json:"corner_order" validate:"oneof=yx angle"`
}

// DefaultDetectorConfig returns the tuning used for standard 2.5x3.5 inch
// trading cards, normalized to 480x680.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		TargetWidth:     CardWidth,
		TargetHeight:    CardHeight,
		MinAreaFraction: 0.10,
		TargetAspect:    0.714,
		AspectTolerance: 0.2,
		ApproxEpsilon:   0.01,
		ThresholdOffset: 8,
		CornerOrder:     CornerOrderYX,
	}
}

// Validate checks every field against its constraints.
func (c DetectorConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid detector config: %w", err)
	}
	return nil
}

// RegionRatio is a box expressed as fractions of the card's width (Left,
// Width) and height (Top, Height).
type RegionRatio struct {
	Left   float64 `json:"left" validate:"gte=0,lte=1"`
	Top    float64 `json:"top" validate:"gte=0,lte=1"`
	Width  float64 `json:"width" validate:"gt=0,lte=1"`
	Height float64 `json:"height" validate:"gt=0,lte=1"`
}

func (r RegionRatio) validateSpan() error {
	const slack = 1e-9
	if r.Left+r.Width > 1+slack {
		return fmt.Errorf("left+width %.3f exceeds the card", r.Left+r.Width)
	}
	if r.Top+r.Height > 1+slack {
		return fmt.Errorf("top+height %.3f exceeds the card", r.Top+r.Height)
	}
	return nil
}

// ArtworkConfig tunes the artwork frame search.
type ArtworkConfig struct {
	MinAspect float64 `json:"min_aspect" validate:"gt=0"`
	MaxAspect float64 `json:"max_aspect" validate:"gtfield=MinAspect"`

	// MinAreaFraction rejects candidates smaller than this share of the card.
	MinAreaFraction float64 `json:"min_area_fraction" validate:"gte=0,lt=1"`
}

// Layout is the set of fractional boxes for one card design. Swapping the
// layout, not the code, adapts the extractor to another game or print era.
type Layout struct {
	Name            string        `json:"name" validate:"required"`
	CardName        RegionRatio   `json:"card_name"`
	CollectorNumber RegionRatio   `json:"collector_number"`
	SetCode         RegionRatio   `json:"set_code"`
	TextBox         RegionRatio   `json:"text_box"`
	Artwork         ArtworkConfig `json:"artwork"`
}

// ModernLayout returns the layout of modern-frame cards.
func ModernLayout() Layout {
	return Layout{
		Name:            "modern",
		CardName:        RegionRatio{Left: 0.04, Top: 0.033, Width: 0.75, Height: 0.065},
		CollectorNumber: RegionRatio{Left: 0.04, Top: 0.93, Width: 0.15, Height: 0.04},
		SetCode:         RegionRatio{Left: 0.04, Top: 0.96, Width: 0.10, Height: 0.025},
		TextBox:         RegionRatio{Left: 0.075, Top: 0.62, Width: 0.85, Height: 0.30},
		Artwork: ArtworkConfig{
			MinAspect:       0.8,
			MaxAspect:       1.5,
			MinAreaFraction: 0.05,
		},
	}
}

// Validate checks every ratio lies within [0,1] and every box stays on the
// card.
func (l Layout) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid layout %q: %w", l.Name, err)
	}
	boxes := map[string]RegionRatio{
		"card_name":        l.CardName,
		"collector_number": l.CollectorNumber,
		"set_code":         l.SetCode,
		"text_box":         l.TextBox,
	}
	for name, r := range boxes {
		if err := r.validateSpan(); err != nil {
			return fmt.Errorf("invalid layout %q: %s: %w", l.Name, name, err)
		}
	}
	return nil
}

// LoadLayout reads a JSON layout file and validates it.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to read layout: %w", err)
	}
	var l Layout
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}
