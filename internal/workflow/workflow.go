// Package workflow runs the whole scan of one photograph: load, detect,
// straighten, extract regions, read the text fields and identify the card.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/detection"
	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/logger"
	"github.com/ironsheep/card-scanner/internal/ocr"
)

// CardTypeModern is the only supported card frame.
const CardTypeModern = "modern"

// ErrUnsupportedCardType is returned by New for a card type other than
// CardTypeModern.
var ErrUnsupportedCardType = errors.New("unsupported card type")

const (
	overlayThickness = 2
	frameColorCount  = 3
	frameStripRatio  = 0.02
)

// Region crop names, also used as file names by Result.Save.
const (
	CropName            = "name"
	CropCollectorNumber = "collector_number"
	CropSetCode         = "set_code"
	CropTextBox         = "text_box"
	CropArt             = "art"
)

// Overlay colours by region.
var (
	NameColor            = imgproc.Hue(120)
	CollectorNumberColor = imgproc.Hue(0)
	SetCodeColor         = imgproc.Hue(240)
	ArtColor             = imgproc.Hue(60)
	TextBoxColor         = imgproc.Hue(300)
)

// Lookup identifies a card from recognized text. *carddb.Client implements it.
type Lookup interface {
	ByCollectorNumber(ctx context.Context, setCode, number string) (*carddb.CardInfo, error)
	ByFuzzyName(ctx context.Context, name string) (*carddb.CardInfo, error)
}

// CardDetector locates a card and warps it upright. *detection.Detector and
// the OpenCV detector in package cvdetect implement it.
type CardDetector interface {
	DetectQuad(img image.Image) (*detection.Candidate, error)
	Warp(img image.Image, c *detection.Candidate) (*image.NRGBA, error)
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithDetector replaces the detector built from Config.Detector.
func WithDetector(d CardDetector) Option {
	return func(w *Workflow) { w.detector = d }
}

// Config selects the detector tuning, region layout and outputs.
type Config struct {
	Detector detection.DetectorConfig
	Layout   detection.Layout
	CardType string

	// Overlay renders the card with every region outlined.
	Overlay bool
}

// DefaultConfig returns the modern layout at 480x680 with an overlay.
func DefaultConfig() Config {
	return Config{
		Detector: detection.DefaultDetectorConfig(),
		Layout:   detection.ModernLayout(),
		CardType: CardTypeModern,
		Overlay:  true,
	}
}

// Texts holds the cleaned recognizer output per field.
type Texts struct {
	Name            string `json:"name"`
	CollectorNumber string `json:"collector_number"`
	SetCode         string `json:"set_code"`
}

// Durations records the time spent per stage.
type Durations struct {
	Load      time.Duration `json:"load"`
	Detect    time.Duration `json:"detect"`
	Tilt      time.Duration `json:"tilt"`
	Regions   time.Duration `json:"regions"`
	Recognize time.Duration `json:"recognize"`
	Lookup    time.Duration `json:"lookup"`
	Total     time.Duration `json:"total"`
}

// Result is the outcome of one scan.
type Result struct {
	ScanID   string `json:"scan_id"`
	Source   string `json:"source,omitempty"`
	CardType string `json:"card_type"`

	// Corners of the card in the source photograph, TL, TR, BR, BL.
	Corners  detection.Quad `json:"corners"`
	Fallback bool           `json:"fallback"`
	Skew     float64        `json:"skew_degrees"`

	Regions     detection.Regions        `json:"regions"`
	Texts       Texts                    `json:"texts"`
	FrameColors []imgproc.ColorFrequency `json:"frame_colors,omitempty"`
	Card        *carddb.CardInfo         `json:"card,omitempty"`
	Durations   Durations                `json:"durations"`

	Image   *image.NRGBA            `json:"-"`
	Overlay *image.NRGBA            `json:"-"`
	Crops   map[string]*image.NRGBA `json:"-"`
}

// Identified reports whether the card database recognized the card.
func (r *Result) Identified() bool {
	return r.Card != nil
}

// Workflow is safe for concurrent use when its recognizer and lookup are.
type Workflow struct {
	cfg        Config
	detector   CardDetector
	extractor  *detection.RegionExtractor
	recognizer ocr.Recognizer
	lookup     Lookup
}

// New builds a workflow. recognizer and lookup are optional; a nil value
// skips that stage.
func New(cfg Config, recognizer ocr.Recognizer, lookup Lookup, opts ...Option) (*Workflow, error) {
	if cfg.CardType == "" {
		cfg.CardType = CardTypeModern
	}
	if cfg.CardType != CardTypeModern {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCardType, cfg.CardType)
	}

	detector, err := detection.NewDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	extractor, err := detection.NewRegionExtractor(cfg.Layout)
	if err != nil {
		return nil, err
	}

	w := &Workflow{
		cfg:        cfg,
		detector:   detector,
		extractor:  extractor,
		recognizer: recognizer,
		lookup:     lookup,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Config returns the workflow's configuration.
func (w *Workflow) Config() Config {
	return w.cfg
}

// Detector returns the card detector, for callers that only need the
// normalized card.
func (w *Workflow) Detector() CardDetector {
	return w.detector
}

// Extractor returns the region extractor.
func (w *Workflow) Extractor() *detection.RegionExtractor {
	return w.extractor
}

// Process scans the photograph at path.
//
// Load failures wrap imaging.ErrLoadFailed and a photograph without a card
// wraps detection.ErrNotFound. Recognition and lookup failures are logged and
// leave the matching Result fields empty.
func (w *Workflow) Process(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	img, err := imgproc.LoadImage(path)
	if err != nil {
		return nil, err
	}
	loadTime := time.Since(start)

	res, err := w.ProcessImage(ctx, img)
	if err != nil {
		logger.Warn(logger.Fields{"path": path, "error": err}, "Scan failed")
		return nil, err
	}
	res.Source = path
	res.Durations.Load = loadTime
	res.Durations.Total += loadTime
	return res, nil
}

// ProcessImage scans an already decoded photograph.
func (w *Workflow) ProcessImage(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	res := &Result{
		ScanID:   uuid.NewString(),
		CardType: w.cfg.CardType,
		Crops:    make(map[string]*image.NRGBA),
	}
	fields := logger.Fields{"scan_id": res.ScanID}

	t := time.Now()
	candidate, err := w.detector.DetectQuad(img)
	if err != nil {
		return nil, err
	}
	card, err := w.detector.Warp(img, candidate)
	if err != nil {
		return nil, err
	}
	res.Corners = candidate.Corners
	res.Fallback = candidate.Fallback
	res.Durations.Detect = time.Since(t)

	t = time.Now()
	if skew, ok := detection.EstimateSkew(card); ok {
		res.Skew = skew
	}
	card = detection.CorrectTilt(card)
	res.Image = card
	res.Durations.Tilt = time.Since(t)

	t = time.Now()
	res.Regions = w.extractor.All(card)
	w.crop(res)
	res.FrameColors = frameColors(card)
	res.Durations.Regions = time.Since(t)

	logger.Debug(logger.Fields{
		"scan_id":  res.ScanID,
		"fallback": res.Fallback,
		"skew":     res.Skew,
		"art":      !res.Regions.Art.Empty(),
	}, "Card normalized")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	w.recognize(ctx, res)
	res.Durations.Recognize = time.Since(t)

	t = time.Now()
	res.Card = w.identify(ctx, res.Texts, fields)
	res.Durations.Lookup = time.Since(t)

	if w.cfg.Overlay {
		res.Overlay = DrawOverlay(card, res.Regions)
	}

	res.Durations.Total = time.Since(start)
	logger.Info(logger.Fields{
		"scan_id":    res.ScanID,
		"name":       res.Texts.Name,
		"set":        res.Texts.SetCode,
		"number":     res.Texts.CollectorNumber,
		"identified": res.Identified(),
		"duration":   res.Durations.Total.String(),
	}, "Scan complete")
	return res, nil
}

func (w *Workflow) crop(res *Result) {
	regions := map[string]detection.Region{
		CropName:            res.Regions.Name,
		CropCollectorNumber: res.Regions.CollectorNumber,
		CropSetCode:         res.Regions.SetCode,
		CropTextBox:         res.Regions.TextBox,
		CropArt:             res.Regions.Art,
	}
	for name, r := range regions {
		if r.Empty() {
			continue
		}
		c, err := imgproc.Crop(res.Image, r.Rect())
		if err != nil {
			logger.Warn(logger.Fields{"scan_id": res.ScanID, "region": name, "error": err}, "Failed to crop region")
			continue
		}
		res.Crops[name] = c
	}
}

func (w *Workflow) recognize(ctx context.Context, res *Result) {
	if w.recognizer == nil {
		return
	}
	read := func(crop string, field ocr.Field) string {
		img, ok := res.Crops[crop]
		if !ok {
			return ""
		}
		text, err := w.recognizer.Recognize(ctx, img, field)
		if err != nil {
			logger.Warn(logger.Fields{"scan_id": res.ScanID, "field": field.String(), "error": err}, "Recognition failed")
			return ""
		}
		return text
	}
	res.Texts = Texts{
		Name:            read(CropName, ocr.FieldName),
		CollectorNumber: read(CropCollectorNumber, ocr.FieldCollectorNumber),
		SetCode:         read(CropSetCode, ocr.FieldSetCode),
	}
}

// identify tries the set code and collector number first, then the name.
func (w *Workflow) identify(ctx context.Context, texts Texts, fields logger.Fields) *carddb.CardInfo {
	if w.lookup == nil {
		return nil
	}

	if texts.SetCode != "" && texts.CollectorNumber != "" {
		card, err := w.lookup.ByCollectorNumber(ctx, texts.SetCode, texts.CollectorNumber)
		if err == nil {
			return card
		}
		logLookupError(fields, "collector number", err)
	}

	if texts.Name != "" {
		card, err := w.lookup.ByFuzzyName(ctx, texts.Name)
		if err == nil {
			return card
		}
		logLookupError(fields, "name", err)
	}
	return nil
}

func logLookupError(fields logger.Fields, by string, err error) {
	f := logger.Fields{"by": by, "error": err}
	for k, v := range fields {
		f[k] = v
	}
	if errors.Is(err, carddb.ErrNotFound) {
		logger.Debug(f, "Card not found")
		return
	}
	logger.Warn(f, "Card lookup failed")
}

// frameColors samples a strip along the card's top edge.
func frameColors(card *image.NRGBA) []imgproc.ColorFrequency {
	b := card.Bounds()
	strip := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+max(1, int(float64(b.Dy())*frameStripRatio)))
	colors, err := imgproc.DominantColors(card, frameColorCount, strip)
	if err != nil {
		return nil
	}
	return colors
}

// DrawOverlay outlines every non-empty region on a copy of card.
func DrawOverlay(card image.Image, r detection.Regions) *image.NRGBA {
	boxes := []imgproc.Box{
		{Label: "name", Rect: r.Name.Rect(), Color: NameColor},
		{Label: "number", Rect: r.CollectorNumber.Rect(), Color: CollectorNumberColor},
		{Label: "set", Rect: r.SetCode.Rect(), Color: SetCodeColor},
		{Label: "text", Rect: r.TextBox.Rect(), Color: TextBoxColor},
		{Label: "art", Rect: r.Art.Rect(), Color: ArtColor},
	}
	return imgproc.DrawBoxes(card, boxes, overlayThickness)
}

// Save writes card.png, overlay.png (when rendered) and one PNG per region
// crop into dir.
func (r *Result) Save(dir string) error {
	images := map[string]*image.NRGBA{"card": r.Image}
	if r.Overlay != nil {
		images["overlay"] = r.Overlay
	}
	for name, c := range r.Crops {
		images[name] = c
	}
	for name, img := range images {
		if img == nil {
			continue
		}
		if err := imgproc.Save(img, filepath.Join(dir, name+".png")); err != nil {
			return err
		}
	}
	return nil
}
