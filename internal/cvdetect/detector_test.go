//go:build gocv

package cvdetect

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/ironsheep/card-scanner/internal/detection"
)

func createCardPhoto() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 350, 450))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 200}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(50, 50, 300, 400), image.NewUniform(color.Gray{Y: 40}), image.Point{}, draw.Src)
	return img
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	cfg := detection.DefaultDetectorConfig()
	cfg.TargetWidth = 0
	if _, err := NewDetector(cfg); err == nil {
		t.Error("expected error for zero target width")
	}
}

func TestDetectQuad_MatchesPureGo(t *testing.T) {
	img := createCardPhoto()
	cfg := detection.DefaultDetectorConfig()

	cv, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	pure, err := detection.NewDetector(cfg)
	if err != nil {
		t.Fatalf("detection.NewDetector failed: %v", err)
	}

	got, err := cv.DetectQuad(img)
	if err != nil {
		t.Fatalf("DetectQuad failed: %v", err)
	}
	want, err := pure.DetectQuad(img)
	if err != nil {
		t.Fatalf("pure DetectQuad failed: %v", err)
	}

	for i := range got.Corners {
		dx := math.Abs(got.Corners[i].X - want.Corners[i].X)
		dy := math.Abs(got.Corners[i].Y - want.Corners[i].Y)
		if dx > 6 || dy > 6 {
			t.Errorf("corner %d: got %+v, want near %+v", i, got.Corners[i], want.Corners[i])
		}
	}
}

func TestDetect_Size(t *testing.T) {
	d, err := NewDetector(detection.DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	card, err := d.Detect(createCardPhoto())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if card.Bounds().Dx() != detection.CardWidth || card.Bounds().Dy() != detection.CardHeight {
		t.Errorf("size: got %v", card.Bounds())
	}
}

func TestDetectQuad_NoCard(t *testing.T) {
	d, err := NewDetector(detection.DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	blank := image.NewRGBA(image.Rect(0, 0, 200, 200))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if _, err := d.DetectQuad(blank); !errors.Is(err, detection.ErrNotFound) {
		t.Errorf("error: got %v, want ErrNotFound", err)
	}
	if _, err := d.DetectQuad(image.NewRGBA(image.Rectangle{})); !errors.Is(err, detection.ErrNotFound) {
		t.Errorf("empty image error: got %v, want ErrNotFound", err)
	}
}

func TestDetect_OffsetBounds(t *testing.T) {
	d, err := NewDetector(detection.DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	sub := createCardPhoto().SubImage(image.Rect(20, 20, 340, 440))

	c, err := d.DetectQuad(sub)
	if err != nil {
		t.Fatalf("DetectQuad failed: %v", err)
	}
	if math.Abs(c.Corners[0].X-50) > 6 || math.Abs(c.Corners[0].Y-50) > 6 {
		t.Errorf("top-left: got %+v, want near (50,50)", c.Corners[0])
	}

	card, err := d.Warp(sub, c)
	if err != nil {
		t.Fatalf("Warp failed: %v", err)
	}
	if got := card.NRGBAAt(detection.CardWidth/2, detection.CardHeight/2); got.R > 60 {
		t.Errorf("centre pixel: got %v, want near 40", got)
	}
}

func TestDetectQuad_NotchedFallsBack(t *testing.T) {
	d, err := NewDetector(detection.DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	img := createCardPhoto()
	for y := 180; y <= 270; y++ {
		depth := 45 - int(math.Abs(float64(y-225)))
		draw.Draw(img, image.Rect(300-depth, y, 300, y+1), image.NewUniform(color.Gray{Y: 200}), image.Point{}, draw.Src)
	}

	c, err := d.DetectQuad(img)
	if err != nil {
		t.Fatalf("DetectQuad failed: %v", err)
	}
	if !c.Fallback {
		t.Errorf("expected fallback corners, got %+v", c.Corners)
	}
}

func TestDetectQuad_TinyImage(t *testing.T) {
	d, err := NewDetector(detection.DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	if _, err := d.DetectQuad(image.NewRGBA(image.Rect(0, 0, 5, 5))); !errors.Is(err, detection.ErrNotFound) {
		t.Errorf("error: got %v, want ErrNotFound", err)
	}
}

func TestToPoints(t *testing.T) {
	got := toPoints([]image.Point{{1, 2}, {3, 4}}, image.Point{X: 10, Y: 20})
	want := []detection.Point2D{{X: 11, Y: 22}, {X: 13, Y: 24}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
