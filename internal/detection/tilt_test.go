package detection

import (
	"image"
	"image/color"
	"testing"
)

func TestCorrectTilt_NoContourIsIdentity(t *testing.T) {
	card := createTestImage(CardWidth, CardHeight, color.Gray{128})

	got := CorrectTilt(card)
	if got.Bounds() != card.Bounds() {
		t.Fatalf("Bounds = %v, want %v", got.Bounds(), card.Bounds())
	}
	for i := range card.Pix {
		if got.Pix[i] != card.Pix[i] {
			t.Fatalf("Pixel data differs at byte %d", i)
		}
	}
	if &got.Pix[0] == &card.Pix[0] {
		t.Error("CorrectTilt should return a copy, not the input")
	}
}

func TestCorrectTilt_EmptyImage(t *testing.T) {
	got := CorrectTilt(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	if !got.Bounds().Empty() {
		t.Errorf("Expected empty output, got %v", got.Bounds())
	}
}

func TestEstimateSkew(t *testing.T) {
	tests := []struct {
		name    string
		degrees float64
	}{
		{"upright", 0},
		{"clockwise", 5},
		{"counter-clockwise", -7},
		{"quarter turn is upright", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(300, 400, color.Black)
			fillRotatedRect(img, 150, 200, 160, 240, tt.degrees, color.White)

			skew, ok := EstimateSkew(img)
			if !ok {
				t.Fatal("EstimateSkew() found no outline")
			}

			want := tt.degrees
			if want == 90 {
				want = 0
			}
			if absFloat(skew-want) > 1.5 {
				t.Errorf("EstimateSkew() = %.2f, want %.2f", skew, want)
			}
			if skew <= -45 || skew > 45 {
				t.Errorf("EstimateSkew() = %.2f outside (-45, 45]", skew)
			}
		})
	}
}

func TestEstimateSkew_IgnoresSmallOutlines(t *testing.T) {
	img := createTestImage(300, 400, color.Black)
	fillRotatedRect(img, 150, 200, 20, 30, 20, color.White)

	if _, ok := EstimateSkew(img); ok {
		t.Error("A small blob should not be taken as the card outline")
	}
}

func TestCorrectTilt_SmallOutlineIsIdentity(t *testing.T) {
	img := createTestImage(300, 400, color.Black)
	fillRotatedRect(img, 150, 200, 20, 30, 20, color.White)

	got := CorrectTilt(img)
	for i := range img.Pix {
		if got.Pix[i] != img.Pix[i] {
			t.Fatalf("Output differs from input at byte %d", i)
		}
	}
}

func TestCorrectTilt_RemovesRotation(t *testing.T) {
	img := createTestImage(300, 400, color.Black)
	fillRotatedRect(img, 150, 200, 160, 240, 6, color.White)

	corrected := CorrectTilt(img)
	if corrected.Bounds() != img.Bounds() {
		t.Fatalf("Bounds changed: %v -> %v", img.Bounds(), corrected.Bounds())
	}

	skew, ok := EstimateSkew(corrected)
	if !ok {
		t.Fatal("No outline after correction")
	}
	if absFloat(skew) > 1.5 {
		t.Errorf("Residual skew = %.2f, want about 0", skew)
	}
}

func TestCorrectTilt_DoesNotModifyInput(t *testing.T) {
	img := createTestImage(300, 400, color.Black)
	fillRotatedRect(img, 150, 200, 160, 240, 8, color.White)
	before := append([]uint8(nil), img.Pix...)

	CorrectTilt(img)
	for i := range before {
		if img.Pix[i] != before[i] {
			t.Fatalf("Input modified at byte %d", i)
		}
	}
}
