package detection

import "image"

// Calibrator corrects camera distortion before detection runs.
//
// Implementations must not modify img and must return an image of the same
// size; they may be called from several goroutines at once.
type Calibrator interface {
	Undistort(img image.Image) image.Image
}

// PassThrough is the identity Calibrator used when no camera profile is
// configured.
type PassThrough struct{}

// Undistort returns img unchanged.
func (PassThrough) Undistort(img image.Image) image.Image {
	return img
}
