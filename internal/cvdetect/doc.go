// Package cvdetect is an OpenCV implementation of the card detector, built
// only with the gocv build tag:
//
//	go build -tags gocv ./...
//
// It follows the same stages and honours the same detection.DetectorConfig
// as the pure Go detector, but uses a bilateral filter for smoothing, which
// keeps card edges sharper on textured tables. Results are returned as
// detection types so callers can switch implementations freely.
//
// Requires OpenCV 4 and its development headers.
package cvdetect
