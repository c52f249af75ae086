//go:build gocv

package main

import (
	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/cvdetect"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

// detectorOptions swaps in the OpenCV detector with the same tuning.
func detectorOptions(cfg *config.Config) ([]workflow.Option, error) {
	det, err := cfg.DetectorConfig()
	if err != nil {
		return nil, err
	}
	cv, err := cvdetect.NewDetector(det)
	if err != nil {
		return nil, err
	}
	return []workflow.Option{workflow.WithDetector(cv)}, nil
}
