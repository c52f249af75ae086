//go:build !gocv

package main

import (
	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

// detectorOptions keeps the pure Go detector built by workflow.New.
func detectorOptions(*config.Config) ([]workflow.Option, error) {
	return nil, nil
}
