// Package detection finds a trading card in a photograph and turns it into a
// canonical, upright, fixed-size image whose sub-regions can be located by
// ratio alone.
//
// # Pipeline
//
// The stages run in order on a single goroutine per image:
//
//  1. Detector: grayscale, texture suppression, inverted adaptive threshold,
//     morphological closing, external contours, area and aspect filtering,
//     polygon approximation with a minimum-area rectangle fallback
//  2. Normalize/Warp: corner ordering and a projective warp onto the target
//     rectangle (480x680 by default)
//  3. CorrectTilt: a second, best-effort pass that removes residual rotation
//  4. RegionExtractor: fractional boxes for the name, collector number, set
//     code and text box; a content search for the artwork frame
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Rectangles use inclusive top-left and exclusive bottom-right
//
// Positive angles are clockwise on screen.
//
// # Errors
//
// Detection failure wraps ErrNotFound and is never transient. A corner count
// other than four passed to the normalizer wraps ErrInvalidCorners and
// indicates a caller bug. Tilt correction and the artwork search never fail;
// they fall back to an unmodified copy and an empty Region respectively.
//
// # Configuration
//
// Tuning constants live in DetectorConfig and Layout values, never in package
// globals, so that other card designs can be supported by loading a different
// layout (see LoadLayout).
//
// # Thread Safety
//
// Detector and RegionExtractor hold only immutable configuration and may be
// shared. Every function allocates its own output; inputs are never modified.
package detection
