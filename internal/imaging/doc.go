// Package imaging provides the bitmap primitives used by the card pipeline.
//
// It covers loading photographs from disk, the filters the detector chains
// together (median and Gaussian blur, adaptive threshold, morphology, Canny
// edges, rotation), cropping and encoding, and drawing diagnostic overlays.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Ownership
//
// No function mutates its input. Filters return new images rebased at (0,0),
// so a caller that needs the original afterwards never has to clone first.
//
// # Error Handling
//
// Every loader failure wraps ErrLoadFailed: a missing path, a zero-byte file
// and a text file with an image extension are indistinguishable to callers
// that test errors.Is(err, ErrLoadFailed).
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Everything else is
// stateless and can be called concurrently on different images.
package imaging
