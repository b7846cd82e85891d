// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Transcoding constants
const (
	// DefaultMaxDimension is the longer edge, in pixels, of an embedded report photo
	DefaultMaxDimension = 800

	// DefaultJPEGQuality is the re-encode quality in the 0..1 range
	DefaultJPEGQuality = 0.6

	// DefaultTranscodeTimeout bounds fetch + decode + encode of a single image
	DefaultTranscodeTimeout = 4 * time.Second

	// DefaultMaxImageBytes is the largest source image that will be decoded
	DefaultMaxImageBytes = 25 << 20

	// DefaultMaxPixels is the largest source raster (width x height) that will be decoded
	DefaultMaxPixels = 50_000_000
)

// Pipeline constants
const (
	// DefaultBatchSize is the number of images transcoded concurrently
	DefaultBatchSize = 5

	// MaxBatchSize caps user-supplied batch sizes
	MaxBatchSize = 50

	// DefaultBatchPause is the yield between two batches
	DefaultBatchPause = 50 * time.Millisecond
)

// Report constants
const (
	// DefaultLayout is the grid used when the caller does not choose one
	DefaultLayout = "2x4"

	// TimestampFormat is how measurement times are printed under each photo
	TimestampFormat = "02/01/2006 15:04"
)
