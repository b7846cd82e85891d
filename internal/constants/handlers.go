// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Job retention constants
const (
	// FinishedJobRetention is how long finished report jobs stay queryable
	FinishedJobRetention = time.Hour

	// SelectionIdleTimeout closes selection workflows nobody touched for this long
	SelectionIdleTimeout = 2 * time.Hour
)

// Request limits
const (
	// MaxRequestBodyBytes bounds JSON request bodies
	MaxRequestBodyBytes = 1 << 20
)
