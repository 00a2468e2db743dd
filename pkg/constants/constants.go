// Package constants provides shared constants used throughout the orgsync codebase.
// This includes timeouts, quota thresholds, remote-platform defaults, and file
// permissions that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the remote systems
	DefaultHTTPTimeout = 30 * time.Second

	// TokenTimeout bounds a single token exchange
	TokenTimeout = 15 * time.Second

	// SyncTimeout is the timeout for a full sync run started from the CLI
	SyncTimeout = 2 * time.Hour

	// ShutdownTimeout is how long the scheduler waits for a running sync on stop
	ShutdownTimeout = 5 * time.Minute
)

// Quota governance constants. The LMS reports its remaining request budget on
// every response; when it drops below the low-water mark the client pauses.
const (
	// RateLimitHeader carries the remaining request quota
	RateLimitHeader = "X-Ratelimit-Remaining"

	// RateLimitLowWater is the remaining-quota threshold that triggers a cool-down
	RateLimitLowWater = 100

	// RateLimitCooldown is how long the client blocks once the quota runs low
	RateLimitCooldown = 30 * time.Second

	// InitialRateLimit is the assumed quota before the first response is seen
	InitialRateLimit = 600
)

// Remote platform defaults
const (
	// DefaultLMSBaseURL is the LMS API root
	DefaultLMSBaseURL = "https://api.eloomi.com/"

	// LMSTokenScope is the scope requested in the client-credentials grant
	LMSTokenScope = "*"

	// ReportingVisibilityID is the visibility assigned to every index and measurement
	ReportingVisibilityID = 4

	// ReportingPageSizeAll asks list endpoints for every row in one page
	ReportingPageSizeAll = "0"

	// MeasurementMinValue is the lower bound of a completion measurement
	MeasurementMinValue = 0

	// MeasurementMaxValue is the upper bound of a completion measurement
	MeasurementMaxValue = 100

	// MeasurementDateLayout is the timestamp layout the Reporting API expects
	MeasurementDateLayout = "2006-01-02T15:04:05"

	// CourseKeyFormat builds the zero-padded course key from the LMS course id
	CourseKeyFormat = "COURSE%05d"

	// UserPermission is the permission level assigned to synced users
	UserPermission = "user"
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Logging constants
const (
	// LogFileLayout names dated log files when LOG_OUTPUT points at a directory
	LogFileLayout = "2006-Jan-02-15-04"
)
