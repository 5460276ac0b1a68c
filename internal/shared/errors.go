package shared

import "fmt"

// DuplicateError is the per-asset error Immich reports when an asset is already an album member.
const DuplicateError = "duplicate"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrNotConfigured      = fmt.Errorf("feature not configured")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAlbumNotFound      = fmt.Errorf("album not found")

	// Sync errors
	ErrAssetNotFound     = fmt.Errorf("no matching asset")
	ErrMalformedFilename = fmt.Errorf("malformed source filename")
	ErrDuplicateAlbum    = fmt.Errorf("duplicate source album name")
	ErrLocked            = fmt.Errorf("another sync is already running")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
