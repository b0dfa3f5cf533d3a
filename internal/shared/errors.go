package shared

import "fmt"

// Sentinel errors shared across packages. Wrap them with %w and match with errors.Is.
var (
	// Config and credentials
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenSigning       = fmt.Errorf("developer token signing failed")

	// ErrNotAuthenticated is returned for 401 and 403 catalog responses.
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Catalog and credits page access
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrDecodeResponse     = fmt.Errorf("failed to decode response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPageFetch          = fmt.Errorf("page fetch failed")

	ErrTrackNotFound = fmt.Errorf("track not found")

	// Scheduler
	ErrJobNotFound      = fmt.Errorf("job not found")
	ErrJobRunning       = fmt.Errorf("job already running")
	ErrSchedulerActive  = fmt.Errorf("scheduler already started")
	ErrSchedulerStopped = fmt.Errorf("scheduler stopped")

	// User input
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
