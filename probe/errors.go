package probe

import "errors"

var (
	// ErrTimeout indicates a probe did not return within its bound.
	ErrTimeout = errors.New("probe: timed out")

	// ErrTransport indicates a network or process-query failure.
	ErrTransport = errors.New("probe: transport failure")

	// ErrParse indicates a malformed payload from the probed subsystem.
	ErrParse = errors.New("probe: malformed payload")

	// ErrConfiguration indicates a missing required credential or setting.
	ErrConfiguration = errors.New("probe: missing configuration")
)
