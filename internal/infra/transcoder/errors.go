package transcoder

import "errors"

var (
	// ErrUnresolvableLink indicates that a source link cannot be turned into a direct download link.
	ErrUnresolvableLink = errors.New("unresolvable source link")

	// ErrInvalidResponse indicates that the service replied with a body that is not a known envelope.
	ErrInvalidResponse = errors.New("invalid response format")

	// ErrServiceUnavailable indicates that the availability probe failed.
	ErrServiceUnavailable = errors.New("service unavailable")
)
