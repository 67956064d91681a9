// Package dispatch implements the feed polling and dispatch pipeline.
package dispatch

import "errors"

var (
	// ErrPipelineStopped is returned when a pass is abandoned because the pipeline was stopped.
	ErrPipelineStopped = errors.New("pipeline stopped")

	// ErrDispatchDeferred is returned by Submit when the transcode service could not take the
	// job. Nothing is recorded and the link may be submitted again.
	ErrDispatchDeferred = errors.New("dispatch deferred")
)
