package dispatch

import "time"

// State is the position of the poll loop in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateMatching
	StateDispatching
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateMatching:
		return "matching"
	case StateDispatching:
		return "dispatching"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// StartResult reports what Start did.
type StartResult string

const (
	StartResultStarted        StartResult = "started"
	StartResultAlreadyRunning StartResult = "already_running"
	// StartResultStopping: a stopped loop had not exited before ctx expired, so no new
	// loop was launched.
	StartResultStopping StartResult = "stopping"
)

// StopResult reports what Stop did.
type StopResult string

const (
	StopResultStopped    StopResult = "stopped"
	StopResultNotRunning StopResult = "not_running"
	// StopResultStopping: the loop was cancelled but had not exited when ctx expired.
	// It exits on its own; Start waits for it.
	StopResultStopping StopResult = "stopping"
)

// PassStats summarizes one pass over the feed.
type PassStats struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Entries      int           `json:"entries"`
	Matched      int           `json:"matched"`
	Deduplicated int           `json:"deduplicated"`
	Dispatched   int           `json:"dispatched"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Deferred     int           `json:"deferred"`
	Skipped      int           `json:"skipped"`
	Errors       int           `json:"errors"`
	Panics       int           `json:"panics"`
}

// Status is a point-in-time view of the pipeline for operators.
type Status struct {
	Running       bool       `json:"running"`
	Enabled       bool       `json:"enabled"`
	State         string     `json:"state"`
	LastPass      *PassStats `json:"last_pass,omitempty"`
	LastPassError string     `json:"last_pass_error,omitempty"`
	NextTick      *time.Time `json:"next_tick,omitempty"`
}
