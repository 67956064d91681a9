package entity

import (
	"fmt"
	"time"
)

// OutcomeStatus is the terminal status of a dispatch.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Failure reasons the transcode gateway can report.
const (
	ReasonExhaustedRetries   = "exhausted retries"
	ReasonInvalidResponse    = "invalid response format"
	ReasonServiceUnavailable = "service unavailable"
	ReasonUnresolvableLink   = "unresolvable source link"
	ReasonCancelled          = "cancelled"
	maxFailureReasonLength   = 500
)

// Outcome is the normalized result of a transcode submission.
// A successful outcome carries ArtifactID (and optionally ResultRef);
// a failed outcome carries Reason.
//
// Deferred is set only by Unavailable and Cancelled: the submission never reached a
// final answer from the service, so nothing is written to the ledger. A failure the
// service itself reported is never deferred, whatever its reason text says.
type Outcome struct {
	Status     OutcomeStatus
	ArtifactID string
	ResultRef  string
	Reason     string
	Deferred   bool
}

// Succeeded builds a success outcome.
func Succeeded(artifactID, resultRef string) Outcome {
	return Outcome{Status: OutcomeSuccess, ArtifactID: artifactID, ResultRef: resultRef}
}

// Failed builds a failure outcome.
func Failed(reason string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason}
}

// Unavailable is the deferred failure for a service that was down or behind an open breaker.
func Unavailable() Outcome {
	return Outcome{Status: OutcomeFailed, Reason: ReasonServiceUnavailable, Deferred: true}
}

// Cancelled is the deferred failure for a submission interrupted by its context.
func Cancelled() Outcome {
	return Outcome{Status: OutcomeFailed, Reason: ReasonCancelled, Deferred: true}
}

// PermanentFailure builds the failure reported for a non-retryable HTTP status.
func PermanentFailure(statusCode int, body string) Outcome {
	return Failed(fmt.Sprintf("status %d: %s", statusCode, body))
}

func (o Outcome) IsSuccess() bool { return o.Status == OutcomeSuccess }

// IsServiceUnavailable reports whether the gateway refused the call before any attempt.
func (o Outcome) IsServiceUnavailable() bool {
	return o.IsDeferred() && o.Reason == ReasonServiceUnavailable
}

// IsDeferred reports whether the outcome must not be written to the ledger, leaving the
// entry eligible on the next pass.
func (o Outcome) IsDeferred() bool {
	return o.Status == OutcomeFailed && o.Deferred
}

// DispatchRecord is the ledger entry for a dispatched feed entry.
// It is written exactly once per EntryKey and never updated.
type DispatchRecord struct {
	EntryKey      string
	Title         string
	MatchedTitle  string
	SourceLink    string
	SubmittedAt   time.Time
	Outcome       OutcomeStatus
	ArtifactRef   string
	ShareableLink string
	FailureReason string
}

// NewDispatchRecord builds the ledger record for a completed dispatch.
func NewDispatchRecord(entryKey string, entry FeedEntry, matched string, outcome Outcome, shareLink string, at time.Time) *DispatchRecord {
	rec := &DispatchRecord{
		EntryKey:     entryKey,
		Title:        entry.Title,
		MatchedTitle: matched,
		SourceLink:   entry.SourceLink,
		SubmittedAt:  at.UTC(),
		Outcome:      outcome.Status,
	}
	if outcome.IsSuccess() {
		rec.ArtifactRef = outcome.ArtifactID
		rec.ShareableLink = shareLink
	} else {
		rec.FailureReason = truncateRunes(outcome.Reason, maxFailureReasonLength)
	}
	return rec
}

// Validate checks the invariants a record must satisfy before it is written.
func (r *DispatchRecord) Validate() error {
	if r.EntryKey == "" {
		return &ValidationError{Field: "entry_key", Message: "entry key is required"}
	}
	switch r.Outcome {
	case OutcomeSuccess:
		if r.ArtifactRef == "" {
			return &ValidationError{Field: "artifact_ref", Message: "artifact ref is required for success"}
		}
	case OutcomeFailed:
		if r.FailureReason == "" {
			return &ValidationError{Field: "failure_reason", Message: "failure reason is required for failed"}
		}
	default:
		return &ValidationError{Field: "outcome", Message: fmt.Sprintf("unknown outcome %q", r.Outcome)}
	}
	return nil
}

// ParseOutcomeStatus converts user input into an OutcomeStatus. Empty input yields "".
func ParseOutcomeStatus(s string) (OutcomeStatus, error) {
	switch OutcomeStatus(s) {
	case "":
		return "", nil
	case OutcomeSuccess, OutcomeFailed:
		return OutcomeStatus(s), nil
	default:
		return "", &ValidationError{Field: "outcome", Message: "outcome must be success or failed"}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
