package dispatches

import (
	"time"

	"relayfeed/internal/domain/entity"
)

type DTO struct {
	EntryKey      string    `json:"entry_key"`
	Title         string    `json:"title"`
	MatchedTitle  string    `json:"matched_title,omitempty"`
	SourceLink    string    `json:"source_link"`
	SubmittedAt   time.Time `json:"submitted_at"`
	Outcome       string    `json:"outcome"`
	ArtifactRef   string    `json:"artifact_ref,omitempty"`
	ShareableLink string    `json:"shareable_link,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type ListDTO struct {
	Items []DTO `json:"items"`
	Total int64 `json:"total"`
}

func toDTO(r *entity.DispatchRecord) DTO {
	return DTO{
		EntryKey:      r.EntryKey,
		Title:         r.Title,
		MatchedTitle:  r.MatchedTitle,
		SourceLink:    r.SourceLink,
		SubmittedAt:   r.SubmittedAt,
		Outcome:       string(r.Outcome),
		ArtifactRef:   r.ArtifactRef,
		ShareableLink: r.ShareableLink,
		FailureReason: r.FailureReason,
	}
}
