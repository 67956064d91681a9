package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// MaxWatchTitleLength bounds a single watch title.
const MaxWatchTitleLength = 200

// WatchTitle is an operator-defined, case-insensitive substring that selects feed entries.
type WatchTitle struct {
	Title     string
	CreatedAt time.Time
}

// NormalizeWatchTitle trims surrounding whitespace and validates the title.
func NormalizeWatchTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > MaxWatchTitleLength {
		return "", &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title must not exceed %d characters", MaxWatchTitleLength),
		}
	}
	return title, nil
}

var folder = cases.Fold()

// FoldTitle returns the caseless form of s used for matching and uniqueness.
func FoldTitle(s string) string {
	return folder.String(s)
}

// MatchesTitle reports whether watch is a case-insensitive substring of entryTitle.
func MatchesTitle(entryTitle, watch string) bool {
	w := FoldTitle(strings.TrimSpace(watch))
	if w == "" {
		return false
	}
	return strings.Contains(FoldTitle(entryTitle), w)
}
