package dispatch

import (
	"strings"

	"relayfeed/internal/domain/entity"
)

// Matcher selects the first watch title contained in an entry title, ignoring case.
type Matcher struct {
	titles []string
	folded []string
}

// NewMatcher builds a matcher over watches in their stored order. Blank titles never match.
func NewMatcher(watches []*entity.WatchTitle) *Matcher {
	m := &Matcher{}
	for _, w := range watches {
		if w == nil {
			continue
		}
		f := entity.FoldTitle(strings.TrimSpace(w.Title))
		if f == "" {
			continue
		}
		m.titles = append(m.titles, w.Title)
		m.folded = append(m.folded, f)
	}
	return m
}

// Match returns the first watch title that is a substring of entryTitle.
func (m *Matcher) Match(entryTitle string) (string, bool) {
	folded := entity.FoldTitle(entryTitle)
	for i, w := range m.folded {
		if strings.Contains(folded, w) {
			return m.titles[i], true
		}
	}
	return "", false
}

// Len is the number of usable watch titles.
func (m *Matcher) Len() int { return len(m.titles) }
