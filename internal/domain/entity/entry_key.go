package entity

import (
	"net/url"
	"regexp"
	"strings"
)

var viewIDPattern = regexp.MustCompile(`/view/(\d+)(?:[/?#]|$)`)

// ExtractViewID returns the numeric id of a tracker landing link such as
// https://nyaa.si/view/123.
func ExtractViewID(link string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Path == "" {
		return "", false
	}
	m := viewIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DeriveEntryKey returns the dedup key of a feed entry: the landing-link id when the
// link carries one, otherwise the feed entry id.
func DeriveEntryKey(entry FeedEntry) (string, error) {
	if id, ok := ExtractViewID(entry.SourceLink); ok {
		return id, nil
	}
	if id := strings.TrimSpace(entry.EntryID); id != "" {
		return id, nil
	}
	return "", ErrEntryKeyUnavailable
}
