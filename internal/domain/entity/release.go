package entity

import (
	"regexp"
	"strings"
)

// ReleaseInfo is the structured form of a fansub release name.
type ReleaseInfo struct {
	Group   string
	Show    string
	Episode string
	Quality string
}

var (
	groupTagPattern = regexp.MustCompile(`^\s*\[([^\]]+)\]`)
	qualityPattern  = regexp.MustCompile(`\((\d{3,4}p)\)`)
)

// ParseReleaseName splits names like "[SubsPlease] Show A - 05 (720p) [ABCD1234].mkv"
// into group, show and episode. ok is false when no " - " episode separator is found.
func ParseReleaseName(name string) (ReleaseInfo, bool) {
	var info ReleaseInfo
	rest := name
	if m := groupTagPattern.FindStringSubmatch(rest); m != nil {
		info.Group = m[1]
		rest = rest[len(m[0]):]
	}
	if m := qualityPattern.FindStringSubmatch(rest); m != nil {
		info.Quality = m[1]
	}
	if i := strings.Index(rest, "["); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "("); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)

	i := strings.LastIndex(rest, " - ")
	if i < 0 {
		return info, false
	}
	info.Show = strings.TrimSpace(rest[:i])
	info.Episode = strings.TrimSpace(rest[i+len(" - "):])
	if info.Show == "" || info.Episode == "" {
		return info, false
	}
	return info, true
}
