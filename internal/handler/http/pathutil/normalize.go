// Package pathutil maps request paths onto route templates for metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern pairs a dynamic route with the template reported in its place.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/dispatches/[^/]+$`), Template: "/dispatches/:key"},
}

// NormalizePath collapses paths carrying an entry key into their template so each
// dispatch lookup does not mint a new label value. Query strings and a trailing slash
// are dropped; unknown paths are returned as-is.
//
//	NormalizePath("/dispatches/1234567")  // "/dispatches/:key"
//	NormalizePath("/dispatches")          // "/dispatches"
//	NormalizePath("/watches/")            // "/watches"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return path
}
