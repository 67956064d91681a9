package auth

import (
	"slices"
	"strings"
)

const (
	// RoleAdmin may call every endpoint.
	RoleAdmin = "admin"
	// RoleViewer may only read: pipeline status, watch titles, dispatch records and
	// detailed health.
	RoleViewer = "viewer"
)

// Permission lists the methods and path patterns a role may use.
// A pattern ending in "/*" matches the prefix itself and everything below it.
type Permission struct {
	AllowedMethods []string
	AllowedPaths   []string
}

// RolePermissions maps each role to its permission.
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedPaths:   []string{"/*"},
	},
	RoleViewer: {
		AllowedMethods: []string{"GET"},
		AllowedPaths: []string{
			"/pipeline",
			"/watches",
			"/dispatches/*",
			"/health/*",
		},
	},
}

// checkRolePermission reports whether role may call method on path. Unknown roles are denied.
//
//	checkRolePermission("admin", "POST", "/pipeline/start")   // true
//	checkRolePermission("viewer", "GET", "/dispatches/123")   // true
//	checkRolePermission("viewer", "POST", "/watches")         // false
func checkRolePermission(role, method, path string) bool {
	perm, ok := RolePermissions[role]
	if !ok {
		return false
	}
	if !slices.Contains(perm.AllowedMethods, method) {
		return false
	}
	return matchesPathPattern(path, perm.AllowedPaths)
}

func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
