package common

import "strings"

// SplitPath splits a slash separated path into the names to resolve in
// order. Empty and "." components are dropped; ".." is kept because only
// the resolver knows where a parent lies.
func SplitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// JoinPath joins components into a relative path without resolving "..".
func JoinPath(parts ...string) string {
	var all []string
	for _, p := range parts {
		all = append(all, SplitPath(p)...)
	}
	return strings.Join(all, "/")
}

// BaseName returns the last component of a path, "" for the root.
func BaseName(p string) string {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
