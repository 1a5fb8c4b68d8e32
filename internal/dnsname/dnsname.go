// Package dnsname implements the minimal DNS-name matching WebFinger
// needs (spec.md §4.7): exact match, or subdomain-of-wildcard match
// against an allow-list. No DNS-handling library appears anywhere in the
// example pack, so this is implemented directly against
// strings.Split/label comparison rather than reaching outside the
// corpus's demonstrated stack.
package dnsname

import "strings"

// Allowed reports whether host matches one of the allowed patterns. A
// pattern is either a literal host ("dept.example.com") or a wildcard
// ("*.example.com", which must carry at least 3 labels per spec.md §6:
// the wildcard label plus at least two more).
func Allowed(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, p := range patterns {
		if matches(host, strings.ToLower(strings.TrimSuffix(p, "."))) {
			return true
		}
	}
	return false
}

func matches(host, pattern string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return host == pattern
	}

	labels := strings.Split(pattern, ".")
	if len(labels) < 3 {
		// malformed wildcard, per spec.md §6's "wildcards must have >= 3 labels"
		return false
	}

	parent := pattern[2:] // strip "*."
	return strings.HasSuffix(host, "."+parent)
}
