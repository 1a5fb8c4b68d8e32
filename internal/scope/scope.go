// Package scope implements spec.md §4.3's bidirectional OIDC <-> GitHub
// scope mapping, grounded on original_source/takagi/utils.py's
// convert_scopes.
package scope

import "strings"

// oidcToGitHub is the canonical OIDC -> GitHub scope table (spec.md §4.3).
var oidcToGitHub = map[string]string{
	"profile": "profile",
	"email":   "user:email",
	"groups":  "read:org",
}

var githubToOIDC = reverse(oidcToGitHub)

func reverse(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// ToGitHub translates OIDC scopes to their GitHub equivalents. openid has
// no GitHub counterpart and is silently dropped; unrecognized scopes are
// also dropped. Input is deduplicated first.
func ToGitHub(scopes []string) []string {
	return translate(scopes, oidcToGitHub)
}

// ToOIDC translates GitHub scopes back to OIDC scopes. Unrecognized
// scopes are dropped.
func ToOIDC(scopes []string) []string {
	return translate(scopes, githubToOIDC)
}

func translate(scopes []string, table map[string]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(scopes))
	for _, s := range dedupe(scopes) {
		mapped, ok := table[s]
		if !ok {
			continue
		}
		if !seen[mapped] {
			seen[mapped] = true
			out = append(out, mapped)
		}
	}
	return out
}

func dedupe(scopes []string) []string {
	seen := make(map[string]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Format gives the caller's choice of wire representation, matching
// utils.py's output_type parameter: a single space-delimited string when
// asString is true, otherwise the slice itself.
func Format(scopes []string, asString bool) any {
	if asString {
		return strings.Join(scopes, " ")
	}
	return scopes
}

// Parse splits a space- or comma-delimited scope string into a slice,
// the inverse of Format's string form.
func Parse(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ','
	})
	return fields
}

// Contains reports whether scopes includes want.
func Contains(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
