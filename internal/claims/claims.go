// Package claims builds ID-token claim sets from a GitHub profile,
// applying the scope-gated field inclusion spec.md §4.6 specifies.
// Grounded on original_source/takagi/security.py's create_tokens, which
// interleaves this claim assembly with token minting; here it is split
// out as a pure function so both Phase C (/token) and Phase D
// (/userinfo) share one implementation, matching spec.md Phase D's "mint
// a fresh ID token using the same pipeline as Phase C".
package claims

import (
	"strconv"

	"github.com/sakif/takagi/internal/githubapi"
	"github.com/sakif/takagi/internal/scope"
)

// Build returns the ID-token claim map for user, gated by scopes, with
// the mandatory iss/aud/iat/exp/sub fields and an optional nonce
// pass-through. orgs may be nil when the groups scope was not granted or
// the org fetch was skipped.
func Build(user *githubapi.User, orgs []githubapi.Organization, scopes_ []string, nonce, iss, aud string, iat, exp int64) map[string]any {
	out := map[string]any{
		"iss": iss,
		"aud": aud,
		"iat": iat,
		"exp": exp,
		"sub": strconv.FormatInt(user.ID, 10),
	}

	if scope.Contains(scopes_, "profile") {
		out["preferred_username"] = user.Login
		out["name"] = user.Name
		out["nickname"] = user.Name
		out["picture"] = user.AvatarURL
		out["profile"] = user.HTMLURL
		out["updated_at"] = user.UpdatedAt.Unix()
	}

	if scope.Contains(scopes_, "email") && user.Email != "" {
		out["email"] = user.Email
		out["email_verified"] = true
	}

	if scope.Contains(scopes_, "groups") && len(orgs) > 0 {
		groups := make([]string, len(orgs))
		for i, org := range orgs {
			groups[i] = strconv.FormatInt(org.ID, 10)
		}
		out["groups"] = groups
	}

	if nonce != "" {
		out["nonce"] = nonce
	}

	return out
}
