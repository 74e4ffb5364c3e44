package supabase

import (
	"strings"

	"github.com/prabhakardwivedi/corpsite/internal/session"
)

type apiUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// displayName prefers profile metadata, then the email local part
func (u apiUser) displayName() string {
	if n := firstString(u.UserMetadata, "name", "full_name", "username"); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return "Admin"
}

// role reads a role assigned in metadata; the auth server's own "role"
// claim is always "authenticated" and is not a display role
func (u apiUser) role() string {
	if r := firstString(u.AppMetadata, "role", "user_role"); r != "" {
		return r
	}
	if r := firstString(u.UserMetadata, "role", "user_role"); r != "" {
		return r
	}
	return "ADMIN"
}

func (u apiUser) toUser() session.User {
	return session.User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.displayName(),
		Role:  u.role(),
	}
}
