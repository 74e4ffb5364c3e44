package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is an opaque provider token plus the user it belongs to
type Session struct {
	Token     string    `json:"-"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Provider is the hosted authentication service
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	// GetSession returns nil, nil when token does not name a live session
	GetSession(ctx context.Context, token string) (*Session, error)
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	SetPassword(ctx context.Context, token, newPassword string) error
}

// AuthReason classifies an AuthError
type AuthReason string

const (
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	ReasonUnavailable        AuthReason = "provider_unavailable"
	ReasonForbidden          AuthReason = "forbidden"
	ReasonNoSession          AuthReason = "no_session"
)

// AuthError is a login or credential operation failure
type AuthError struct {
	Reason AuthReason
	Msg    string
	Err    error
}

func (e *AuthError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", msg, e.Err)
	}
	return "auth: " + msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is, or wraps, an AuthError
func IsAuthError(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// State of a mounted admin view
type State int32

const (
	Checking State = iota
	Authorized
	Unauthorized
)

func (s State) String() string {
	switch s {
	case Checking:
		return "CHECKING"
	case Authorized:
		return "AUTHORIZED"
	case Unauthorized:
		return "UNAUTHORIZED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Metrics is implemented by the metrics package
type Metrics interface {
	IncGuardTransition(state string)
	IncGuardRedirect()
	IncSessionCheck(result string)
}
