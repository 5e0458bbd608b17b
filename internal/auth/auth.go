// Package auth signs users up, confirms their email, and issues and
// verifies access tokens.
package auth

import (
	"context"
	"strings"
	"time"
)

// Identity is the stable subject behind an access token.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity
}

// SignUpResult reports the new subject and whether the email still has to
// be confirmed before signing in.
type SignUpResult struct {
	Identity
	ConfirmationRequired bool `json:"confirmation_required"`
}

// Provider is the authentication service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (Identity, error)
}

// NormalizeEmail is the key credentials are stored under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
