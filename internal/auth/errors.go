package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnsupported        = errors.New("not supported by this provider")
)

var messages = []struct {
	err error
	msg string
}{
	{ErrInvalidCredentials, "Invalid email or password. Please try again."},
	{ErrUserNotFound, "No account found with this email address. Please check your email or create an account."},
	{ErrTooManyRequests, "Too many failed attempts. Please wait a moment before trying again."},
	{ErrAccountLocked, "Account temporarily locked due to too many failed attempts. Please try again later."},
	{ErrEmailNotVerified, "Please verify your email address before signing in."},
	{ErrUserExists, "An account with this email address already exists."},
	{ErrInvalidCode, "Invalid verification code. Please check the code and try again."},
	{ErrInvalidToken, "Your session has expired. Please sign in again."},
	{ErrUnsupported, "Please confirm your account using the link sent to your email."},
}

// Message maps a provider error to the text shown to users.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "An error occurred during sign in. Please try again."
}
