package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	supabase "github.com/nedpals/supabase-go"
)

// SupabaseProvider delegates authentication to Supabase Auth. Email
// confirmation happens through the link Supabase sends, so ConfirmSignUp is
// not available here.
type SupabaseProvider struct {
	client *supabase.Client
	now    func() time.Time
}

func NewSupabaseProvider(url, key string) (*SupabaseProvider, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase URL and key must be provided via SUPABASE_URL / SUPABASE_KEY")
	}
	return &SupabaseProvider{client: supabase.CreateClient(url, key), now: time.Now}, nil
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	user, err := p.client.Auth.SignUp(ctx, supabase.UserCredentials{
		Email:    NormalizeEmail(email),
		Password: password,
	})
	if err != nil {
		return SignUpResult{}, supabaseError(err)
	}
	return SignUpResult{
		Identity:             Identity{Subject: user.ID, Email: NormalizeEmail(user.Email)},
		ConfirmationRequired: user.ConfirmedAt.IsZero(),
	}, nil
}

func (p *SupabaseProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	return ErrUnsupported
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	details, err := p.client.Auth.SignIn(ctx, supabase.UserCredentials{
		Email:    NormalizeEmail(email),
		Password: password,
	})
	if err != nil {
		return Session{}, supabaseError(err)
	}
	return Session{
		AccessToken: details.AccessToken,
		ExpiresAt:   p.now().Add(time.Duration(details.ExpiresIn) * time.Second),
		Identity:    Identity{Subject: details.User.ID, Email: NormalizeEmail(details.User.Email)},
	}, nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context, token string) error {
	if err := p.client.Auth.SignOut(ctx, token); err != nil {
		return supabaseError(err)
	}
	return nil
}

func (p *SupabaseProvider) Verify(ctx context.Context, token string) (Identity, error) {
	user, err := p.client.Auth.User(ctx, token)
	if err != nil || user == nil || user.ID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: user.ID, Email: NormalizeEmail(user.Email)}, nil
}

// supabaseError maps Supabase Auth error text onto the package errors.
func supabaseError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid login credentials"):
		return ErrInvalidCredentials
	case strings.Contains(msg, "email not confirmed"):
		return ErrEmailNotVerified
	case strings.Contains(msg, "already registered"):
		return ErrUserExists
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many"):
		return ErrTooManyRequests
	case strings.Contains(msg, "user not found"):
		return ErrUserNotFound
	case strings.Contains(msg, "jwt"), strings.Contains(msg, "token"):
		return ErrInvalidToken
	default:
		return err
	}
}
