package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/mq"
	"github.com/dawgsconnect/jobboard/internal/store"
)

const (
	defaultMaxFailedAttempts = 5
	defaultLockoutDuration   = 15 * time.Minute
	defaultSignInsPerMinute  = 10
	maxTrackedLimiters       = 10000
)

// Credential record fields.
const (
	fieldSubject          = "subject"
	fieldPasswordHash     = "password_hash"
	fieldVerified         = "verified"
	fieldVerificationCode = "verification_code"
	fieldFailedAttempts   = "failed_attempts"
	fieldLockedUntil      = "locked_until"
)

// EventPublisher delivers verification codes.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, event any) error
}

// LocalProvider keeps credentials in the data service, hashes passwords
// with bcrypt and issues HS256 tokens. Sign-ins are rate limited per email
// and repeated failures lock the account for a while.
type LocalProvider struct {
	backend store.Backend
	events  EventPublisher
	logger  logrus.FieldLogger

	secret        []byte
	tokenTTL      time.Duration
	maxFailed     int
	lockout       time.Duration
	signInsPerMin int
	hashCost      int
	now           func() time.Time
	generateCode  func() (string, error)

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	revoked  map[string]time.Time
}

// NewLocalProvider builds the provider. With a nil events publisher there
// is no way to deliver codes, so new accounts start out verified.
func NewLocalProvider(backend store.Backend, events EventPublisher, cfg config.AuthConfig, logger logrus.FieldLogger) (*LocalProvider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required for the local auth provider")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &LocalProvider{
		backend:       backend,
		events:        events,
		logger:        logger,
		secret:        []byte(cfg.JWTSecret),
		tokenTTL:      cfg.TokenTTL,
		maxFailed:     cfg.MaxFailedAttempts,
		lockout:       cfg.LockoutDuration,
		signInsPerMin: cfg.SignInsPerMinute,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
		generateCode:  verificationCode,
		limiters:      make(map[string]*rate.Limiter),
		revoked:       make(map[string]time.Time),
	}
	if p.maxFailed <= 0 {
		p.maxFailed = defaultMaxFailedAttempts
	}
	if p.lockout <= 0 {
		p.lockout = defaultLockoutDuration
	}
	if p.signInsPerMin <= 0 {
		p.signInsPerMin = defaultSignInsPerMinute
	}
	return p, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	key := NormalizeEmail(email)
	if _, err := p.backend.Get(ctx, store.CollectionCredentials, key); err == nil {
		return SignUpResult{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return SignUpResult{}, fmt.Errorf("load credentials: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return SignUpResult{}, err
	}

	requireCode := p.events != nil
	code := ""
	if requireCode {
		if code, err = p.generateCode(); err != nil {
			return SignUpResult{}, err
		}
	}

	subject := uuid.NewString()
	_, err = p.backend.Create(ctx, store.CollectionCredentials, store.Record{
		store.KeyID:           key,
		fieldSubject:          subject,
		fieldPasswordHash:     string(hashed),
		fieldVerified:         !requireCode,
		fieldVerificationCode: code,
		fieldFailedAttempts:   0,
	})
	if err != nil {
		return SignUpResult{}, fmt.Errorf("create credentials: %w", err)
	}

	if requireCode {
		event := mq.VerificationEvent{Email: key, Code: code, SentAt: p.now().UTC()}
		if err := p.events.PublishEvent(ctx, mq.ChannelVerification, event); err != nil {
			p.logger.WithField("email", key).WithError(err).Warn("failed to publish verification code")
		}
	}

	return SignUpResult{
		Identity:             Identity{Subject: subject, Email: key},
		ConfirmationRequired: requireCode,
	}, nil
}

// ConfirmSignUp marks the account verified when code matches. Wrong codes
// share the sign-in budget and lockout for the email.
func (p *LocalProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	key := NormalizeEmail(email)
	if !p.limiter(key).Allow() {
		return ErrTooManyRequests
	}

	cred, err := p.credential(ctx, key)
	if err != nil {
		return err
	}
	if cred.verified {
		return nil
	}

	now := p.now()
	if now.Before(cred.lockedUntil) {
		return ErrAccountLocked
	}
	if cred.code == "" || subtle.ConstantTimeCompare([]byte(cred.code), []byte(code)) != 1 {
		if err := p.recordFailure(ctx, key, now); errors.Is(err, ErrAccountLocked) {
			return err
		}
		return ErrInvalidCode
	}

	_, err = p.backend.Update(ctx, store.CollectionCredentials, key, store.Record{
		fieldVerified:         true,
		fieldVerificationCode: "",
		fieldFailedAttempts:   0,
		fieldLockedUntil:      "",
	})
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	return nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	key := NormalizeEmail(email)
	if !p.limiter(key).Allow() {
		return Session{}, ErrTooManyRequests
	}

	cred, err := p.credential(ctx, key)
	if err != nil {
		return Session{}, err
	}

	now := p.now()
	if now.Before(cred.lockedUntil) {
		return Session{}, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.passwordHash), []byte(password)); err != nil {
		return Session{}, p.recordFailure(ctx, key, now)
	}

	if cred.failedAttempts > 0 || !cred.lockedUntil.IsZero() {
		_, err := p.backend.Update(ctx, store.CollectionCredentials, key, store.Record{
			fieldFailedAttempts: 0,
			fieldLockedUntil:    "",
		})
		if err != nil {
			p.logger.WithField("email", key).WithError(err).Warn("failed to reset sign-in failures")
		}
	}

	if !cred.verified {
		return Session{}, ErrEmailNotVerified
	}

	identity := Identity{Subject: cred.subject, Email: key}
	token, expiresAt, err := issueToken(identity, p.secret, p.tokenTTL, now)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

func (p *LocalProvider) recordFailure(ctx context.Context, key string, now time.Time) error {
	failures, err := p.backend.Increment(ctx, store.CollectionCredentials, key, fieldFailedAttempts)
	if err != nil {
		p.logger.WithField("email", key).WithError(err).Warn("failed to record failed attempt")
		return ErrInvalidCredentials
	}
	if failures < int64(p.maxFailed) {
		return ErrInvalidCredentials
	}

	_, err = p.backend.Update(ctx, store.CollectionCredentials, key, store.Record{
		fieldFailedAttempts: 0,
		fieldLockedUntil:    now.Add(p.lockout).UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		p.logger.WithField("email", key).WithError(err).Warn("failed to lock account")
	}
	p.logger.WithField("email", key).Warn("account locked after repeated failed attempts")
	return ErrAccountLocked
}

// SignOut revokes the token until it would have expired anyway.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	c, err := parseToken(token, p.secret, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for id, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, id)
		}
	}
	if c.ExpiresAt != nil {
		p.revoked[c.ID] = c.ExpiresAt.Time
	}
	return nil
}

func (p *LocalProvider) Verify(ctx context.Context, token string) (Identity, error) {
	c, err := parseToken(token, p.secret, p.now())
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	_, revoked := p.revoked[c.ID]
	p.mu.Unlock()
	if revoked {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: c.Subject, Email: c.Email}, nil
}

func (p *LocalProvider) limiter(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if !ok {
		if len(p.limiters) >= maxTrackedLimiters {
			p.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.signInsPerMin)), p.signInsPerMin)
		p.limiters[key] = l
	}
	return l
}

type credential struct {
	subject        string
	passwordHash   string
	verified       bool
	code           string
	failedAttempts int64
	lockedUntil    time.Time
}

func (p *LocalProvider) credential(ctx context.Context, key string) (credential, error) {
	record, err := p.backend.Get(ctx, store.CollectionCredentials, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return credential{}, ErrUserNotFound
		}
		return credential{}, fmt.Errorf("load credentials: %w", err)
	}

	cred := credential{}
	cred.subject, _ = record[fieldSubject].(string)
	cred.passwordHash, _ = record[fieldPasswordHash].(string)
	cred.verified, _ = record[fieldVerified].(bool)
	cred.code, _ = record[fieldVerificationCode].(string)
	if n, ok := record[fieldFailedAttempts].(float64); ok {
		cred.failedAttempts = int64(n)
	}
	if raw, ok := record[fieldLockedUntil].(string); ok && raw != "" {
		cred.lockedUntil, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return cred, nil
}

// verificationCode returns a random 6-digit code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
